package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var (
		org    string
		github bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List docks in rotation",
		Long: `List the docks that are currently in rotation, handling user requests,
sorted by organization and then by IP. --org filters by organization ID
prefix. --github adds the organization's GitHub login.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docks, err := a.registry.Rotation.Docks(cmd.Context(), a.env, org)
			if err != nil {
				return err
			}
			header := []string{"ORG", "IP", "BUILDS", "CONTAINERS", "HOST"}
			if github {
				ids := make([]string, 0, len(docks))
				for _, d := range docks {
					ids = append(ids, d.Org)
				}
				names := a.registry.GitHub.Logins(cmd.Context(), ids)
				for i := range docks {
					docks[i].OrgName = names[docks[i].Org]
				}
				header = append([]string{"GITHUB"}, header...)
			}

			rows := make([][]string, 0, len(docks))
			for _, d := range docks {
				row := []string{d.Org, d.IP, strconv.Itoa(d.Builds), strconv.Itoa(d.Containers), d.Host}
				if github {
					row = append([]string{dash(d.OrgName)}, row...)
				}
				rows = append(rows, row)
			}
			return a.render(docks, header, rows)
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "Filter by organization ID prefix")
	cmd.Flags().BoolVar(&github, "github", false, "Look up organization names on GitHub")
	return cmd
}
