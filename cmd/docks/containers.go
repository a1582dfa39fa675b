package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newContainersCmd(a *app) *cobra.Command {
	var org string
	cmd := &cobra.Command{
		Use:   "containers",
		Short: "List user containers recorded in the document store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			containers, err := a.registry.Docstore.Containers(cmd.Context(), a.env, org)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(containers))
			for _, c := range containers {
				rows = append(rows, []string{
					strconv.FormatInt(c.Owner.GitHub, 10),
					c.InstanceName,
					shortID(c.Docker.ID),
					c.Docker.Host,
				})
			}
			return a.render(containers, []string{"ORG", "INSTANCE", "CONTAINER", "DOCK"}, rows)
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "Only show containers of this GitHub organization ID")
	return cmd
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
