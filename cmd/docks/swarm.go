package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newSwarmCmd(a *app) *cobra.Command {
	var (
		org        string
		containers bool
	)
	cmd := &cobra.Command{
		Use:   "swarm",
		Short: "List docks or containers as seen by the swarm manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if containers {
				list, err := a.registry.Orchestration.Containers(cmd.Context(), a.env, org)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(list))
				for _, c := range list {
					rows = append(rows, []string{c.Org, c.DockIP, shortID(c.ID), c.InstanceName, c.Owner, c.Status})
				}
				return a.render(list, []string{"ORG", "DOCK", "CONTAINER", "INSTANCE", "OWNER", "STATUS"}, rows)
			}

			nodes, err := a.registry.Orchestration.Docks(cmd.Context(), a.env)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(nodes))
			shown := nodes[:0:0]
			for _, n := range nodes {
				if org != "" && n.Org != org {
					continue
				}
				shown = append(shown, n)
				rows = append(rows, []string{n.Org, n.IP, strconv.Itoa(n.Containers), n.Name})
			}
			return a.render(shown, []string{"ORG", "IP", "CONTAINERS", "NAME"}, rows)
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "Only show this organization ID")
	cmd.Flags().BoolVar(&containers, "containers", false, "List user containers instead of docks")
	return cmd
}
