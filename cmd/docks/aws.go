package main

import (
	"github.com/spf13/cobra"
)

func newAWSCmd(a *app) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "aws",
		Short: "List dock instances in EC2",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instances, err := a.registry.Compute.Instances(cmd.Context(), a.env, id)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(instances))
			for _, i := range instances {
				rows = append(rows, []string{i.ID, i.IP, i.Org, i.State, i.Type, i.AMI, formatTime(i.Launched)})
			}
			return a.render(instances, []string{"ID", "IP", "ORG", "STATE", "TYPE", "AMI", "LAUNCHED"}, rows)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Only show the instance with this ID")
	return cmd
}
