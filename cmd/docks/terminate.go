package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTerminateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "terminate <instance-id>",
		Short: "Remove a dock from weave and terminate its instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			question := fmt.Sprintf("Are you sure you wish to TERMINATE instance %s?", id)
			if err := a.confirm(question, "Aborted instance termination"); err != nil {
				return err
			}
			res, err := a.registry.Compute.Terminate(cmd.Context(), a.env, id, a.dry)
			if err != nil {
				return err
			}
			report(a, res)
			return nil
		},
	}
}
