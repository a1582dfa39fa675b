package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUpdateCmd(a *app) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the local clone to the newest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := a.registry.Release.Check(cmd.Context(), true)
			if err != nil {
				return err
			}
			if !status.UpdateAvailable {
				fmt.Fprintf(a.out, "Already on the newest release %s\n", status.Current)
				return nil
			}
			fmt.Fprintf(a.out, "Release %s is available, current is %s\n", status.Latest, status.Current)
			if check {
				return nil
			}

			if err := a.confirm(fmt.Sprintf("Update to %s?", status.Latest), "Aborted update"); err != nil {
				return err
			}
			res, err := a.registry.Release.Update(cmd.Context(), status.Latest, a.dry)
			if err != nil {
				return err
			}
			report(a, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Only check for a newer release")
	return cmd
}
