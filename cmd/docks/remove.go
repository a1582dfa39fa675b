package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <ip>",
		Short: "Remove a dock from rotation",
		Long: `Remove the dock with the given private IP from rotation. The dock keeps
running but no longer receives new builds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip := args[0]
			if err := a.confirm(fmt.Sprintf("Are you sure you wish to remove %s from rotation?", ip), "Aborted dock removal"); err != nil {
				return err
			}
			res, err := a.registry.Rotation.Remove(cmd.Context(), a.env, ip, a.dry)
			if err != nil {
				return err
			}
			report(a, res)
			return nil
		},
	}
}
