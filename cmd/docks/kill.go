package main

import (
	"fmt"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/internal/models"
	"github.com/spf13/cobra"
)

func newKillCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kill <ip>",
		Short: "Ask the scaling workers to terminate a dock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip := args[0]
			const abort = "Aborted dock destruction"
			if err := a.confirm(fmt.Sprintf("This will KILL the dock. Are you SURE you want to kill the dock with ip %s?", ip), abort); err != nil {
				return err
			}
			if err := a.confirm(fmt.Sprintf("Are you sure you wish to kill the dock with ip %s?", ip), abort); err != nil {
				return err
			}
			res, err := a.registry.Jobs.Publish(cmd.Context(), a.env, constants.QueueInstanceTerminate, models.InstanceTerminateJob{IPAddress: ip}, a.dry)
			if err != nil {
				return err
			}
			report(a, res)
			return nil
		},
	}
}
