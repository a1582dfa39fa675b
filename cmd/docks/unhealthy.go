package main

import (
	"errors"
	"fmt"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/internal/models"
	"github.com/benmeehan/docks/internal/services"
	"github.com/spf13/cobra"
)

func newUnhealthyCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "unhealthy <ip>",
		Short: "Mark a dock as unhealthy so it gets replaced",
		Long: `Mark the dock with the given IP as unhealthy and in need of replacement by
enqueueing a dock.lost job. The replacement can take up to ten minutes to
show up in list. The dock's organization is looked up in the swarm
manager; --force enqueues the job even when the dock is not found there.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip := args[0]

			org := "unknown"
			dock, err := a.registry.Orchestration.FindDock(cmd.Context(), a.env, ip)
			switch {
			case err == nil:
				org = dock.Org
			case errors.Is(err, services.ErrDockNotFound) && force:
				a.logger.Warn().Str("ip", ip).Msg("Dock not found in swarm, forcing")
			default:
				return err
			}

			question := fmt.Sprintf("Are you sure you wish to mark %s as unhealthy for org %s?", ip, org)
			if err := a.confirm(question, "Aborted dock unhealthy"); err != nil {
				return err
			}
			job := models.DockLostJob{
				Host:        fmt.Sprintf("http://%s:%d", ip, constants.DockAgentPort),
				GithubOrgID: org,
			}
			res, err := a.registry.Jobs.Publish(cmd.Context(), a.env, constants.QueueDockLost, job, a.dry)
			if err != nil {
				return err
			}
			report(a, res)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Enqueue the job even if the dock is not found")
	return cmd
}
