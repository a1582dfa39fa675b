package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newProvisionCmd(a *app) *cobra.Command {
	var org string
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Ask the cluster manager for a new dock for an organization",
		Long: `Enqueue a job that provisions a new dock for an organization and exit.
It can take up to ten minutes for the dock to show up in list with the
right organization ID.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if org == "" {
				return errors.New("the --org flag is required")
			}
			question := fmt.Sprintf("Are you sure you wish to provision a new %s dock for org %s?", a.env, org)
			if err := a.confirm(question, "Aborted instance provisioning"); err != nil {
				return err
			}
			res, err := a.registry.Scaling.Provision(cmd.Context(), a.env, org, a.dry)
			if err != nil {
				return err
			}
			report(a, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "GitHub ID of the organization to provision a dock for")
	return cmd
}
