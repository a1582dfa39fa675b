package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/benmeehan/docks/internal/models"
	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/spf13/cobra"
)

func newASGCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asg",
		Short: "Manage per-organization auto scaling groups",
		Long: `Manage the auto scaling groups that hold each organization's docks.

Changes are not made directly: they are enqueued as jobs for the scaling
workers, so a group may take a few minutes to reflect them.`,
	}
	cmd.AddCommand(
		newASGListCmd(a),
		newASGJobCmd(a, asgJobCmd{
			use:   "create",
			short: "Create the auto scaling group of an organization",
			run: func(ctx context.Context, o asgOptions) (dryrun.Result[models.PublishReceipt], error) {
				return a.registry.Scaling.Create(ctx, a.env, o.org, a.dry)
			},
		}),
		newASGJobCmd(a, asgJobCmd{
			use:     "delete",
			short:   "Delete the auto scaling group of an organization",
			confirm: "Are you sure you wish to delete the auto scaling group of org %s?",
			run: func(ctx context.Context, o asgOptions) (dryrun.Result[models.PublishReceipt], error) {
				return a.registry.Scaling.Delete(ctx, a.env, o.org, a.dry)
			},
		}),
		newASGJobCmd(a, asgJobCmd{
			use:     "off",
			short:   "Scale an organization's group to zero instances",
			confirm: "Are you sure you wish to turn off the auto scaling group of org %s?",
			run: func(ctx context.Context, o asgOptions) (dryrun.Result[models.PublishReceipt], error) {
				return a.registry.Scaling.Off(ctx, a.env, o.org, a.dry)
			},
		}),
		newASGJobCmd(a, asgJobCmd{
			use:   "lc",
			short: "Change the launch configuration of an organization's group",
			lc:    true,
			run: func(ctx context.Context, o asgOptions) (dryrun.Result[models.PublishReceipt], error) {
				return a.registry.Scaling.SetLaunchConfiguration(ctx, a.env, o.org, o.lc, a.dry)
			},
		}),
		newASGJobCmd(a, asgJobCmd{
			use:    "scale-out",
			short:  "Add instances to an organization's group",
			number: true,
			run: func(ctx context.Context, o asgOptions) (dryrun.Result[models.PublishReceipt], error) {
				return a.registry.Scaling.ScaleOut(ctx, a.env, o.org, o.number, a.dry)
			},
		}),
		newASGJobCmd(a, asgJobCmd{
			use:    "scale-in",
			short:  "Remove instances from an organization's group",
			number: true,
			run: func(ctx context.Context, o asgOptions) (dryrun.Result[models.PublishReceipt], error) {
				return a.registry.Scaling.ScaleIn(ctx, a.env, o.org, o.number, a.dry)
			},
		}),
	)
	return cmd
}

func newASGListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the dock auto scaling groups of the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			groups, err := a.registry.Compute.AutoScalingGroups(cmd.Context(), a.env)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(groups))
			for _, g := range groups {
				rows = append(rows, []string{
					g.Org,
					g.Name,
					strconv.Itoa(g.Min),
					strconv.Itoa(g.Desired),
					strconv.Itoa(g.Max),
					g.LaunchConfiguration,
					strconv.Itoa(g.Cooldown),
					formatTime(g.Created),
				})
			}
			return a.render(groups, []string{"ORG", "NAME", "MIN", "DESIRED", "MAX", "LAUNCH CONFIG", "COOLDOWN", "CREATED"}, rows)
		},
	}
}

type asgOptions struct {
	org    string
	lc     string
	number int
}

// asgJobCmd describes a sub-command that enqueues one scaling job.
type asgJobCmd struct {
	use     string
	short   string
	confirm string // question with one %s for the org, empty for none
	lc      bool
	number  bool
	run     func(ctx context.Context, o asgOptions) (dryrun.Result[models.PublishReceipt], error)
}

func newASGJobCmd(a *app, spec asgJobCmd) *cobra.Command {
	var o asgOptions
	cmd := &cobra.Command{
		Use:   spec.use,
		Short: spec.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.org == "" {
				return errors.New("the --org flag is required")
			}
			if spec.lc && o.lc == "" {
				return errors.New("the --lc flag is required")
			}
			if spec.confirm != "" {
				if err := a.confirm(fmt.Sprintf(spec.confirm, o.org), "Aborted auto scaling group change"); err != nil {
					return err
				}
			}
			res, err := spec.run(cmd.Context(), o)
			if err != nil {
				return err
			}
			report(a, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.org, "org", "", "GitHub ID of the organization that owns the group")
	if spec.lc {
		cmd.Flags().StringVarP(&o.lc, "lc", "l", "", "Name of the launch configuration to set")
	}
	if spec.number {
		cmd.Flags().IntVarP(&o.number, "number", "n", 1, "Number of instances to add or remove")
	}
	return cmd
}
