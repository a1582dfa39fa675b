package main

import (
	"strings"

	"github.com/benmeehan/docks/internal/services"
	"github.com/spf13/cobra"
)

func newLogsCmd(a *app) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs <ip> [service|path]",
		Short: "Print a dock service log",
		Long: `Print the log of a service on the dock with the given IP over ssh.

The service defaults to dock-init and is one of: ` + strings.Join(services.LogServices(), ", ") + `.
An argument containing a slash is read as a path on the dock.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if len(args) == 2 {
				target = args[1]
			}
			return a.registry.Logs.Tail(cmd.Context(), args[0], target, follow, a.out, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	return cmd
}
