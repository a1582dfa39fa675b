package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWeaveCmd(a *app) *cobra.Command {
	var org string
	cmd := &cobra.Command{
		Use:   "weave",
		Short: "List the weave peers of an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			peers, err := a.registry.KV.WeavePeers(cmd.Context(), a.env, org)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(peers))
			for _, ip := range peers {
				rows = append(rows, []string{ip})
			}
			return a.render(peers, []string{"IP"}, rows)
		},
	}
	cmd.PersistentFlags().StringVar(&org, "org", "", "GitHub organization ID")
	_ = cmd.MarkPersistentFlagRequired("org")

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <ip>",
		Short: "Remove a dock from its organization's weave network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip := args[0]
			question := fmt.Sprintf("Are you sure you wish to remove %s from the weave network of org %s?", ip, org)
			if err := a.confirm(question, "Aborted weave removal"); err != nil {
				return err
			}
			res, err := a.registry.KV.RemoveFromWeave(cmd.Context(), a.env, org, ip, a.dry)
			if err != nil {
				return err
			}
			report(a, res)
			return nil
		},
	})
	return cmd
}
