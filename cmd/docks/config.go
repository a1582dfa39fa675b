package main

import (
	"fmt"

	"github.com/benmeehan/docks/internal/utils"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the docks configuration file",
		// The configuration may not exist yet, so nothing is wired here.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file holding the defaults",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := a.configPath
			if path == "" {
				path = utils.DefaultConfigPath()
			}
			exists, err := a.fileClient.IsFileExists(path)
			if err != nil {
				return fmt.Errorf("failed to stat config file %s: %w", path, err)
			}
			if exists && !force {
				return fmt.Errorf("config file %s already exists, use --force to overwrite it", path)
			}
			if err := a.fileClient.WriteYamlFile(path, utils.DefaultConfig()); err != nil {
				a.logger.Error().Err(err).Str("path", path).Msg("Failed to write configuration")
				return err
			}
			fmt.Fprintf(a.out, "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
