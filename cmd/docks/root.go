package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/benmeehan/docks/internal/service_registry"
	"github.com/benmeehan/docks/internal/utils"
	"github.com/benmeehan/docks/pkg/file"
	"github.com/benmeehan/docks/pkg/process"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries the global flags and the wired services to every command.
type app struct {
	env        string
	configPath string
	output     string
	dry        bool
	verbose    bool
	yes        bool

	in         io.Reader
	reader     *bufio.Reader
	out        io.Writer
	fileClient file.FileOperations
	spawner    process.Spawner
	registry   *service_registry.ServiceRegistry
	logger     zerolog.Logger
}

func newApp() *app {
	return &app{
		in:         os.Stdin,
		out:        os.Stdout,
		fileClient: file.NewFileService(),
		logger:     zerolog.Nop(),
	}
}

// newRootCmd creates the root docks command
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docks",
		Short: "Inspect and manage the docks of an environment",
		Long: `docks lists, inspects and retires the docks serving an environment.

Every backing service is reached through a tunnel that is opened for a single
command and always torn down afterwards. Commands that change something ask
for confirmation and accept --dry to only show what they would do.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	// Global persistent flags
	rootCmd.PersistentFlags().StringVarP(&a.env, "env", "e", "", "Environment to operate on (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&a.dry, "dry", "d", false, "Dry run, do not change anything")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to the config file (default ~/.docks/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "Output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log tunnel and request details")
	rootCmd.PersistentFlags().BoolVarP(&a.yes, "yes", "y", false, "Answer yes to every confirmation")

	// Add subcommands
	rootCmd.AddCommand(
		newListCmd(a),
		newAWSCmd(a),
		newASGCmd(a),
		newContainersCmd(a),
		newSwarmCmd(a),
		newWeaveCmd(a),
		newRemoveCmd(a),
		newTerminateCmd(a),
		newKillCmd(a),
		newProvisionCmd(a),
		newGhostCmd(a),
		newLogsCmd(a),
		newUnhealthyCmd(a),
		newKhronosCmd(a),
		newUpdateCmd(a),
		newConfigCmd(a),
	)

	return rootCmd
}

// setup loads the configuration, resolves the environment and wires the
// services. A registry that is already set is kept.
func (a *app) setup(cmd *cobra.Command) error {
	a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)

	if a.registry == nil {
		path, required := a.configPath, a.configPath != ""
		if !required {
			path = utils.DefaultConfigPath()
		}
		config, err := utils.LoadConfig(path, required, a.fileClient)
		if err != nil {
			a.logger.Error().Err(err).Str("path", path).Msg("Failed to load configuration")
			return err
		}

		spawner := a.spawner
		if spawner == nil {
			spawner = process.NewExecSpawner(a.logger)
		}
		registry := service_registry.NewServiceRegistry(config, a.fileClient, spawner, a.logger)
		if err := registry.RegisterOpeners(); err != nil {
			return err
		}
		registry.RegisterServices()
		a.registry = registry
	}

	name, _ := a.registry.Config.Environment(a.env)
	if a.env != "" && name != a.env {
		a.logger.Warn().Str("env", a.env).Str("using", name).Msg("Unknown environment, using default")
	}
	a.env = name

	if cmd.Name() != "update" {
		a.checkRelease(cmd.Context())
	}
	return nil
}

// checkRelease tells the user about a newer release. Failures never stop the
// command.
func (a *app) checkRelease(ctx context.Context) {
	updates := a.registry.Config.Updates
	if !updates.Enabled || updates.Repository == "" {
		return
	}
	status, err := a.registry.Release.Check(ctx, false)
	if err != nil {
		a.logger.Debug().Err(err).Msg("Release check failed")
		return
	}
	if status.UpdateAvailable {
		a.logger.Warn().
			Str("current", status.Current.String()).
			Str("latest", status.Latest.String()).
			Msg("A newer release is available, run `docks update`")
	}
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
