package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/internal/utils"
	"github.com/benmeehan/docks/pkg/process"
	"github.com/rs/zerolog"
)

// OutputSpawner starts helpers whose output streams to the given writers.
type OutputSpawner interface {
	WithOutput(stdout, stderr io.Writer) process.Spawner
}

// LogsService tails dock service logs over ssh.
type LogsService struct {
	spawner OutputSpawner
	config  *utils.Config
	logger  zerolog.Logger
}

// NewLogsService creates a new LogsService.
func NewLogsService(spawner OutputSpawner, config *utils.Config, logger zerolog.Logger) *LogsService {
	return &LogsService{spawner: spawner, config: config, logger: logger}
}

// ResolveLogPath maps a service name to its log file. A target containing a
// slash is taken as a path; an empty one is the dock-init log.
func ResolveLogPath(target string) (string, error) {
	if target == "" {
		target = constants.DefaultLogService
	}
	if strings.Contains(target, "/") {
		return target, nil
	}
	if path, ok := constants.LogPaths[target]; ok {
		return path, nil
	}
	return "", fmt.Errorf("unknown service %q, expected a path or one of: %s", target, strings.Join(LogServices(), ", "))
}

// LogServices lists the services with a known log path.
func LogServices() []string {
	names := make([]string, 0, len(constants.LogPaths))
	for name := range constants.LogPaths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tail prints the log of target on the dock at ip. With follow it streams
// until ctx is cancelled, which ends the tail without an error.
func (ls *LogsService) Tail(ctx context.Context, ip, target string, follow bool, stdout, stderr io.Writer) error {
	path, err := ResolveLogPath(target)
	if err != nil {
		return err
	}

	remote := "sudo tail " + path
	if follow {
		remote = "sudo tail -F " + path
	}
	args := append(append([]string{}, ls.config.Tunnels.SSHArgs...), ip, remote)

	h, err := ls.spawner.WithOutput(stdout, stderr).Spawn(ctx, ls.config.Tunnels.SSHBinary, args...)
	if err != nil {
		return err
	}
	ls.logger.Debug().Str("helper", h.Describe()).Str("path", path).Msg("Tailing log")

	select {
	case <-h.Done():
		if err := h.Err(); err != nil {
			return fmt.Errorf("failed to tail %s on %s: %w", path, ip, err)
		}
		return nil
	case <-ctx.Done():
		if err := h.Terminate(ls.config.Tunnels.TeardownGrace); err != nil {
			ls.logger.Warn().Err(err).Str("helper", h.Describe()).Msg("Failed to stop log tail")
			return err
		}
		return nil
	}
}
