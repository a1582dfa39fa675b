package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	gprocess "github.com/shirou/gopsutil/process"
)

// ErrStillRunning is returned by Terminate when the process outlived SIGKILL.
var ErrStillRunning = errors.New("process still running after kill")

// killWait bounds how long Terminate waits for the exit that follows SIGKILL.
const killWait = time.Second

// Handle is a long-lived helper whose only observable outputs are its exit
// and its diagnostics.
type Handle interface {
	// Describe returns a short human readable description, e.g. "ssh[1234]".
	Describe() string
	// Done is closed once the helper has exited.
	Done() <-chan struct{}
	// Err returns the exit error once Done is closed.
	Err() error
	// Stderr returns what the helper wrote to stderr so far.
	Stderr() string
	// Terminate asks the helper to stop, escalating to a kill after grace.
	// It returns only after the helper has exited or the kill failed.
	Terminate(grace time.Duration) error
}

// Spawner starts helper processes.
type Spawner interface {
	Spawn(ctx context.Context, name string, args ...string) (Handle, error)
}

// ExecSpawner spawns helpers with os/exec. Helper stdout is discarded
// unless Stdout is set; stderr is always captured for Handle.Stderr and
// also copied to Stderr when set.
type ExecSpawner struct {
	Logger zerolog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecSpawner creates a new ExecSpawner.
func NewExecSpawner(logger zerolog.Logger) *ExecSpawner {
	return &ExecSpawner{Logger: logger}
}

// WithOutput returns a spawner whose helpers stream to stdout and stderr.
func (s *ExecSpawner) WithOutput(stdout, stderr io.Writer) Spawner {
	return &ExecSpawner{Logger: s.Logger, Stdout: stdout, Stderr: stderr}
}

// Spawn starts name with args. The context only bounds the start itself; the
// helper outlives it until Terminate is called.
func (s *ExecSpawner) Spawn(ctx context.Context, name string, args ...string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := exec.LookPath(name)
	if err != nil {
		s.Logger.Error().Err(err).Str("helper", name).Msg("Helper executable not found")
		return nil, fmt.Errorf("failed to find %s: %w", name, err)
	}

	cmd := exec.Command(path, args...)
	h := &execHandle{
		cmd:    cmd,
		name:   name,
		done:   make(chan struct{}),
		logger: s.Logger,
	}
	cmd.Stdout = s.Stdout
	cmd.Stderr = &h.stderr
	if s.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&h.stderr, s.Stderr)
	}
	// Grandchildren holding stderr open must not keep Wait from returning.
	cmd.WaitDelay = killWait

	if err := cmd.Start(); err != nil {
		s.Logger.Error().Err(err).Str("helper", name).Msg("Failed to start helper")
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	go func() {
		h.err = cmd.Wait()
		close(h.done)
	}()

	s.Logger.Debug().Str("helper", h.Describe()).Strs("args", args).Msg("Helper started")
	return h, nil
}

// execHandle is a Handle over an os/exec command.
type execHandle struct {
	cmd    *exec.Cmd
	name   string
	stderr lockedBuffer
	done   chan struct{}
	err    error
	logger zerolog.Logger
}

func (h *execHandle) Describe() string {
	return fmt.Sprintf("%s[%d]", h.name, h.cmd.Process.Pid)
}

func (h *execHandle) Done() <-chan struct{} { return h.done }

func (h *execHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

func (h *execHandle) Stderr() string {
	return strings.TrimSpace(h.stderr.String())
}

func (h *execHandle) Terminate(grace time.Duration) error {
	select {
	case <-h.done:
		return nil
	default:
	}

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		h.logger.Debug().Err(err).Str("helper", h.Describe()).Msg("SIGTERM failed, killing")
	} else {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-h.done:
			return nil
		case <-timer.C:
			h.logger.Warn().Str("helper", h.Describe()).Dur("grace", grace).Msg("Helper ignored SIGTERM, killing")
		}
	}

	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		select {
		case <-h.done:
			return nil
		default:
		}
		return fmt.Errorf("failed to kill %s: %w", h.Describe(), err)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(killWait):
	}

	// The reaper may lag behind the kernel; trust the process table.
	alive, err := gprocess.PidExists(int32(h.cmd.Process.Pid))
	if err == nil && !alive {
		return nil
	}
	return fmt.Errorf("%s: %w", h.Describe(), ErrStillRunning)
}

// lockedBuffer is a bytes.Buffer safe for the writer goroutine of os/exec
// and concurrent readers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
