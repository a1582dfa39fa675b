package tunnel

import (
	"context"
	"fmt"

	"github.com/benmeehan/docks/pkg/process"
)

// Opener starts the mechanism behind one tunnel kind. The returned handle
// must be terminated by the caller.
type Opener interface {
	Open(ctx context.Context, cfg Config) (process.Handle, error)
}

// HelperOpener opens tunnels by spawning an external helper (ssh or kubectl).
type HelperOpener struct {
	Spawner process.Spawner
	// Binary is the helper executable, "ssh" or "kubectl" when empty.
	Binary string
	// ExtraArgs are placed before the generated arguments, e.g. "-i key" for ssh.
	ExtraArgs []string
}

// NewSSHOpener creates a HelperOpener for SSH tunnels.
func NewSSHOpener(spawner process.Spawner, binary string, extraArgs ...string) *HelperOpener {
	if binary == "" {
		binary = "ssh"
	}
	return &HelperOpener{Spawner: spawner, Binary: binary, ExtraArgs: extraArgs}
}

// NewPortForwardOpener creates a HelperOpener for cluster port-forwards.
func NewPortForwardOpener(spawner process.Spawner, binary string, extraArgs ...string) *HelperOpener {
	if binary == "" {
		binary = "kubectl"
	}
	return &HelperOpener{Spawner: spawner, Binary: binary, ExtraArgs: extraArgs}
}

// Open spawns the helper for cfg.
func (o *HelperOpener) Open(ctx context.Context, cfg Config) (process.Handle, error) {
	args, err := HelperArgs(cfg)
	if err != nil {
		return nil, err
	}
	return o.Spawner.Spawn(ctx, o.Binary, append(append([]string{}, o.ExtraArgs...), args...)...)
}

// HelperArgs builds the helper command line for cfg.
//
// SSH forwards to the remote service on the SSH host's loopback, which is how
// the backing services are bound.
func HelperArgs(cfg Config) ([]string, error) {
	if cfg.RemoteHost == "" {
		return nil, fmt.Errorf("tunnel %s: remote host is required", cfg.Kind)
	}
	if cfg.LocalPort <= 0 || cfg.RemotePort <= 0 {
		return nil, fmt.Errorf("tunnel %s: local and remote ports are required", cfg.Kind)
	}

	switch cfg.Kind {
	case SSH:
		return []string{
			"-N",
			"-o", "ExitOnForwardFailure=yes",
			"-o", "BatchMode=yes",
			"-L", fmt.Sprintf("%s:%d:localhost:%d", localHost, cfg.LocalPort, cfg.RemotePort),
			cfg.RemoteHost,
		}, nil
	case PortForward:
		var args []string
		if cfg.KubeContext != "" {
			args = append(args, "--context", cfg.KubeContext)
		}
		if cfg.Namespace != "" {
			args = append(args, "--namespace", cfg.Namespace)
		}
		return append(args,
			"port-forward",
			"--address", localHost,
			cfg.RemoteHost,
			fmt.Sprintf("%d:%d", cfg.LocalPort, cfg.RemotePort),
		), nil
	default:
		return nil, fmt.Errorf("tunnel kind %s has no helper process", cfg.Kind)
	}
}
