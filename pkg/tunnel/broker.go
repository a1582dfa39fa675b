package tunnel

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTeardownGrace = 5 * time.Second
	defaultProbeTimeout  = 5 * time.Second
	defaultProbeInterval = 100 * time.Millisecond
)

// Options tune a single WithTunnel call.
type Options struct {
	// SettleDelay is waited after spawning, since helpers have no ready signal.
	SettleDelay time.Duration
	// DryRun skips the settle delay and the health probe.
	DryRun bool
}

// Prober checks that a tunnel endpoint accepts connections.
type Prober interface {
	Probe(ctx context.Context, endpoint Endpoint) error
}

// TCPProber dials the endpoint until it accepts or the context ends.
type TCPProber struct {
	Interval time.Duration
}

// Probe implements Prober.
func (p TCPProber) Probe(ctx context.Context, endpoint Endpoint) error {
	interval := p.Interval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	var dialer net.Dialer
	for {
		conn, err := dialer.DialContext(ctx, "tcp", endpoint.Addr())
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("endpoint %s not accepting connections: %w", endpoint.Addr(), err)
		case <-time.After(interval):
		}
	}
}

// Broker hands out scoped tunnels.
type Broker struct {
	openers      map[Kind]Opener
	ports        *PortPool
	prober       Prober
	grace        time.Duration
	probeTimeout time.Duration
	logger       zerolog.Logger
}

// NewBroker creates a Broker. Zero durations fall back to defaults.
func NewBroker(ports *PortPool, prober Prober, grace, probeTimeout time.Duration, logger zerolog.Logger) *Broker {
	if ports == nil {
		ports = NewPortPool()
	}
	if grace == 0 {
		grace = defaultTeardownGrace
	}
	if probeTimeout == 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &Broker{
		openers:      make(map[Kind]Opener),
		ports:        ports,
		prober:       prober,
		grace:        grace,
		probeTimeout: probeTimeout,
		logger:       logger,
	}
}

// Register sets the Opener used for kind.
func (b *Broker) Register(kind Kind, opener Opener) {
	b.openers[kind] = opener
}

// WithTunnel opens a tunnel for cfg, waits for it to become usable, runs body
// with the local endpoint and tears the tunnel down on every exit path,
// including panics and cancellation. Teardown failures are logged and never
// replace body's result.
func WithTunnel[T any](ctx context.Context, b *Broker, cfg Config, opts Options, body func(ctx context.Context, endpoint Endpoint) (T, error)) (T, error) {
	var zero T

	h, err := b.acquire(ctx, cfg)
	if err != nil {
		return zero, err
	}
	defer b.release(h)

	if err := b.await(ctx, h, opts); err != nil {
		h.state = Failed
		return zero, err
	}
	h.state = Ready

	endpoint := localEndpoint(h.Config.LocalPort)
	b.logger.Debug().Str("tunnel", h.Config.String()).Bool("dry_run", opts.DryRun).Msg("Tunnel ready")

	v, err := body(ctx, endpoint)
	if err != nil {
		return zero, &Error{Kind: BodyFailed, Config: h.Config, Err: err}
	}
	return v, nil
}

// acquire reserves the local port and starts the tunnel mechanism.
func (b *Broker) acquire(ctx context.Context, cfg Config) (*Handle, error) {
	owner := cfg.Remote()

	port := cfg.LocalPort
	var err error
	if port == 0 {
		port, err = b.ports.Allocate(owner)
	} else {
		err = b.ports.Reserve(port, owner)
	}
	if err != nil {
		b.logger.Error().Err(err).Str("remote", owner).Int("local_port", cfg.LocalPort).Msg("Failed to reserve local port")
		return nil, &Error{Kind: SpawnFailed, Config: cfg, Err: err}
	}
	cfg = cfg.withLocalPort(port)

	opener, ok := b.openers[cfg.Kind]
	if !ok {
		b.ports.Release(port)
		return nil, &Error{Kind: SpawnFailed, Config: cfg, Err: fmt.Errorf("no opener registered for %s", cfg.Kind)}
	}

	b.logger.Info().Str("tunnel", cfg.String()).Msg("Opening tunnel")
	proc, err := opener.Open(ctx, cfg)
	if err != nil {
		b.ports.Release(port)
		b.logger.Error().Err(err).Str("tunnel", cfg.String()).Msg("Failed to open tunnel")
		return nil, &Error{Kind: SpawnFailed, Config: cfg, Err: err}
	}

	return &Handle{Config: cfg, Process: proc, state: Connecting}, nil
}

// await waits out the settle delay and probes the endpoint.
func (b *Broker) await(ctx context.Context, h *Handle, opts Options) error {
	if opts.DryRun {
		return nil
	}

	if opts.SettleDelay > 0 {
		timer := time.NewTimer(opts.SettleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.Process.Done():
			return b.exitedEarly(h)
		case <-timer.C:
		}
	}

	if b.prober == nil {
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, b.probeTimeout)
	defer cancel()
	if err := b.prober.Probe(probeCtx, localEndpoint(h.Config.LocalPort)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-h.Process.Done():
			return b.exitedEarly(h)
		default:
		}
		b.logger.Error().Err(err).Str("tunnel", h.Config.String()).Dur("timeout", b.probeTimeout).Msg("Tunnel did not become ready")
		return &Error{Kind: ConnectTimeout, Config: h.Config, Err: err}
	}
	return nil
}

func (b *Broker) exitedEarly(h *Handle) error {
	err := fmt.Errorf("%s exited before the tunnel was ready: %v", h.Process.Describe(), h.Process.Err())
	if stderr := h.Process.Stderr(); stderr != "" {
		err = fmt.Errorf("%w (stderr: %s)", err, stderr)
	}
	b.logger.Error().Err(err).Str("tunnel", h.Config.String()).Msg("Tunnel helper exited early")
	return &Error{Kind: SpawnFailed, Config: h.Config, Err: err}
}

// release terminates the mechanism exactly once and frees the local port. It
// deliberately ignores the caller's context so cancellation cannot leak the
// helper.
func (b *Broker) release(h *Handle) {
	defer b.ports.Release(h.Config.LocalPort)

	if err := h.Process.Terminate(b.grace); err != nil {
		h.state = Failed
		terr := &Error{Kind: TeardownFailed, Config: h.Config, Err: err}
		b.logger.Error().Err(terr).Str("helper", h.Process.Describe()).Msg("Failed to tear down tunnel")
		return
	}

	if h.state != Failed {
		h.state = Closed
	}
	b.logger.Info().Str("tunnel", h.Config.String()).Msg("Tunnel closed")
}
