package operation

import (
	"context"
	"time"

	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/benmeehan/docks/pkg/tunnel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Request describes one remote operation.
type Request struct {
	Name string
	// Tunnel is the endpoint to reach. Nil runs the work directly, for
	// services that are reachable without a tunnel.
	Tunnel      *tunnel.Config
	SettleDelay time.Duration
	Intent      dryrun.Intent
}

// Session is what a unit of work gets to talk to the remote side.
type Session struct {
	ID       string
	Endpoint tunnel.Endpoint
	Intent   dryrun.Intent
	Gate     *dryrun.Gate
	Logger   zerolog.Logger
}

// Runner executes operations against a broker and a dry-run gate.
type Runner struct {
	broker *tunnel.Broker
	gate   *dryrun.Gate
	logger zerolog.Logger
}

// NewRunner creates a new Runner.
func NewRunner(broker *tunnel.Broker, gate *dryrun.Gate, logger zerolog.Logger) *Runner {
	return &Runner{broker: broker, gate: gate, logger: logger}
}

// Execute runs work inside the tunnel described by req. The tunnel is torn
// down before Execute returns; an error from work is returned after that with
// its message unchanged.
func Execute[R any](ctx context.Context, r *Runner, req Request, work func(ctx context.Context, s Session) (R, error)) (R, error) {
	id := uuid.NewString()
	logger := r.logger.With().Str("op", id).Str("operation", req.Name).Str("intent", req.Intent.Kind.String()).Logger()
	session := Session{ID: id, Intent: req.Intent, Gate: r.gate, Logger: logger}

	start := time.Now()
	logger.Debug().Bool("dry_run", req.Intent.DryRun).Msg("Starting operation")

	var (
		v   R
		err error
	)
	if req.Tunnel == nil {
		v, err = work(ctx, session)
	} else {
		// Reads run for real even in dry-run mode, so only a skipped
		// mutation may skip readiness.
		opts := tunnel.Options{SettleDelay: req.SettleDelay, DryRun: req.Intent.Skips()}
		v, err = tunnel.WithTunnel(ctx, r.broker, *req.Tunnel, opts, func(ctx context.Context, endpoint tunnel.Endpoint) (R, error) {
			s := session
			s.Endpoint = endpoint
			return work(ctx, s)
		})
	}

	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Operation failed")
		return v, err
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("Operation finished")
	return v, nil
}

// Guard runs action through the session's gate with the session's intent.
func Guard[R any](ctx context.Context, s Session, action dryrun.Action[R]) (dryrun.Result[R], error) {
	return dryrun.Guard(ctx, s.Gate, s.Intent, action)
}
