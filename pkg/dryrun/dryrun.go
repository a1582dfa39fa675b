package dryrun

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPace is the minimum time a mutating call takes, real or not.
const DefaultPace = 250 * time.Millisecond

// Kind tells reads from mutations.
type Kind int

const (
	Read Kind = iota
	Mutate
)

func (k Kind) String() string {
	if k == Mutate {
		return "mutate"
	}
	return "read"
}

// Intent describes what an operation is about to do.
type Intent struct {
	Kind   Kind
	DryRun bool
}

// Skips reports whether a call with this intent must not touch anything.
func (i Intent) Skips() bool {
	return i.Kind == Mutate && i.DryRun
}

// Action is a guarded call. Preview is returned in place of Run's value when
// the call is skipped.
type Action[R any] struct {
	Description string
	Preview     R
	Run         func(ctx context.Context) (R, error)
}

// Result is the outcome of a guarded call. It has the same shape whether or
// not the call was performed.
type Result[R any] struct {
	Value       R
	Performed   bool
	Description string
	Elapsed     time.Duration
}

// Gate paces and logs mutating calls.
type Gate struct {
	Pace   time.Duration
	logger zerolog.Logger
}

// NewGate creates a Gate. A zero pace uses DefaultPace; a negative one
// disables pacing.
func NewGate(pace time.Duration, logger zerolog.Logger) *Gate {
	if pace == 0 {
		pace = DefaultPace
	}
	if pace < 0 {
		pace = 0
	}
	return &Gate{Pace: pace, logger: logger}
}

// Guard runs action according to intent. Reads always run. Mutations run
// exactly once unless intent is a dry run, in which case Run is never called
// and a "not performed" result carrying the preview is returned. Every mutate
// path, a failed one included, takes at least gate.Pace.
func Guard[R any](ctx context.Context, gate *Gate, intent Intent, action Action[R]) (Result[R], error) {
	start := time.Now()
	res := Result[R]{Description: action.Description}

	if intent.Kind == Read {
		v, err := action.Run(ctx)
		res.Elapsed = time.Since(start)
		if err != nil {
			return res, err
		}
		res.Value = v
		res.Performed = true
		return res, nil
	}

	if intent.DryRun {
		gate.logger.Warn().Str("action", action.Description).Msg("Not performed (dry run)")
		res.Value = action.Preview
	} else {
		gate.logger.Info().Str("action", action.Description).Msg("Performing")
		v, err := action.Run(ctx)
		if err != nil {
			gate.logger.Error().Err(err).Str("action", action.Description).Msg("Failed to perform action")
			_ = gate.pace(ctx, start)
			res.Elapsed = time.Since(start)
			return res, err
		}
		res.Value = v
		res.Performed = true
	}

	if err := gate.pace(ctx, start); err != nil {
		res.Elapsed = time.Since(start)
		return res, err
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// pace blocks until gate.Pace has passed since start.
func (g *Gate) pace(ctx context.Context, start time.Time) error {
	remaining := g.Pace - time.Since(start)
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
