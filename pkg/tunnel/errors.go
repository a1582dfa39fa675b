package tunnel

import (
	"errors"
	"fmt"
)

// ErrorKind classifies tunnel failures.
type ErrorKind int

const (
	SpawnFailed ErrorKind = iota + 1
	ConnectTimeout
	BodyFailed
	TeardownFailed
)

func (k ErrorKind) String() string {
	switch k {
	case SpawnFailed:
		return "spawn failed"
	case ConnectTimeout:
		return "connect timeout"
	case BodyFailed:
		return "body failed"
	case TeardownFailed:
		return "teardown failed"
	default:
		return "unknown tunnel error"
	}
}

// Sentinels for errors.Is against an *Error of the matching kind.
var (
	ErrSpawnFailed    = errors.New("tunnel spawn failed")
	ErrConnectTimeout = errors.New("tunnel connect timeout")
	ErrBodyFailed     = errors.New("tunnel body failed")
	ErrTeardownFailed = errors.New("tunnel teardown failed")
)

// ErrLocalPortReserved is returned when another tunnel in this process holds the port.
var ErrLocalPortReserved = errors.New("local port is already reserved by another active tunnel")

// ErrPortInUse is returned when something outside this process holds the port.
var ErrPortInUse = errors.New("local port already in use")

// Error is returned by WithTunnel.
type Error struct {
	Kind   ErrorKind
	Config Config
	Err    error
}

func (e *Error) Error() string {
	// Body errors belong to the caller and surface unchanged.
	if e.Kind == BodyFailed && e.Err != nil {
		return e.Err.Error()
	}
	if e.Err == nil {
		return fmt.Sprintf("tunnel %s: %s", e.Config, e.Kind)
	}
	return fmt.Sprintf("tunnel %s: %s: %v", e.Config, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSpawnFailed:
		return e.Kind == SpawnFailed
	case ErrConnectTimeout:
		return e.Kind == ConnectTimeout
	case ErrBodyFailed:
		return e.Kind == BodyFailed
	case ErrTeardownFailed:
		return e.Kind == TeardownFailed
	}
	return false
}
