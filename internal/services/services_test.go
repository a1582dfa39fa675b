package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benmeehan/docks/internal/operation"
	"github.com/benmeehan/docks/internal/utils"
	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/benmeehan/docks/pkg/process"
	"github.com/benmeehan/docks/pkg/tunnel"
	"github.com/rs/zerolog"
)

// stubTunnels records every tunnel opened through it and counts teardowns.
type stubTunnels struct {
	mu           sync.Mutex
	opened       []tunnel.Config
	terminations atomic.Int32
}

type stubHandle struct {
	parent *stubTunnels
	once   sync.Once
	done   chan struct{}
}

func (h *stubHandle) Describe() string      { return "helper[1]" }
func (h *stubHandle) Done() <-chan struct{} { return h.done }
func (h *stubHandle) Err() error            { return nil }
func (h *stubHandle) Stderr() string        { return "" }
func (h *stubHandle) Terminate(time.Duration) error {
	h.parent.terminations.Add(1)
	h.once.Do(func() { close(h.done) })
	return nil
}

func (s *stubTunnels) Open(_ context.Context, cfg tunnel.Config) (process.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, cfg)
	return &stubHandle{parent: s, done: make(chan struct{})}, nil
}

func (s *stubTunnels) last() tunnel.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened[len(s.opened)-1]
}

// testConfig returns defaults with instant, OS-allocated tunnels.
func testConfig() *utils.Config {
	config := utils.DefaultConfig()
	for _, st := range []*utils.ServiceTunnel{&config.Tunnels.Broker, &config.Tunnels.Mongo, &config.Tunnels.Redis, &config.Tunnels.Swarm} {
		st.LocalPort = 0
		st.SettleDelay = time.Millisecond
	}
	config.Broker.ConnectTimeout = time.Second
	return config
}

func testRunner() (*operation.Runner, *stubTunnels) {
	tunnels := &stubTunnels{}
	broker := tunnel.NewBroker(tunnel.NewPortPool(), nil, time.Second, time.Second, zerolog.Nop())
	broker.Register(tunnel.SSH, tunnels)
	broker.Register(tunnel.PortForward, tunnels)
	return operation.NewRunner(broker, dryrun.NewGate(-1, zerolog.Nop()), zerolog.Nop()), tunnels
}
