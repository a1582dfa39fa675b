package tunnel

import (
	"fmt"
	"net"
	"strconv"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// PortPool tracks which local ports are held by live tunnels in this process.
type PortPool struct {
	reserved cmap.ConcurrentMap[string, string]
}

// NewPortPool creates an empty PortPool.
func NewPortPool() *PortPool {
	return &PortPool{reserved: cmap.New[string]()}
}

// Reserve claims port for owner. The port must also be free at the OS level.
func (p *PortPool) Reserve(port int, owner string) error {
	key := strconv.Itoa(port)
	if !p.reserved.SetIfAbsent(key, owner) {
		holder, _ := p.reserved.Get(key)
		return fmt.Errorf("%w: port %d held by %s", ErrLocalPortReserved, port, holder)
	}
	if !isPortAvailable(port) {
		p.reserved.Remove(key)
		return fmt.Errorf("%w: port %d", ErrPortInUse, port)
	}
	return nil
}

// Allocate picks a free ephemeral port and reserves it for owner.
func (p *PortPool) Allocate(owner string) (int, error) {
	for attempt := 0; attempt < 8; attempt++ {
		l, err := net.Listen("tcp", net.JoinHostPort(localHost, "0"))
		if err != nil {
			return 0, fmt.Errorf("failed to allocate local port: %w", err)
		}
		port := l.Addr().(*net.TCPAddr).Port
		_ = l.Close()

		if p.reserved.SetIfAbsent(strconv.Itoa(port), owner) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("failed to allocate local port: %w", ErrLocalPortReserved)
}

// Release frees port. Releasing an unreserved port is a no-op.
func (p *PortPool) Release(port int) {
	p.reserved.Remove(strconv.Itoa(port))
}

// Reserved reports whether port is currently held.
func (p *PortPool) Reserved(port int) bool {
	return p.reserved.Has(strconv.Itoa(port))
}

// Count returns the number of held ports.
func (p *PortPool) Count() int {
	return p.reserved.Count()
}

// isPortAvailable checks if a TCP port is available to listen on localhost.
func isPortAvailable(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort(localHost, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
