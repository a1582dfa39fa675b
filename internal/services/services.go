package services

import (
	"cmp"
	"errors"
	"net/netip"
	"strconv"
	"strings"

	"github.com/benmeehan/docks/internal/utils"
	"github.com/benmeehan/docks/pkg/tunnel"
)

// ErrDockNotFound is returned when a lookup by id or ip finds no unique dock.
var ErrDockNotFound = errors.New("dock not found")

// hostTunnel builds the tunnel to a service listening on host's loopback.
func hostTunnel(config *utils.Config, host string, st utils.ServiceTunnel) *tunnel.Config {
	return &tunnel.Config{
		RemoteHost: host,
		RemotePort: st.RemotePort,
		LocalPort:  st.LocalPort,
		Kind:       config.Tunnels.Kind,
	}
}

// compareDocks orders docks by org, then by IP. Numeric orgs compare as
// numbers and sort before named ones; the shared "default" pool sorts last.
func compareDocks(orgA, ipA, orgB, ipB string) int {
	if c := compareOrgs(orgA, orgB); c != 0 {
		return c
	}
	return compareIPs(ipA, ipB)
}

func compareOrgs(a, b string) int {
	defA, defB := strings.EqualFold(a, "default"), strings.EqualFold(b, "default")
	switch {
	case defA && defB:
		return 0
	case defA:
		return 1
	case defB:
		return -1
	}
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func compareIPs(a, b string) int {
	addrA, errA := netip.ParseAddr(a)
	addrB, errB := netip.ParseAddr(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return addrA.Compare(addrB)
}
