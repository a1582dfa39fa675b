package tunnel

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/benmeehan/docks/pkg/process"
)

// localHost is the address every tunnel binds on.
const localHost = "127.0.0.1"

// Kind selects the mechanism that implements a tunnel.
type Kind int

const (
	// SSH forwards through an `ssh -N -L` helper process.
	SSH Kind = iota
	// PortForward forwards through a `kubectl port-forward` helper process.
	PortForward
	// NativeSSH forwards through an in-process SSH client.
	NativeSSH
)

func (k Kind) String() string {
	switch k {
	case SSH:
		return "ssh"
	case PortForward:
		return "port-forward"
	case NativeSSH:
		return "native-ssh"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses the configuration spelling of a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ssh":
		return SSH, nil
	case "port-forward", "port_forward", "kubectl":
		return PortForward, nil
	case "native-ssh", "native_ssh", "native":
		return NativeSSH, nil
	default:
		return SSH, fmt.Errorf("unknown tunnel kind %q", s)
	}
}

// UnmarshalYAML lets configuration files spell kinds as strings.
func (k *Kind) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML writes kinds the way UnmarshalYAML reads them.
func (k Kind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// Config identifies where a tunnel connects and what implements it.
// For PortForward, RemoteHost is the pod name.
type Config struct {
	RemoteHost  string
	RemotePort  int
	LocalPort   int // 0 allocates a free port
	Kind        Kind
	KubeContext string
	Namespace   string
}

// Remote returns the remote side as host:port.
func (c Config) Remote() string {
	return net.JoinHostPort(c.RemoteHost, strconv.Itoa(c.RemotePort))
}

func (c Config) String() string {
	return fmt.Sprintf("%s 127.0.0.1:%d -> %s", c.Kind, c.LocalPort, c.Remote())
}

// withLocalPort returns a copy of c bound to port.
func (c Config) withLocalPort(port int) Config {
	c.LocalPort = port
	return c
}

// Endpoint is the local side of a ready tunnel.
type Endpoint struct {
	Host string
	Port int
}

// Addr returns the endpoint as host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func localEndpoint(port int) Endpoint {
	return Endpoint{Host: localHost, Port: port}
}

// State is the lifecycle state of a Handle.
type State int

const (
	Connecting State = iota
	Ready
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handle is a tunnel owned by a single operation.
type Handle struct {
	Config  Config
	Process process.Handle
	state   State
}

// State returns the current lifecycle state.
func (h *Handle) State() State { return h.state }
