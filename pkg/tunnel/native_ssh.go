package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/benmeehan/docks/pkg/process"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// NativeSSHOpener opens SSH local forwards in-process instead of spawning ssh.
type NativeSSHOpener struct {
	User    string
	Port    int
	Timeout time.Duration
	Logger  zerolog.Logger

	signer  ssh.Signer
	hostKey ssh.PublicKey
}

// NewNativeSSHOpener parses the client private key and, when given, the
// server's public key in authorized_keys format.
func NewNativeSSHOpener(user string, privateKey, serverPublicKey []byte, port int, timeout time.Duration, logger zerolog.Logger) (*NativeSSHOpener, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse SSH private key")
		return nil, fmt.Errorf("failed to parse SSH private key: %w", err)
	}

	o := &NativeSSHOpener{
		User:    user,
		Port:    port,
		Timeout: timeout,
		Logger:  logger,
		signer:  signer,
	}
	if o.Port == 0 {
		o.Port = 22
	}

	if len(serverPublicKey) > 0 {
		hostKey, _, _, _, err := ssh.ParseAuthorizedKey(serverPublicKey)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to parse SSH server public key")
			return nil, fmt.Errorf("failed to parse SSH server public key: %w", err)
		}
		o.hostKey = hostKey
	}
	return o, nil
}

func (o *NativeSSHOpener) clientConfig() *ssh.ClientConfig {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if o.hostKey != nil {
		hostKeyCallback = ssh.FixedHostKey(o.hostKey)
	} else {
		o.Logger.Warn().Msg("No SSH server public key configured, host key is not verified")
	}
	return &ssh.ClientConfig{
		User:            o.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(o.signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         o.Timeout,
	}
}

// Open dials the SSH host and starts forwarding the local port.
func (o *NativeSSHOpener) Open(ctx context.Context, cfg Config) (process.Handle, error) {
	serverAddr := net.JoinHostPort(cfg.RemoteHost, strconv.Itoa(o.Port))
	clientConfig := o.clientConfig()

	dialer := net.Dialer{Timeout: o.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		o.Logger.Error().Err(err).Str("server_addr", serverAddr).Msg("Failed to reach SSH server")
		return nil, fmt.Errorf("failed to reach SSH server: %w", err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, serverAddr, clientConfig)
	if err != nil {
		conn.Close()
		o.Logger.Error().Err(err).Str("server_addr", serverAddr).Msg("Failed to establish SSH connection")
		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	listener, err := net.Listen("tcp", net.JoinHostPort(localHost, strconv.Itoa(cfg.LocalPort)))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to listen on local port %d: %w", cfg.LocalPort, err)
	}

	h := &nativeHandle{
		host:     cfg.RemoteHost,
		target:   net.JoinHostPort("localhost", strconv.Itoa(cfg.RemotePort)),
		client:   client,
		listener: listener,
		done:     make(chan struct{}),
		logger:   o.Logger,
	}
	go h.wait()
	go h.acceptConnections()

	o.Logger.Debug().Str("server_addr", serverAddr).Int("local_port", cfg.LocalPort).Msg("Native SSH forward started")
	return h, nil
}

// sshClient is the part of *ssh.Client a forward uses.
type sshClient interface {
	Dial(network, addr string) (net.Conn, error)
	Wait() error
	Close() error
}

// nativeHandle satisfies process.Handle for an in-process forward.
type nativeHandle struct {
	host     string
	target   string
	client   sshClient
	listener net.Listener
	conns    sync.WaitGroup
	done     chan struct{}
	err      error
	stopOnce sync.Once
	logger   zerolog.Logger

	mu     sync.Mutex
	closed bool // no connection is tracked once set
}

func (h *nativeHandle) Describe() string { return "native-ssh[" + h.host + "]" }

func (h *nativeHandle) Done() <-chan struct{} { return h.done }

func (h *nativeHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

func (h *nativeHandle) Stderr() string { return "" }

// wait closes done once the SSH connection is gone.
func (h *nativeHandle) wait() {
	h.err = h.client.Wait()
	h.stop()
	close(h.done)
}

func (h *nativeHandle) stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		h.listener.Close()
		h.client.Close()
	})
}

func (h *nativeHandle) Terminate(grace time.Duration) error {
	h.stop()

	drained := make(chan struct{})
	go func() {
		<-h.done
		h.conns.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-time.After(grace):
		return fmt.Errorf("%s: connections still open after %s", h.Describe(), grace)
	}
}

func (h *nativeHandle) acceptConnections() {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				h.logger.Error().Err(err).Msg("Listener accept failed")
			}
			return
		}
		if !h.track() {
			conn.Close()
			return
		}
		go func() {
			defer h.conns.Done()
			h.forwardConnection(conn)
		}()
	}
}

// track registers a connection unless the handle is stopping, so that
// Terminate's wait never races a late Add.
func (h *nativeHandle) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns.Add(1)
	return true
}

// forwardConnection forwards data between a local connection and the remote target.
func (h *nativeHandle) forwardConnection(conn net.Conn) {
	defer conn.Close()

	remote, err := h.client.Dial("tcp", h.target)
	if err != nil {
		h.logger.Error().Err(err).Str("target", h.target).Msg("Failed to dial through SSH")
		return
	}
	defer remote.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	copyFunc := func(dst io.WriteCloser, src io.Reader, name string) {
		defer wg.Done()
		_, err := io.Copy(dst, src)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			h.logger.Debug().Err(err).Str("name", name).Msg("Error during copy")
		}
		dst.Close()
	}

	go copyFunc(remote, conn, "local→remote")
	go copyFunc(conn, remote, "remote→local")

	wg.Wait()
}
