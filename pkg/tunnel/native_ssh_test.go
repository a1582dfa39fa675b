package tunnel

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// echoClient stands in for an SSH connection whose remote target echoes.
type echoClient struct {
	once   sync.Once
	closed chan struct{}
}

func newEchoClient() *echoClient { return &echoClient{closed: make(chan struct{})} }

func (c *echoClient) Dial(string, string) (net.Conn, error) {
	local, remote := net.Pipe()
	go func() {
		defer remote.Close()
		_, _ = io.Copy(remote, remote)
	}()
	return local, nil
}

func (c *echoClient) Wait() error {
	<-c.closed
	return nil
}

func (c *echoClient) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func startNativeHandle(t *testing.T) *nativeHandle {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	h := &nativeHandle{
		host:     "10.4.1.7",
		target:   "localhost:2375",
		client:   newEchoClient(),
		listener: listener,
		done:     make(chan struct{}),
		logger:   zerolog.Nop(),
	}
	go h.wait()
	go h.acceptConnections()
	return h
}

func TestNativeHandle_Forwards(t *testing.T) {
	h := startNativeHandle(t)

	conn, err := net.Dial("tcp", h.listener.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
	conn.Close()

	require.NoError(t, h.Terminate(time.Second))
	assert.Equal(t, "native-ssh[10.4.1.7]", h.Describe())
	assert.NoError(t, h.Err())
}

func TestNativeHandle_TrackAfterStop(t *testing.T) {
	h := startNativeHandle(t)

	h.stop()

	assert.False(t, h.track())
	<-h.done
}

func TestNativeHandle_TerminateWhileAccepting(t *testing.T) {
	h := startNativeHandle(t)
	addr := h.listener.Addr().String()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				conn, err := net.Dial("tcp", addr)
				if err != nil {
					return
				}
				conn.Close()
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, h.Terminate(2*time.Second))
	wg.Wait()

	select {
	case <-h.Done():
	default:
		t.Fatal("handle not done after Terminate")
	}
}

func TestNewNativeSSHOpener(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	o, err := NewNativeSSHOpener("ubuntu", pem.EncodeToMemory(block), nil, 0, time.Second, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 22, o.Port)

	_, err = NewNativeSSHOpener("ubuntu", []byte("not a key"), nil, 0, time.Second, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to parse SSH private key")
}
