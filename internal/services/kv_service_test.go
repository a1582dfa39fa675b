package services

import (
	"context"
	"errors"
	"testing"

	"github.com/benmeehan/docks/internal/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestKVService_WeavePeers(t *testing.T) {
	runner, tunnels := testRunner()
	store := new(mocks.MockWeaveStore)
	store.On("Members", mock.Anything, "weave:peers:1234").Return([]string{"10.4.2.9", "10.4.1.7"}, nil)
	store.On("Close").Return(nil)

	var addr string
	svc := NewKVService(runner, testConfig(), func(a string) WeaveStore {
		addr = a
		return store
	}, zerolog.Nop())

	peers, err := svc.WeavePeers(context.Background(), "production", "1234")

	require.NoError(t, err)
	assert.Equal(t, []string{"10.4.1.7", "10.4.2.9"}, peers)
	assert.Equal(t, "alpha-redis", tunnels.last().RemoteHost)
	assert.Equal(t, 6379, tunnels.last().RemotePort)
	assert.Contains(t, addr, "127.0.0.1:")
	assert.Equal(t, int32(1), tunnels.terminations.Load())
	store.AssertExpectations(t)
}

func TestKVService_WeavePeersError(t *testing.T) {
	runner, tunnels := testRunner()
	store := new(mocks.MockWeaveStore)
	store.On("Members", mock.Anything, "weave:peers:1234").Return(nil, errors.New("connection refused"))
	store.On("Close").Return(nil)

	svc := NewKVService(runner, testConfig(), func(string) WeaveStore { return store }, zerolog.Nop())
	_, err := svc.WeavePeers(context.Background(), "gamma", "1234")

	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, int32(1), tunnels.terminations.Load())
}

func TestKVService_RemoveFromWeave(t *testing.T) {
	runner, _ := testRunner()
	store := new(mocks.MockWeaveStore)
	store.On("Remove", mock.Anything, "weave:peers:1234", "10.4.1.7").Return(int64(1), nil)
	store.On("Close").Return(nil)

	svc := NewKVService(runner, testConfig(), func(string) WeaveStore { return store }, zerolog.Nop())
	res, err := svc.RemoveFromWeave(context.Background(), "gamma", "1234", "10.4.1.7", false)

	require.NoError(t, err)
	assert.True(t, res.Performed)
	assert.Equal(t, int64(1), res.Value)
	store.AssertExpectations(t)
}

func TestKVService_RemoveFromWeaveDryRun(t *testing.T) {
	runner, tunnels := testRunner()
	built := false
	svc := NewKVService(runner, testConfig(), func(string) WeaveStore {
		built = true
		return new(mocks.MockWeaveStore)
	}, zerolog.Nop())

	res, err := svc.RemoveFromWeave(context.Background(), "gamma", "1234", "10.4.1.7", true)

	require.NoError(t, err)
	assert.False(t, res.Performed)
	assert.False(t, built)
	assert.Equal(t, int32(1), tunnels.terminations.Load())
}
