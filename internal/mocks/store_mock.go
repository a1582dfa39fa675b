package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockWeaveStore is a mock implementation of the WeaveStore interface
type MockWeaveStore struct {
	mock.Mock
}

func (m *MockWeaveStore) Members(ctx context.Context, key string) ([]string, error) {
	args := m.Called(ctx, key)
	if members := args.Get(0); members != nil {
		return members.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWeaveStore) Remove(ctx context.Context, key, member string) (int64, error) {
	args := m.Called(ctx, key, member)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWeaveStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockGitRunner is a mock implementation of the GitRunner interface
type MockGitRunner struct {
	mock.Mock
}

func (m *MockGitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	called := m.Called(ctx, dir, args)
	return called.String(0), called.Error(1)
}
