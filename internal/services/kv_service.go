package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/internal/operation"
	"github.com/benmeehan/docks/internal/utils"
	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// WeaveStore is the slice of the key/value store used for weave peer sets.
type WeaveStore interface {
	Members(ctx context.Context, key string) ([]string, error)
	Remove(ctx context.Context, key, member string) (int64, error)
	Close() error
}

// WeaveStoreFactory connects a WeaveStore to addr.
type WeaveStoreFactory func(addr string) WeaveStore

// redisWeaveStore implements WeaveStore with go-redis.
type redisWeaveStore struct {
	client *redis.Client
}

// NewRedisWeaveStore is the default WeaveStoreFactory.
func NewRedisWeaveStore(addr string) WeaveStore {
	return &redisWeaveStore{client: redis.NewClient(&redis.Options{
		Addr:       addr,
		MaxRetries: -1,
	})}
}

func (r *redisWeaveStore) Members(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

func (r *redisWeaveStore) Remove(ctx context.Context, key, member string) (int64, error) {
	return r.client.SRem(ctx, key, member).Result()
}

func (r *redisWeaveStore) Close() error {
	return r.client.Close()
}

// WeaveKey returns the key of org's weave peer set.
func WeaveKey(org string) string {
	return fmt.Sprintf("%s:%s", constants.WeavePeersKeyPrefix, org)
}

// KVService reads and edits the weave peer sets.
type KVService struct {
	runner   *operation.Runner
	config   *utils.Config
	newStore WeaveStoreFactory
	logger   zerolog.Logger
}

// NewKVService creates a new KVService. A nil newStore uses redis.
func NewKVService(runner *operation.Runner, config *utils.Config, newStore WeaveStoreFactory, logger zerolog.Logger) *KVService {
	if newStore == nil {
		newStore = NewRedisWeaveStore
	}
	return &KVService{runner: runner, config: config, newStore: newStore, logger: logger}
}

// WeavePeers returns the sorted peer IPs of org's weave network.
func (kv *KVService) WeavePeers(ctx context.Context, env, org string) ([]string, error) {
	req := kv.request(env, "weave peers", dryrun.Intent{Kind: dryrun.Read})
	return operation.Execute(ctx, kv.runner, req, func(ctx context.Context, s operation.Session) ([]string, error) {
		store := kv.newStore(s.Endpoint.Addr())
		defer store.Close()

		peers, err := store.Members(ctx, WeaveKey(org))
		if err != nil {
			s.Logger.Error().Err(err).Str("org", org).Msg("Failed to read weave peers")
			return nil, fmt.Errorf("failed to read weave peers of %s: %w", org, err)
		}
		sort.Strings(peers)
		return peers, nil
	})
}

// RemoveFromWeave removes ip from org's weave network. The result value is
// the number of removed members.
func (kv *KVService) RemoveFromWeave(ctx context.Context, env, org, ip string, dry bool) (dryrun.Result[int64], error) {
	req := kv.request(env, "weave remove", dryrun.Intent{Kind: dryrun.Mutate, DryRun: dry})
	return operation.Execute(ctx, kv.runner, req, func(ctx context.Context, s operation.Session) (dryrun.Result[int64], error) {
		return operation.Guard(ctx, s, dryrun.Action[int64]{
			Description: fmt.Sprintf("remove dock %s from weave network of %s", ip, org),
			Run: func(ctx context.Context) (int64, error) {
				store := kv.newStore(s.Endpoint.Addr())
				defer store.Close()

				n, err := store.Remove(ctx, WeaveKey(org), ip)
				if err != nil {
					return 0, fmt.Errorf("failed to remove %s from weave peers of %s: %w", ip, org, err)
				}
				return n, nil
			},
		})
	})
}

func (kv *KVService) request(env, name string, intent dryrun.Intent) operation.Request {
	_, environment := kv.config.Environment(env)
	return operation.Request{
		Name:        name,
		Tunnel:      hostTunnel(kv.config, environment.RedisHost, kv.config.Tunnels.Redis),
		SettleDelay: kv.config.Tunnels.Redis.SettleDelay,
		Intent:      intent,
	}
}
