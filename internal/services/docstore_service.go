package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/internal/models"
	"github.com/benmeehan/docks/internal/operation"
	"github.com/benmeehan/docks/internal/utils"
	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ContainerStore is the slice of the document store used to list containers.
type ContainerStore interface {
	// FindContainers returns instances that have a docker container, owned by
	// githubOrg unless it is zero.
	FindContainers(ctx context.Context, githubOrg int64) ([]models.Container, error)
	Close(ctx context.Context) error
}

// ContainerStoreFactory connects a ContainerStore to addr.
type ContainerStoreFactory func(ctx context.Context, addr, database string) (ContainerStore, error)

// mongoContainerStore implements ContainerStore with the mongo driver.
type mongoContainerStore struct {
	client    *mongo.Client
	instances *mongo.Collection
}

// NewMongoContainerStore is the default ContainerStoreFactory.
func NewMongoContainerStore(ctx context.Context, addr, database string) (ContainerStore, error) {
	opts := options.Client().
		ApplyURI("mongodb://" + addr).
		SetDirect(true).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo at %s: %w", addr, err)
	}
	return &mongoContainerStore{
		client:    client,
		instances: client.Database(database).Collection(constants.MongoInstancesCollection),
	}, nil
}

func (m *mongoContainerStore) FindContainers(ctx context.Context, githubOrg int64) ([]models.Container, error) {
	filter := bson.M{"container.dockerContainer": bson.M{"$exists": true}}
	if githubOrg != 0 {
		filter["owner.github"] = githubOrg
	}
	projection := bson.M{"container.dockerContainer": 1, "container.dockerHost": 1, "owner": 1, "name": 1}

	cursor, err := m.instances.Find(ctx, filter, options.Find().SetProjection(projection))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var containers []models.Container
	if err := cursor.All(ctx, &containers); err != nil {
		return nil, err
	}
	return containers, nil
}

func (m *mongoContainerStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// DocstoreService reads container records from the document store.
type DocstoreService struct {
	runner   *operation.Runner
	config   *utils.Config
	newStore ContainerStoreFactory
	logger   zerolog.Logger
}

// NewDocstoreService creates a new DocstoreService. A nil newStore uses mongo.
func NewDocstoreService(runner *operation.Runner, config *utils.Config, newStore ContainerStoreFactory, logger zerolog.Logger) *DocstoreService {
	if newStore == nil {
		newStore = NewMongoContainerStore
	}
	return &DocstoreService{runner: runner, config: config, newStore: newStore, logger: logger}
}

// Containers lists containers across all docks of env, optionally only those
// owned by the GitHub org with id org.
func (ds *DocstoreService) Containers(ctx context.Context, env, org string) ([]models.Container, error) {
	var githubOrg int64
	if org != "" {
		id, err := strconv.ParseInt(org, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse org %q: github org ids are numeric", org)
		}
		githubOrg = id
	}

	_, environment := ds.config.Environment(env)
	req := operation.Request{
		Name:        "containers",
		Tunnel:      hostTunnel(ds.config, environment.MongoHost, ds.config.Tunnels.Mongo),
		SettleDelay: ds.config.Tunnels.Mongo.SettleDelay,
		Intent:      dryrun.Intent{Kind: dryrun.Read},
	}

	return operation.Execute(ctx, ds.runner, req, func(ctx context.Context, s operation.Session) ([]models.Container, error) {
		store, err := ds.newStore(ctx, s.Endpoint.Addr(), ds.config.Mongo.Database)
		if err != nil {
			s.Logger.Error().Err(err).Msg("Failed to connect to document store")
			return nil, err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := store.Close(closeCtx); err != nil {
				s.Logger.Warn().Err(err).Msg("Failed to disconnect from document store")
			}
		}()

		containers, err := store.FindContainers(ctx, githubOrg)
		if err != nil {
			s.Logger.Error().Err(err).Msg("Failed to query containers")
			return nil, fmt.Errorf("failed to query containers: %w", err)
		}
		s.Logger.Debug().Int("count", len(containers)).Msg("Fetched containers")
		return containers, nil
	})
}
