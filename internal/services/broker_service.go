package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/internal/models"
	"github.com/benmeehan/docks/internal/operation"
	"github.com/benmeehan/docks/internal/utils"
	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/benmeehan/docks/pkg/file"
	"github.com/benmeehan/docks/pkg/mqtt"
	"github.com/rs/zerolog"
)

// KhronosTask is a maintenance task run by the khronos workers.
type KhronosTask struct {
	Description string
	Queue       string
}

// KhronosTasks lists the tasks that can be enqueued, in menu order.
var KhronosTasks = []KhronosTask{
	{"Clean image-builder Containers from Docks", "khronos:containers:image-builder:prune"},
	{"Clean Old Images from Docks", "khronos:images:prune"},
	{"Clean Old Weave Containers from Docks", "khronos:weave:prune"},
	{"Remove Expired Context Versions from Mongo", "khronos:context-versions:prune-expired"},
	{"Remove Orphan Containers from Docks", "khronos:containers:orphan:prune"},
}

// BrokerService publishes jobs to an environment's message broker.
type BrokerService struct {
	runner     *operation.Runner
	config     *utils.Config
	fileClient file.FileOperations
	newClient  mqtt.ClientFactory
	logger     zerolog.Logger
}

// NewBrokerService creates a new BrokerService. A nil newClient uses paho.
func NewBrokerService(runner *operation.Runner, config *utils.Config, fileClient file.FileOperations, newClient mqtt.ClientFactory, logger zerolog.Logger) *BrokerService {
	return &BrokerService{
		runner:     runner,
		config:     config,
		fileClient: fileClient,
		newClient:  newClient,
		logger:     logger,
	}
}

// Publish enqueues job into queue on env's broker. On a dry run the tunnel is
// still opened and closed but no client is built.
func (bs *BrokerService) Publish(ctx context.Context, env, queue string, job any, dry bool) (dryrun.Result[models.PublishReceipt], error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return dryrun.Result[models.PublishReceipt]{}, fmt.Errorf("failed to encode %s job: %w", queue, err)
	}

	name, environment := bs.config.Environment(env)
	req := operation.Request{
		Name:        "publish " + queue,
		Tunnel:      hostTunnel(bs.config, environment.BrokerHost, bs.config.Tunnels.Broker),
		SettleDelay: bs.config.Tunnels.Broker.SettleDelay,
		Intent:      dryrun.Intent{Kind: dryrun.Mutate, DryRun: dry},
	}
	receipt := models.PublishReceipt{Queue: queue, Payload: string(payload)}

	return operation.Execute(ctx, bs.runner, req, func(ctx context.Context, s operation.Session) (dryrun.Result[models.PublishReceipt], error) {
		return operation.Guard(ctx, s, dryrun.Action[models.PublishReceipt]{
			Description: fmt.Sprintf("publish %s job to %s in %s", queue, environment.BrokerHost, name),
			Preview:     receipt,
			Run: func(ctx context.Context) (models.PublishReceipt, error) {
				if err := bs.send(s, environment.BrokerHost, queue, payload); err != nil {
					return receipt, err
				}
				s.Logger.Info().Str("queue", queue).RawJSON("job", payload).Msg("Published job")
				done := receipt
				done.Performed = true
				return done, nil
			},
		})
	})
}

// PublishKhronos enqueues an empty job into a khronos task queue.
func (bs *BrokerService) PublishKhronos(ctx context.Context, env string, task KhronosTask, dry bool) (dryrun.Result[models.PublishReceipt], error) {
	return bs.Publish(ctx, env, task.Queue, struct{}{}, dry)
}

// send connects through the session's endpoint, publishes and disconnects.
// The broker certificate is verified against host unless a server name is
// configured.
func (bs *BrokerService) send(s operation.Session, host, queue string, payload []byte) error {
	scheme := "tcp"
	if bs.config.Broker.CACertificate != "" {
		scheme = "ssl"
	}
	broker := fmt.Sprintf("%s://%s", scheme, s.Endpoint.Addr())

	serverName := bs.config.Broker.ServerName
	if serverName == "" {
		serverName = host
	}

	client := mqtt.NewMqttService(bs.fileClient, bs.newClient, bs.config.Broker.ConnectTimeout)
	err := client.Initialize(broker, "docks-"+s.ID, mqtt.Credentials{
		Username:      bs.config.Broker.Username,
		Password:      bs.config.Broker.Password,
		CACertificate: bs.config.Broker.CACertificate,
		ServerName:    serverName,
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("broker", broker).Msg("Failed to connect to broker")
		return err
	}
	defer client.Disconnect(constants.BrokerDisconnectQuiesce)

	if err := client.Publish(queue, byte(bs.config.Broker.QOS), payload); err != nil {
		s.Logger.Error().Err(err).Str("queue", queue).Msg("Failed to publish job")
		return err
	}
	return nil
}

// FindKhronosTask looks a task up by queue name or 1-based menu index.
func FindKhronosTask(key string) (KhronosTask, bool) {
	for i, task := range KhronosTasks {
		if task.Queue == key || fmt.Sprint(i+1) == key {
			return task, true
		}
	}
	return KhronosTask{}, false
}
