package service_registry

import (
	"fmt"
	"net/http"

	"github.com/benmeehan/docks/internal/operation"
	"github.com/benmeehan/docks/internal/services"
	"github.com/benmeehan/docks/internal/utils"
	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/benmeehan/docks/pkg/file"
	"github.com/benmeehan/docks/pkg/mqtt"
	"github.com/benmeehan/docks/pkg/process"
	"github.com/benmeehan/docks/pkg/tunnel"
	"github.com/rs/zerolog"
)

// ServiceRegistry wires the tunnel broker, the dry-run gate and every
// remote service from one configuration.
type ServiceRegistry struct {
	Config *utils.Config
	Broker *tunnel.Broker
	Gate   *dryrun.Gate
	Runner *operation.Runner

	Rotation      *services.RotationService
	Compute       *services.ComputeService
	Docstore      *services.DocstoreService
	KV            *services.KVService
	Orchestration *services.OrchestrationService
	Jobs          *services.BrokerService
	Release       *services.ReleaseService
	Scaling       *services.ScalingService
	Ghosts        *services.GhostService
	Logs          *services.LogsService
	GitHub        *services.GitHubService

	fileClient     file.FileOperations
	spawner        process.Spawner
	openers        []string
	rotationClient *http.Client
	githubClient   *http.Client
	Logger         zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(config *utils.Config, fileClient file.FileOperations, spawner process.Spawner, logger zerolog.Logger) *ServiceRegistry {
	broker := tunnel.NewBroker(
		tunnel.NewPortPool(),
		tunnel.TCPProber{Interval: config.Tunnels.ProbeInterval},
		config.Tunnels.TeardownGrace,
		config.Tunnels.ProbeTimeout,
		logger,
	)
	gate := dryrun.NewGate(config.DryRun.Pace, logger)

	return &ServiceRegistry{
		Config:     config,
		Broker:     broker,
		Gate:       gate,
		Runner:     operation.NewRunner(broker, gate, logger),
		fileClient: fileClient,
		spawner:    spawner,
		Logger:     logger,
	}
}

// RegisterOpeners registers the tunnel mechanisms enabled by configuration.
func (sr *ServiceRegistry) RegisterOpeners() error {
	tunnels := sr.Config.Tunnels

	// Ordered opener definitions with inline constructors
	openersInOrder := []struct {
		kind        tunnel.Kind
		enabled     bool
		constructor func() (tunnel.Opener, error)
	}{
		{
			kind:    tunnel.SSH,
			enabled: true,
			constructor: func() (tunnel.Opener, error) {
				return tunnel.NewSSHOpener(sr.spawner, tunnels.SSHBinary, tunnels.SSHArgs...), nil
			},
		},
		{
			kind:    tunnel.PortForward,
			enabled: true,
			constructor: func() (tunnel.Opener, error) {
				return tunnel.NewPortForwardOpener(sr.spawner, tunnels.KubectlBinary), nil
			},
		},
		{
			kind:    tunnel.NativeSSH,
			enabled: tunnels.Kind == tunnel.NativeSSH,
			constructor: func() (tunnel.Opener, error) {
				privateKey, err := sr.fileClient.ReadFileRaw(tunnels.Native.PrivateKeyPath)
				if err != nil {
					return nil, fmt.Errorf("failed to read SSH private key: %w", err)
				}
				var serverPublicKey []byte
				if tunnels.Native.ServerPublicKeyPath != "" {
					serverPublicKey, err = sr.fileClient.ReadFileRaw(tunnels.Native.ServerPublicKeyPath)
					if err != nil {
						return nil, fmt.Errorf("failed to read SSH server public key: %w", err)
					}
				}
				return tunnel.NewNativeSSHOpener(
					tunnels.Native.User,
					privateKey,
					serverPublicKey,
					tunnels.Native.Port,
					tunnels.Native.ConnectionTimeout,
					sr.Logger,
				)
			},
		},
	}

	for _, o := range openersInOrder {
		if !o.enabled {
			continue
		}
		opener, err := o.constructor()
		if err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to create %s opener", o.kind)
			return err
		}
		sr.Broker.Register(o.kind, opener)
		sr.openers = append(sr.openers, o.kind.String())
	}

	sr.Logger.Debug().Msgf("Registered tunnel openers: %v", sr.openers)
	return nil
}

// RegisterServices builds every remote service on top of the shared runner.
func (sr *ServiceRegistry) RegisterServices() {
	config := sr.Config

	sr.KV = services.NewKVService(sr.Runner, config, services.NewRedisWeaveStore, sr.Logger)
	sr.rotationClient = &http.Client{Timeout: config.Rotation.Timeout}
	sr.Rotation = services.NewRotationService(sr.Runner, config, sr.rotationClient, sr.Logger)
	sr.Compute = services.NewComputeService(sr.Runner, config, services.SDKClients{
		AccessKeyID:     config.AWS.AccessKeyID,
		SecretAccessKey: config.AWS.SecretAccessKey,
	}, sr.KV, sr.Logger)
	sr.Docstore = services.NewDocstoreService(sr.Runner, config, services.NewMongoContainerStore, sr.Logger)
	sr.Orchestration = services.NewOrchestrationService(
		sr.Runner,
		config,
		services.KubectlPodFinder{Binary: config.Tunnels.KubectlBinary},
		services.NewDockerClientFactory(config, sr.fileClient),
		sr.Logger,
	)
	sr.Jobs = services.NewBrokerService(sr.Runner, config, sr.fileClient, mqtt.NewPahoClient, sr.Logger)
	sr.Release = services.NewReleaseService(sr.Runner, config, sr.fileClient, services.ExecGit{}, sr.Logger)
	sr.Scaling = services.NewScalingService(sr.Compute, sr.Jobs, sr.Logger)
	sr.Ghosts = services.NewGhostService(sr.Orchestration, sr.Docstore, sr.Logger)

	output, ok := sr.spawner.(services.OutputSpawner)
	if !ok {
		output = process.NewExecSpawner(sr.Logger)
	}
	sr.Logs = services.NewLogsService(output, config, sr.Logger)

	sr.githubClient = &http.Client{Timeout: config.GitHub.Timeout}
	sr.GitHub = services.NewGitHubService(config, sr.githubClient, sr.Logger)

	sr.Logger.Debug().Msg("Registered services")
}
