package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/pkg/file"
	"github.com/benmeehan/docks/pkg/tunnel"
)

// Config represents the structure of the configuration file.
type Config struct {
	DefaultEnvironment string                 `yaml:"default_environment"` // Environment used when none or an unknown one is given
	Environments       map[string]Environment `yaml:"environments"`        // Per-environment hosts, merged over the built-in ones

	Tunnels struct {
		Kind          tunnel.Kind   `yaml:"kind"`           // Mechanism for host tunnels: ssh or native-ssh
		SSHBinary     string        `yaml:"ssh_binary"`     // ssh executable
		SSHArgs       []string      `yaml:"ssh_args"`       // Extra ssh arguments, e.g. ["-i", "~/.ssh/ops"]
		KubectlBinary string        `yaml:"kubectl_binary"` // kubectl executable
		TeardownGrace time.Duration `yaml:"teardown_grace"` // Time a helper gets between SIGTERM and SIGKILL
		ProbeTimeout  time.Duration `yaml:"probe_timeout"`  // Bound on the post-settle health probe
		ProbeInterval time.Duration `yaml:"probe_interval"` // Pause between probe attempts

		Native struct {
			User                string        `yaml:"user"`                   // SSH username
			Port                int           `yaml:"port"`                   // SSH port on the remote host
			PrivateKeyPath      string        `yaml:"private_key_path"`       // Path to the operator's private key
			ServerPublicKeyPath string        `yaml:"server_public_key_path"` // Path to the pinned host key, optional
			ConnectionTimeout   time.Duration `yaml:"connection_timeout"`     // Timeout for establishing the SSH connection
		} `yaml:"native"`

		Broker ServiceTunnel `yaml:"broker"`
		Mongo  ServiceTunnel `yaml:"mongo"`
		Redis  ServiceTunnel `yaml:"redis"`
		Swarm  ServiceTunnel `yaml:"swarm"`
	} `yaml:"tunnels"`

	Broker struct {
		Username       string        `yaml:"username"`        // Broker username
		Password       string        `yaml:"password"`        // Broker password
		CACertificate  string        `yaml:"ca_certificate"`  // Path to the CA certificate, enables TLS
		ServerName     string        `yaml:"server_name"`     // Name on the broker certificate, defaults to the broker host
		QOS            int           `yaml:"qos"`             // QoS level for job publishes
		ConnectTimeout time.Duration `yaml:"connect_timeout"` // Bound on connect and publish round trips
	} `yaml:"broker"`

	Mongo struct {
		Database string `yaml:"database"` // Database holding the instances collection
	} `yaml:"mongo"`

	Rotation struct {
		Timeout time.Duration `yaml:"timeout"` // Bound on each rotation API request
	} `yaml:"rotation"`

	GitHub struct {
		APIURL  string        `yaml:"api_url"` // GitHub API base URL
		Token   string        `yaml:"token"`   // Optional token, raises the rate limit
		Workers int           `yaml:"workers"` // Concurrent owner lookups
		Timeout time.Duration `yaml:"timeout"` // Bound on each lookup
	} `yaml:"github"`

	AWS struct {
		AccessKeyID     string `yaml:"access_key_id"`     // Static credentials, optional
		SecretAccessKey string `yaml:"secret_access_key"` // Static credentials, optional
	} `yaml:"aws"`

	Docker struct {
		CACertificate string `yaml:"ca_certificate"` // Swarm manager CA
		Certificate   string `yaml:"certificate"`    // Client certificate
		Key           string `yaml:"key"`            // Client key
		ServerName    string `yaml:"server_name"`    // TLS server name of the swarm manager
	} `yaml:"docker"`

	DryRun struct {
		Pace time.Duration `yaml:"pace"` // Minimum duration of a guarded mutation
	} `yaml:"dry_run"`

	Updates struct {
		Enabled    bool          `yaml:"enabled"`    // Check for new releases on start
		Interval   time.Duration `yaml:"interval"`   // Minimum time between checks
		StateFile  string        `yaml:"state_file"` // Where the last check time is stored
		Repository string        `yaml:"repository"` // Local clone used to compare release tags
	} `yaml:"updates"`
}

// ServiceTunnel holds the tunnel settings of one backing service.
type ServiceTunnel struct {
	LocalPort   int           `yaml:"local_port"`   // 0 allocates a free port
	RemotePort  int           `yaml:"remote_port"`  // Port of the service on the remote host
	SettleDelay time.Duration `yaml:"settle_delay"` // Wait after spawning the helper
}

// Environment maps one environment to the hosts that serve it.
type Environment struct {
	BrokerHost   string              `yaml:"broker_host"`   // SSH host running the broker
	MongoHost    string              `yaml:"mongo_host"`    // SSH host running the document store
	RedisHost    string              `yaml:"redis_host"`    // SSH host running redis
	RotationHost string              `yaml:"rotation_host"` // host[:port] of the rotation service
	KubeContext  string              `yaml:"kube_context"`  // Cluster context holding the swarm manager
	Namespace    string              `yaml:"namespace"`     // Namespace of the swarm manager pod
	Region       string              `yaml:"region"`        // EC2 region
	ASGRegion    string              `yaml:"asg_region"`    // Auto Scaling region
	DockFilters  map[string][]string `yaml:"dock_filters"`  // EC2 filters selecting the docks
}

// DefaultEnvironments returns the built-in environment table.
func DefaultEnvironments() map[string]Environment {
	dockFilters := func(extra string, values ...string) map[string][]string {
		return map[string][]string{"tag:role": {"dock"}, extra: values}
	}
	return map[string]Environment{
		"gamma": {
			BrokerHost:   "gamma-rabbit",
			MongoHost:    "gamma-mongo-a",
			RedisHost:    "gamma-redis",
			RotationHost: "mavis.runnable-gamma.com",
			KubeContext:  "kubernetes.runnable-gamma.com",
			DockFilters:  dockFilters("instance.group-name", "gamma-dock"),
		},
		"delta": {
			BrokerHost:   "delta-rabbit",
			MongoHost:    "delta-mongo-a",
			RedisHost:    "beta-redis",
			RotationHost: "mavis.runnable.io",
			KubeContext:  "kubernetes.runnable.com",
			DockFilters:  dockFilters("instance.group-name", "delta-dock"),
		},
		"epsilon": {
			BrokerHost:   "epsilon-rabbit",
			RedisHost:    "beta-redis",
			RotationHost: "mavis.runnable-beta.com",
			DockFilters:  dockFilters("instance.group-name", "epsilon-dock"),
		},
		"production": {
			BrokerHost:   "alpha-rabbit",
			RedisHost:    "alpha-redis",
			RotationHost: "mavis.runnable.io",
			ASGRegion:    "us-west-1",
			DockFilters:  dockFilters("instance.group-name", "alpha-dock-sg"),
		},
		"staging": {
			BrokerHost:   "delta-staging-data",
			RedisHost:    "beta-redis",
			RotationHost: "mavis-staging-codenow.runnableapp.com",
			DockFilters:  dockFilters("tag:env", "staging"),
		},
	}
}

// DefaultConfig returns a configuration made only of defaults.
func DefaultConfig() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

// DefaultConfigPath returns the configuration path used when none is given.
func DefaultConfigPath() string {
	if path := os.Getenv("DOCKS_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return constants.ConfigFile
	}
	return filepath.Join(home, constants.ConfigFile)
}

// LoadConfig loads the YAML configuration from the specified file and fills
// unset values with defaults. A missing file is only an error when required.
func LoadConfig(filename string, required bool, fileClient file.FileOperations) (*Config, error) {
	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", filename, err)
	}
	if !exists {
		if required {
			return nil, fmt.Errorf("failed to load config: %s does not exist", filename)
		}
		return DefaultConfig(), nil
	}

	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	config.applyDefaults()
	return &config, nil
}

// Environment resolves name to an environment. Unknown or empty names fall
// back to the default environment.
func (c *Config) Environment(name string) (string, Environment) {
	if env, ok := c.Environments[name]; ok && name != "" {
		return name, env
	}
	return c.DefaultEnvironment, c.Environments[c.DefaultEnvironment]
}

// applyDefaults fills every zero value from constants.
func (c *Config) applyDefaults() {
	if c.DefaultEnvironment == "" {
		c.DefaultEnvironment = constants.DefaultEnvironment
	}

	envs := DefaultEnvironments()
	for name, env := range c.Environments {
		envs[name] = mergeEnvironment(envs[name], env)
	}
	for name, env := range envs {
		if env.Region == "" {
			env.Region = constants.AWSRegion
		}
		if env.ASGRegion == "" {
			env.ASGRegion = env.Region
		}
		envs[name] = env
	}
	c.Environments = envs

	t := &c.Tunnels
	if t.SSHBinary == "" {
		t.SSHBinary = constants.SSHBinary
	}
	if t.KubectlBinary == "" {
		t.KubectlBinary = constants.KubectlBinary
	}
	if t.TeardownGrace == 0 {
		t.TeardownGrace = constants.TeardownGrace
	}
	if t.ProbeTimeout == 0 {
		t.ProbeTimeout = constants.ProbeTimeout
	}
	if t.ProbeInterval == 0 {
		t.ProbeInterval = constants.ProbeInterval
	}
	if t.Native.Port == 0 {
		t.Native.Port = 22
	}
	if t.Native.ConnectionTimeout == 0 {
		t.Native.ConnectionTimeout = constants.ConnectionTimeout
	}
	t.Broker.withDefaults(constants.BrokerLocalPort, constants.BrokerRemotePort, constants.BrokerSettleDelay)
	t.Mongo.withDefaults(constants.MongoLocalPort, constants.MongoRemotePort, constants.MongoSettleDelay)
	t.Redis.withDefaults(constants.RedisLocalPort, constants.RedisRemotePort, constants.RedisSettleDelay)
	t.Swarm.withDefaults(constants.SwarmLocalPort, constants.SwarmRemotePort, constants.SwarmSettleDelay)

	if c.Broker.QOS == 0 {
		c.Broker.QOS = constants.BrokerQOS
	}
	if c.Broker.ConnectTimeout == 0 {
		c.Broker.ConnectTimeout = constants.BrokerConnectTimeout
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = constants.MongoDatabase
	}
	if c.Rotation.Timeout == 0 {
		c.Rotation.Timeout = constants.RotationTimeout
	}
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = constants.GitHubAPIURL
	}
	if c.GitHub.Workers <= 0 {
		c.GitHub.Workers = constants.GitHubLookupWorkers
	}
	if c.GitHub.Timeout == 0 {
		c.GitHub.Timeout = constants.GitHubTimeout
	}
	if c.DryRun.Pace == 0 {
		c.DryRun.Pace = constants.DryRunPace
	}
	if c.Updates.Interval == 0 {
		c.Updates.Interval = constants.UpdateCheckInterval
	}
	if c.Updates.StateFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Updates.StateFile = filepath.Join(home, constants.UpdateStateFile)
		} else {
			c.Updates.StateFile = constants.UpdateStateFile
		}
	}
}

func (s *ServiceTunnel) withDefaults(local, remote int, settle time.Duration) {
	if s.LocalPort == 0 {
		s.LocalPort = local
	}
	if s.RemotePort == 0 {
		s.RemotePort = remote
	}
	if s.SettleDelay == 0 {
		s.SettleDelay = settle
	}
}

// mergeEnvironment overlays the set fields of override on base.
func mergeEnvironment(base, override Environment) Environment {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.BrokerHost, override.BrokerHost)
	set(&base.MongoHost, override.MongoHost)
	set(&base.RedisHost, override.RedisHost)
	set(&base.RotationHost, override.RotationHost)
	set(&base.KubeContext, override.KubeContext)
	set(&base.Namespace, override.Namespace)
	set(&base.Region, override.Region)
	set(&base.ASGRegion, override.ASGRegion)
	if len(override.DockFilters) > 0 {
		base.DockFilters = override.DockFilters
	}
	return base
}
