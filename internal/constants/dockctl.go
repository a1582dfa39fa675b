package constants

import "time"

const (
	// DefaultEnvironment is used when no environment is given or the given one is unknown.
	DefaultEnvironment = "gamma"

	// DryRunPace is the minimum time a guarded mutation takes to report, performed or not.
	DryRunPace = 250 * time.Millisecond

	// BrokerQOS is the MQTT QoS used for job publishes.
	BrokerQOS = 1

	// BrokerConnectTimeout bounds the broker connect and publish round trips.
	BrokerConnectTimeout = 10 * time.Second

	// BrokerDisconnectQuiesce is the quiesce period in milliseconds passed to Disconnect.
	BrokerDisconnectQuiesce = 250

	// MongoDatabase is the default document store database.
	MongoDatabase = "runnable2"

	// MongoInstancesCollection holds the instance documents with their containers.
	MongoInstancesCollection = "instances"

	// RotationTimeout bounds each rotation API request.
	RotationTimeout = 30 * time.Second

	// GitHubAPIURL is the API used to resolve org and owner ids to names.
	GitHubAPIURL = "https://api.github.com"

	// GitHubUserAgent identifies the CLI to the GitHub API.
	GitHubUserAgent = "Runnable Docks CLI"

	// GitHubLookupWorkers is the number of concurrent id lookups.
	GitHubLookupWorkers = 8

	// GitHubTimeout bounds each GitHub lookup.
	GitHubTimeout = 10 * time.Second

	// DefaultOrg is the org of docks shared by every owner.
	DefaultOrg = "default"

	// WeavePeersKeyPrefix prefixes the per-org weave peer set in redis.
	WeavePeersKeyPrefix = "weave:peers"

	// DockAgentPort is the port the dock agent listens on; rotation entries are keyed by it.
	DockAgentPort = 4242

	// AWSRegion is the default region for EC2 queries.
	AWSRegion = "us-west-2"

	// UpdateCheckInterval is the minimum time between release checks.
	UpdateCheckInterval = 24 * time.Hour

	// UpdateStateFile records when the last release check ran, relative to the home directory.
	UpdateStateFile = ".docks-update"

	// ConfigFile is the default configuration path relative to the home directory.
	ConfigFile = ".docks/config.yaml"
)

// Job queues.
const (
	QueueInstanceTerminate = "asg.instance.terminate"
	QueueDockLost          = "dock.lost"
	QueueASGCreate         = "asg.create"
	QueueASGDelete         = "asg.delete"
	QueueASGUpdate         = "asg.update"
	QueueInstanceProvision = "cluster-instance-provision"
)

// DefaultLogService is the service whose log `docks logs` tails when none is named.
const DefaultLogService = "dock-init"

// LogPaths maps dock services to their log files.
var LogPaths = map[string]string{
	"charon":          "/var/log/charon.log",
	"dock-init":       "/var/log/user-script-dock-init.log",
	"docker-listener": "/var/log/docker-listener.log",
	"docker":          "/var/log/upstart/docker.log",
	"filibuster":      "/var/log/filibuster.log",
	"krain":           "/var/log/krain.log",
	"sauron":          "/var/log/sauron.log",
}
