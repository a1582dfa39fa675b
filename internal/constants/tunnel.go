package constants

import "time"

const (
	// SSHBinary is the helper used for SSH local forwards.
	SSHBinary = "ssh"

	// KubectlBinary is the helper used for cluster port-forwards.
	KubectlBinary = "kubectl"

	// TeardownGrace is how long a helper gets to exit after SIGTERM before it is killed.
	TeardownGrace = 5 * time.Second

	// ProbeTimeout bounds the health probe that follows the settle delay.
	ProbeTimeout = 5 * time.Second

	// ProbeInterval is the pause between health probe attempts.
	ProbeInterval = 100 * time.Millisecond

	// ConnectionTimeout specifies the timeout duration for establishing an in-process SSH connection.
	ConnectionTimeout = 30 * time.Second
)

// Broker tunnel defaults.
const (
	BrokerLocalPort   = 56565
	BrokerRemotePort  = 54321
	BrokerSettleDelay = 5 * time.Second
)

// Document store tunnel defaults.
const (
	MongoLocalPort   = 27018
	MongoRemotePort  = 27017
	MongoSettleDelay = 2 * time.Second
)

// Key/value store tunnel defaults.
const (
	RedisLocalPort   = 52221
	RedisRemotePort  = 6379
	RedisSettleDelay = 3 * time.Second
)

// Swarm manager port-forward defaults.
const (
	SwarmLocalPort   = 53260
	SwarmRemotePort  = 2375
	SwarmSettleDelay = 3 * time.Second
	SwarmPodQuery    = "swarm-manager"
)
