package models

import "time"

// Dock represents a dock in rotation as reported by the rotation service.
type Dock struct {
	Org        string   `json:"org"`
	OrgName    string   `json:"org_name,omitempty"`
	Host       string   `json:"host"`
	IP         string   `json:"ip"`
	Tags       []string `json:"tags"`
	Builds     int      `json:"builds"`
	Containers int      `json:"containers"`
}

// Instance represents a dock's compute instance.
type Instance struct {
	ID       string    `json:"id"`
	AMI      string    `json:"ami"`
	State    string    `json:"state"`
	Type     string    `json:"type"`
	Launched time.Time `json:"launched"`
	IP       string    `json:"ip"`
	Org      string    `json:"org"`
}

// AutoScalingGroup represents a per-org dock auto-scaling group.
type AutoScalingGroup struct {
	Name                string    `json:"name"`
	Org                 string    `json:"org"`
	Env                 string    `json:"env"`
	LaunchConfiguration string    `json:"launch_configuration"`
	Min                 int       `json:"min"`
	Max                 int       `json:"max"`
	Desired             int       `json:"desired"`
	Cooldown            int       `json:"cooldown"`
	Created             time.Time `json:"created"`
}

// SwarmNode represents a dock as seen by the swarm manager.
type SwarmNode struct {
	Name       string `json:"name"`
	Org        string `json:"org"`
	IP         string `json:"ip"`
	Containers int    `json:"containers"`
}

// Container represents a user container tracked in the document store.
type Container struct {
	InstanceName string          `json:"instance_name" bson:"name"`
	Owner        Owner           `json:"owner" bson:"owner"`
	Docker       DockerContainer `json:"container" bson:"container"`
}

// DockerContainer locates a container on a dock.
type DockerContainer struct {
	ID   string `json:"id" bson:"dockerContainer"`
	Host string `json:"host" bson:"dockerHost"`
}

// Owner identifies the GitHub organization that owns an instance.
type Owner struct {
	GitHub   int64  `json:"github" bson:"github"`
	Username string `json:"username,omitempty" bson:"username,omitempty"`
}

// SwarmContainer is a user container as reported by the swarm manager.
type SwarmContainer struct {
	ID           string `json:"id"`
	Image        string `json:"image"`
	Org          string `json:"org"`
	DockIP       string `json:"dock_ip"`
	InstanceName string `json:"instance_name"`
	Owner        string `json:"owner"`
	DockType     string `json:"dock_type,omitempty"`
	Status       string `json:"status"`
}

// OwnerGhosts counts one owner's swarm containers with and without an
// instance document.
type OwnerGhosts struct {
	Owner  string `json:"owner"`
	Total  int    `json:"total"`
	Ghosts int    `json:"ghosts"`
}

// Real is the number of the owner's containers backed by an instance.
func (o OwnerGhosts) Real() int { return o.Total - o.Ghosts }

// GhostReport lists swarm containers that no instance document references.
type GhostReport struct {
	Ghosts        []SwarmContainer `json:"ghosts"`
	Owners        []OwnerGhosts    `json:"owners"`
	Total         int              `json:"total"`
	DefaultTotal  int              `json:"default_total"`
	DefaultGhosts int              `json:"default_ghosts"`
}
