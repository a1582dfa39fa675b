package models

// InstanceTerminateJob asks the scaling worker to terminate the dock with the given IP.
type InstanceTerminateJob struct {
	IPAddress string `json:"ipAddress"`
}

// DockLostJob marks a dock as unhealthy and in need of replacement.
type DockLostJob struct {
	Host        string `json:"host"`
	GithubOrgID string `json:"githubOrgId"`
}

// ASGJob asks the scaling worker to create, delete or update the auto-scaling
// group of a GitHub org.
type ASGJob struct {
	GithubID string     `json:"githubId"`
	Data     *ASGUpdate `json:"data,omitempty"`
}

// ASGUpdate carries the group settings to change; unset fields are left alone.
type ASGUpdate struct {
	MinSize                 *int   `json:"MinSize,omitempty"`
	DesiredCapacity         *int   `json:"DesiredCapacity,omitempty"`
	MaxSize                 *int   `json:"MaxSize,omitempty"`
	LaunchConfigurationName string `json:"LaunchConfigurationName,omitempty"`
}

// ProvisionJob asks the cluster manager for a new dock for a GitHub org.
type ProvisionJob struct {
	GithubID string `json:"githubId"`
}

// PublishReceipt describes a job publish, performed or not.
type PublishReceipt struct {
	Queue     string `json:"queue"`
	Payload   string `json:"payload"`
	Performed bool   `json:"performed"`
}
