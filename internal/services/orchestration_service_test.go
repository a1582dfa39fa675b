package services

import (
	"context"
	"errors"
	"testing"

	"github.com/benmeehan/docks/internal/models"
	"github.com/benmeehan/docks/pkg/tunnel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var swarmStatus = [][2]string{
	{"Role", "primary"},
	{"Strategy", "spread"},
	{"Nodes", "2"},
	{" ip-10-4-2-9", "10.4.2.9:4242"},
	{"  └ ID", "AAAA:BBBB"},
	{"  └ Status", "Healthy"},
	{"  └ Containers", "7 (7 Running, 0 Paused, 0 Stopped)"},
	{"  └ Labels", "kernelversion=4.4.0, org=5678, provider=ec2"},
	{" ip-10-4-1-7", "10.4.1.7:4242"},
	{"  └ Containers", "3"},
	{"  └ Labels", "org=1234"},
	{"Kernel Version", "4.4.0"},
}

type fakePods struct {
	pod   string
	err   error
	query string
	ctx   string
}

func (f *fakePods) FindPod(_ context.Context, kubeContext, _, query string) (string, error) {
	f.ctx = kubeContext
	f.query = query
	return f.pod, f.err
}

type fakeDocker struct {
	info       DockerInfo
	containers []DockerContainer
}

func (f *fakeDocker) Info(context.Context) (DockerInfo, error) { return f.info, nil }
func (f *fakeDocker) Containers(context.Context) ([]DockerContainer, error) {
	return f.containers, nil
}

func TestParseSwarmNodes(t *testing.T) {
	nodes := ParseSwarmNodes(swarmStatus)

	assert.Equal(t, []models.SwarmNode{
		{Name: "ip-10-4-2-9", Org: "5678", IP: "10.4.2.9", Containers: 7},
		{Name: "ip-10-4-1-7", Org: "1234", IP: "10.4.1.7", Containers: 3},
	}, nodes)
}

func TestOrchestrationService_Docks(t *testing.T) {
	runner, tunnels := testRunner()
	pods := &fakePods{pod: "swarm-manager-7d9f"}
	var addr string
	svc := NewOrchestrationService(runner, testConfig(), pods, func(a string) (DockerAPI, error) {
		addr = a
		return &fakeDocker{info: DockerInfo{SystemStatus: swarmStatus}}, nil
	}, zerolog.Nop())

	nodes, err := svc.Docks(context.Background(), "delta")

	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "1234", nodes[0].Org)
	assert.Equal(t, "kubernetes.runnable.com", pods.ctx)
	assert.Equal(t, "swarm-manager", pods.query)

	cfg := tunnels.last()
	assert.Equal(t, tunnel.PortForward, cfg.Kind)
	assert.Equal(t, "swarm-manager-7d9f", cfg.RemoteHost)
	assert.Equal(t, 2375, cfg.RemotePort)
	assert.Equal(t, "kubernetes.runnable.com", cfg.KubeContext)
	assert.Contains(t, addr, "127.0.0.1:")
	assert.Equal(t, int32(1), tunnels.terminations.Load())
}

func TestOrchestrationService_DocksSortedByValue(t *testing.T) {
	status := [][2]string{
		{" ip-10-0-0-1", "10.0.0.1:4242"},
		{"  └ Labels", "org=default"},
		{" ip-10-0-0-10", "10.0.0.10:4242"},
		{"  └ Labels", "org=9"},
		{" ip-10-0-0-2", "10.0.0.2:4242"},
		{"  └ Labels", "org=10"},
		{" ip-10-0-0-9", "10.0.0.9:4242"},
		{"  └ Labels", "org=9"},
	}
	runner, _ := testRunner()
	svc := NewOrchestrationService(runner, testConfig(), &fakePods{pod: "swarm-manager-1"}, func(string) (DockerAPI, error) {
		return &fakeDocker{info: DockerInfo{SystemStatus: status}}, nil
	}, zerolog.Nop())

	nodes, err := svc.Docks(context.Background(), "gamma")

	require.NoError(t, err)
	var ips []string
	for _, n := range nodes {
		ips = append(ips, n.IP)
	}
	assert.Equal(t, []string{"10.0.0.9", "10.0.0.10", "10.0.0.2", "10.0.0.1"}, ips)
}

func TestOrchestrationService_FindDock(t *testing.T) {
	runner, _ := testRunner()
	svc := NewOrchestrationService(runner, testConfig(), &fakePods{pod: "swarm-manager-1"}, func(string) (DockerAPI, error) {
		return &fakeDocker{info: DockerInfo{SystemStatus: swarmStatus}}, nil
	}, zerolog.Nop())

	node, err := svc.FindDock(context.Background(), "gamma", "10.4.2.9")
	require.NoError(t, err)
	assert.Equal(t, "5678", node.Org)

	_, err = svc.FindDock(context.Background(), "gamma", "10.9.9.9")
	assert.ErrorIs(t, err, ErrDockNotFound)
}

func TestOrchestrationService_PodLookupFailure(t *testing.T) {
	runner, tunnels := testRunner()
	svc := NewOrchestrationService(runner, testConfig(), &fakePods{err: errors.New("no pod matching")}, nil, zerolog.Nop())

	_, err := svc.Docks(context.Background(), "gamma")

	assert.ErrorContains(t, err, "no pod matching")
	assert.Empty(t, tunnels.opened)
}

func TestOrchestrationService_Containers(t *testing.T) {
	runner, _ := testRunner()
	docker := &fakeDocker{containers: []DockerContainer{
		{ID: "c1", Image: "registry.runnable.com/1234/api:cv-9", Names: []string{"/ip-10-4-1-7/api"}, Status: "Up 2 hours",
			Labels: map[string]string{"instanceName": "api", "ownerUsername": "octo"}},
		{ID: "c2", Image: "registry.runnable.com/runnable/weave:1.5", Names: []string{"/ip-10-4-1-7/weave"}},
		{ID: "c3", Image: "registry.runnable.com/5678/web:cv-1", Names: []string{"/ip-10-4-2-9/web"}},
	}}
	svc := NewOrchestrationService(runner, testConfig(), &fakePods{pod: "swarm-manager-1"}, func(string) (DockerAPI, error) {
		return docker, nil
	}, zerolog.Nop())

	containers, err := svc.Containers(context.Background(), "gamma", "1234")

	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, models.SwarmContainer{
		ID: "c1", Image: "registry.runnable.com/1234/api:cv-9", Org: "1234", DockIP: "10.4.1.7",
		InstanceName: "api", Owner: "octo", Status: "Up 2 hours",
	}, containers[0])

	all, err := svc.Containers(context.Background(), "gamma", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDockType(t *testing.T) {
	assert.Equal(t, "default", dockType(`["org==default","node==~ip-10-4-1-7"]`))
	assert.Equal(t, "1234", dockType(`["node==ip-10-4-1-7", "org==~1234"]`))
	assert.Equal(t, "", dockType(""))
}
