package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/internal/models"
	"github.com/benmeehan/docks/internal/operation"
	"github.com/benmeehan/docks/internal/utils"
	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/benmeehan/docks/pkg/file"
	http_utils "github.com/benmeehan/docks/pkg/httpUtils"
	"github.com/benmeehan/docks/pkg/tunnel"
	"github.com/rs/zerolog"
)

// PodFinder resolves the name of a pod in a cluster.
type PodFinder interface {
	FindPod(ctx context.Context, kubeContext, namespace, query string) (string, error)
}

// KubectlPodFinder lists pods with kubectl.
type KubectlPodFinder struct {
	Binary string
}

type podList struct {
	Items []struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
	} `json:"items"`
}

// FindPod returns the first pod whose name contains query.
func (k KubectlPodFinder) FindPod(ctx context.Context, kubeContext, namespace, query string) (string, error) {
	var args []string
	if kubeContext != "" {
		args = append(args, "--context", kubeContext)
	}
	if namespace != "" {
		args = append(args, "--namespace", namespace)
	}
	args = append(args, "get", "pods", "-o", "json")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, k.Binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to list pods: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var pods podList
	if err := json.Unmarshal(stdout.Bytes(), &pods); err != nil {
		return "", fmt.Errorf("failed to parse pod list: %w", err)
	}
	for _, pod := range pods.Items {
		if strings.Contains(pod.Metadata.Name, query) {
			return pod.Metadata.Name, nil
		}
	}
	return "", fmt.Errorf("no pod matching %q in context %s", query, kubeContext)
}

// DockerInfo is the part of the engine's /info response used here.
type DockerInfo struct {
	SystemStatus [][2]string `json:"SystemStatus"`
}

// DockerContainer is one entry of the engine's /containers/json response.
type DockerContainer struct {
	ID     string            `json:"Id"`
	Image  string            `json:"Image"`
	Names  []string          `json:"Names"`
	Status string            `json:"Status"`
	Labels map[string]string `json:"Labels"`
}

// DockerAPI is the part of the swarm manager's engine API used here.
type DockerAPI interface {
	Info(ctx context.Context) (DockerInfo, error)
	Containers(ctx context.Context) ([]DockerContainer, error)
}

// DockerClientFactory builds a DockerAPI for the engine at addr.
type DockerClientFactory func(addr string) (DockerAPI, error)

// httpDockerClient talks to the engine API over mutual TLS.
type httpDockerClient struct {
	base   string
	client *http.Client
}

// NewDockerClientFactory returns a factory that authenticates with the
// configured client certificate.
func NewDockerClientFactory(config *utils.Config, fileClient file.FileOperations) DockerClientFactory {
	return func(addr string) (DockerAPI, error) {
		tlsConfig, err := dockerTLS(config, fileClient)
		if err != nil {
			return nil, err
		}
		scheme := "http"
		if tlsConfig != nil {
			scheme = "https"
		}
		return &httpDockerClient{
			base: fmt.Sprintf("%s://%s", scheme, addr),
			client: &http.Client{
				Timeout:   30 * time.Second,
				Transport: &http.Transport{TLSClientConfig: tlsConfig},
			},
		}, nil
	}
}

func dockerTLS(config *utils.Config, fileClient file.FileOperations) (*tls.Config, error) {
	d := config.Docker
	if d.CACertificate == "" && d.Certificate == "" {
		return nil, nil
	}

	caCert, err := fileClient.ReadFileRaw(d.CACertificate)
	if err != nil {
		return nil, fmt.Errorf("failed to read docker CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to append docker CA certificate")
	}

	certPEM, err := fileClient.ReadFileRaw(d.Certificate)
	if err != nil {
		return nil, fmt.Errorf("failed to read docker client certificate: %w", err)
	}
	keyPEM, err := fileClient.ReadFileRaw(d.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read docker client key: %w", err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to load docker client key pair: %w", err)
	}

	serverName := d.ServerName
	if serverName == "" {
		serverName = constants.SwarmPodQuery
	}
	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		ServerName:   serverName,
	}, nil
}

func (c *httpDockerClient) Info(ctx context.Context) (DockerInfo, error) {
	var info DockerInfo
	err := http_utils.GetJSON(ctx, c.client, c.base+"/info", &info)
	return info, err
}

func (c *httpDockerClient) Containers(ctx context.Context) ([]DockerContainer, error) {
	var containers []DockerContainer
	err := http_utils.GetJSON(ctx, c.client, c.base+"/containers/json?all=1", &containers)
	return containers, err
}

// OrchestrationService reads the swarm manager's view of the docks.
type OrchestrationService struct {
	runner    *operation.Runner
	config    *utils.Config
	pods      PodFinder
	newDocker DockerClientFactory
	logger    zerolog.Logger
}

// NewOrchestrationService creates a new OrchestrationService.
func NewOrchestrationService(runner *operation.Runner, config *utils.Config, pods PodFinder, newDocker DockerClientFactory, logger zerolog.Logger) *OrchestrationService {
	return &OrchestrationService{runner: runner, config: config, pods: pods, newDocker: newDocker, logger: logger}
}

// Docks lists the docks known to env's swarm manager, sorted by org then IP.
func (o *OrchestrationService) Docks(ctx context.Context, env string) ([]models.SwarmNode, error) {
	return withSwarm(ctx, o, env, "swarm docks", func(ctx context.Context, docker DockerAPI) ([]models.SwarmNode, error) {
		info, err := docker.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch swarm info: %w", err)
		}
		nodes := ParseSwarmNodes(info.SystemStatus)
		sort.SliceStable(nodes, func(i, j int) bool {
			return compareDocks(nodes[i].Org, nodes[i].IP, nodes[j].Org, nodes[j].IP) < 0
		})
		return nodes, nil
	})
}

// FindDock returns the swarm node with ip.
func (o *OrchestrationService) FindDock(ctx context.Context, env, ip string) (models.SwarmNode, error) {
	nodes, err := o.Docks(ctx, env)
	if err != nil {
		return models.SwarmNode{}, err
	}
	for _, node := range nodes {
		if node.IP == ip {
			return node, nil
		}
	}
	return models.SwarmNode{}, fmt.Errorf("dock with host ip %s: %w", ip, ErrDockNotFound)
}

// Containers lists user containers on env's docks, only org's when set.
// Containers of the platform's own org are left out.
func (o *OrchestrationService) Containers(ctx context.Context, env, org string) ([]models.SwarmContainer, error) {
	return withSwarm(ctx, o, env, "swarm containers", func(ctx context.Context, docker DockerAPI) ([]models.SwarmContainer, error) {
		raw, err := docker.Containers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list swarm containers: %w", err)
		}
		var out []models.SwarmContainer
		for _, c := range raw {
			sc := toSwarmContainer(c)
			if sc.Org == "runnable" || (org != "" && sc.Org != org) {
				continue
			}
			out = append(out, sc)
		}
		return out, nil
	})
}

// withSwarm finds the swarm manager pod and runs fn against its engine API
// through a port-forward.
func withSwarm[R any](ctx context.Context, o *OrchestrationService, env, name string, fn func(ctx context.Context, docker DockerAPI) (R, error)) (R, error) {
	var zero R
	_, environment := o.config.Environment(env)

	pod, err := o.pods.FindPod(ctx, environment.KubeContext, environment.Namespace, constants.SwarmPodQuery)
	if err != nil {
		o.logger.Error().Err(err).Str("context", environment.KubeContext).Msg("Failed to find swarm manager pod")
		return zero, err
	}

	st := o.config.Tunnels.Swarm
	req := operation.Request{
		Name: name,
		Tunnel: &tunnel.Config{
			RemoteHost:  pod,
			RemotePort:  st.RemotePort,
			LocalPort:   st.LocalPort,
			Kind:        tunnel.PortForward,
			KubeContext: environment.KubeContext,
			Namespace:   environment.Namespace,
		},
		SettleDelay: st.SettleDelay,
		Intent:      dryrun.Intent{Kind: dryrun.Read},
	}
	return operation.Execute(ctx, o.runner, req, func(ctx context.Context, s operation.Session) (R, error) {
		docker, err := o.newDocker(s.Endpoint.Addr())
		if err != nil {
			return zero, err
		}
		return fn(ctx, docker)
	})
}

// ParseSwarmNodes extracts the nodes from a swarm manager's SystemStatus.
// Node rows start with a single space and are followed by "  └ Key" rows.
func ParseSwarmNodes(status [][2]string) []models.SwarmNode {
	var nodes []models.SwarmNode
	var current *models.SwarmNode

	for _, row := range status {
		key, value := row[0], row[1]
		switch {
		case strings.HasPrefix(key, "  └"):
			if current == nil {
				continue
			}
			switch strings.TrimSpace(strings.TrimPrefix(key, "  └")) {
			case "Containers":
				current.Containers = leadingInt(value)
			case "Labels":
				current.Org = parseLabels(value)["org"]
			}
		case strings.HasPrefix(key, " ") && !strings.HasPrefix(key, "  "):
			nodes = append(nodes, models.SwarmNode{
				Name: strings.TrimSpace(key),
				IP:   strings.Split(value, ":")[0],
			})
			current = &nodes[len(nodes)-1]
		default:
			current = nil
		}
	}
	return nodes
}

func leadingInt(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(fields[0])
	return n
}

func parseLabels(s string) map[string]string {
	labels := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok {
			labels[k] = v
		}
	}
	return labels
}

// toSwarmContainer maps an engine container. Swarm names containers
// "/<node>/<name>" with nodes named after their IP, e.g. ip-10-4-1-7.
// dockType reads the org constraint a container was scheduled with, e.g.
// `["org==default","node==~ip-10-4-1-7"]`.
func dockType(constraints string) string {
	constraints = strings.NewReplacer(`"`, "", "[", "", "]", "").Replace(constraints)
	for _, c := range strings.Split(constraints, ",") {
		if key, value, ok := strings.Cut(strings.TrimSpace(c), "=="); ok && key == "org" {
			return strings.TrimPrefix(value, "~")
		}
	}
	return ""
}

func toSwarmContainer(c DockerContainer) models.SwarmContainer {
	sc := models.SwarmContainer{
		ID:           c.ID,
		Image:        c.Image,
		Status:       c.Status,
		InstanceName: c.Labels["instanceName"],
		Owner:        c.Labels["ownerUsername"],
		DockType:     dockType(c.Labels["com.docker.swarm.constraints"]),
	}
	if parts := strings.Split(c.Image, "/"); len(parts) > 1 {
		sc.Org = parts[1]
	}
	if len(c.Names) > 0 {
		node := strings.Split(strings.TrimPrefix(c.Names[0], "/"), "/")[0]
		sc.DockIP = strings.ReplaceAll(strings.TrimPrefix(node, "ip-"), "-", ".")
	}
	return sc
}
