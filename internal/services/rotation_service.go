package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/internal/models"
	"github.com/benmeehan/docks/internal/operation"
	"github.com/benmeehan/docks/internal/utils"
	"github.com/benmeehan/docks/pkg/dryrun"
	http_utils "github.com/benmeehan/docks/pkg/httpUtils"
	"github.com/rs/zerolog"
)

// rotationDock is a dock as the rotation service reports it.
type rotationDock struct {
	Host          string `json:"host"`
	Tags          string `json:"tags"`
	NumBuilds     any    `json:"numBuilds"`
	NumContainers any    `json:"numContainers"`
}

// RotationService reads and edits the set of docks in rotation.
type RotationService struct {
	runner *operation.Runner
	config *utils.Config
	client *http.Client
	logger zerolog.Logger
}

// NewRotationService creates a new RotationService. A nil client gets a 30s timeout.
func NewRotationService(runner *operation.Runner, config *utils.Config, client *http.Client, logger zerolog.Logger) *RotationService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RotationService{runner: runner, config: config, client: client, logger: logger}
}

// Docks lists the docks in rotation for env, optionally only those whose org
// starts with org, sorted by org then IP.
func (rs *RotationService) Docks(ctx context.Context, env, org string) ([]models.Dock, error) {
	_, environment := rs.config.Environment(env)
	req := operation.Request{Name: "list", Intent: dryrun.Intent{Kind: dryrun.Read}}

	return operation.Execute(ctx, rs.runner, req, func(ctx context.Context, s operation.Session) ([]models.Dock, error) {
		var raw []rotationDock
		if err := http_utils.GetJSON(ctx, rs.client, rotationURL(environment.RotationHost, "/docks"), &raw); err != nil {
			s.Logger.Error().Err(err).Str("host", environment.RotationHost).Msg("Failed to fetch docks")
			return nil, err
		}

		docks := make([]models.Dock, 0, len(raw))
		for _, d := range raw {
			dock, err := toDock(d)
			if err != nil {
				s.Logger.Warn().Err(err).Str("host", d.Host).Msg("Skipping malformed dock")
				continue
			}
			if org != "" && !strings.HasPrefix(dock.Org, org) {
				continue
			}
			docks = append(docks, dock)
		}
		SortDocks(docks)
		return docks, nil
	})
}

// Remove takes the dock with ip out of rotation.
func (rs *RotationService) Remove(ctx context.Context, env, ip string, dry bool) (dryrun.Result[string], error) {
	_, environment := rs.config.Environment(env)
	req := operation.Request{Name: "remove", Intent: dryrun.Intent{Kind: dryrun.Mutate, DryRun: dry}}
	dockHost := fmt.Sprintf("http://%s:%d", ip, constants.DockAgentPort)

	return operation.Execute(ctx, rs.runner, req, func(ctx context.Context, s operation.Session) (dryrun.Result[string], error) {
		return operation.Guard(ctx, s, dryrun.Action[string]{
			Description: fmt.Sprintf("remove dock %s from rotation via %s", ip, environment.RotationHost),
			Preview:     dockHost,
			Run: func(ctx context.Context) (string, error) {
				target := rotationURL(environment.RotationHost, "/docks") + "?host=" + url.QueryEscape(dockHost)
				if err := http_utils.Delete(ctx, rs.client, target); err != nil {
					return dockHost, fmt.Errorf("failed to remove %s from rotation: %w", ip, err)
				}
				return dockHost, nil
			},
		})
	})
}

// SortDocks orders docks by org, then by IP. Numeric orgs and addresses
// compare by value, and the "default" org goes last.
func SortDocks(docks []models.Dock) {
	sort.SliceStable(docks, func(i, j int) bool {
		return compareDocks(docks[i].Org, docks[i].IP, docks[j].Org, docks[j].IP) < 0
	})
}

func rotationURL(host, path string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimSuffix(host, "/") + path
	}
	return "http://" + host + path
}

// toDock splits the composite fields, e.g. host "http://10.4.1.7:4242" and
// tags "1234, build, run".
func toDock(d rotationDock) (models.Dock, error) {
	u, err := url.Parse(d.Host)
	if err != nil || u.Hostname() == "" {
		return models.Dock{}, fmt.Errorf("invalid dock host %q", d.Host)
	}

	var tags []string
	for _, tag := range strings.Split(d.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	dock := models.Dock{
		Host:       d.Host,
		IP:         u.Hostname(),
		Tags:       tags,
		Builds:     toInt(d.NumBuilds),
		Containers: toInt(d.NumContainers),
	}
	if len(tags) > 0 {
		dock.Org = tags[0]
	}
	return dock, nil
}

// toInt accepts the counters as JSON numbers or numeric strings.
func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	default:
		return 0
	}
}
