package services

import (
	"context"
	"sort"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/internal/models"
	"github.com/rs/zerolog"
)

// SwarmContainerLister lists the containers running on an environment's docks.
type SwarmContainerLister interface {
	Containers(ctx context.Context, env, org string) ([]models.SwarmContainer, error)
}

// InstanceContainerLister lists the containers referenced by instance documents.
type InstanceContainerLister interface {
	Containers(ctx context.Context, env, org string) ([]models.Container, error)
}

// GhostService finds containers that run on a dock but belong to no instance.
type GhostService struct {
	swarm     SwarmContainerLister
	instances InstanceContainerLister
	logger    zerolog.Logger
}

// NewGhostService creates a new GhostService.
func NewGhostService(swarm SwarmContainerLister, instances InstanceContainerLister, logger zerolog.Logger) *GhostService {
	return &GhostService{swarm: swarm, instances: instances, logger: logger}
}

// Report compares env's swarm containers with its instance documents. The
// two reads run one after the other, each through its own tunnel.
func (gs *GhostService) Report(ctx context.Context, env string) (models.GhostReport, error) {
	running, err := gs.swarm.Containers(ctx, env, "")
	if err != nil {
		return models.GhostReport{}, err
	}
	known, err := gs.instances.Containers(ctx, env, "")
	if err != nil {
		return models.GhostReport{}, err
	}
	report := FindGhosts(running, known)
	gs.logger.Debug().Int("containers", report.Total).Int("ghosts", len(report.Ghosts)).Msg("Ghost containers counted")
	return report, nil
}

// FindGhosts returns the running containers whose id no instance document
// references, sorted by owner, with per-owner counts.
func FindGhosts(running []models.SwarmContainer, known []models.Container) models.GhostReport {
	ids := make(map[string]struct{}, len(known))
	for _, c := range known {
		ids[c.Docker.ID] = struct{}{}
	}

	report := models.GhostReport{Total: len(running)}
	owners := make(map[string]*models.OwnerGhosts)
	for _, c := range running {
		o, ok := owners[c.Owner]
		if !ok {
			o = &models.OwnerGhosts{Owner: c.Owner}
			owners[c.Owner] = o
		}
		o.Total++

		isDefault := c.DockType == constants.DefaultOrg
		if isDefault {
			report.DefaultTotal++
		}
		if _, ok := ids[c.ID]; ok {
			continue
		}
		o.Ghosts++
		if isDefault {
			report.DefaultGhosts++
		}
		report.Ghosts = append(report.Ghosts, c)
	}

	sort.SliceStable(report.Ghosts, func(i, j int) bool { return report.Ghosts[i].Owner < report.Ghosts[j].Owner })
	for _, o := range owners {
		report.Owners = append(report.Owners, *o)
	}
	sort.Slice(report.Owners, func(i, j int) bool { return report.Owners[i].Owner < report.Owners[j].Owner })
	return report
}
