package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/internal/models"
	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/rs/zerolog"
)

var (
	// ErrGroupExists is returned when creating a group for an org that has one.
	ErrGroupExists = errors.New("auto-scaling group already exists")
	// ErrGroupNotFound is returned when an org has no group in the environment.
	ErrGroupNotFound = errors.New("auto-scaling group does not exist")
	// ErrCannotScaleIn is returned when scaling in would drop below zero instances.
	ErrCannotScaleIn = errors.New("the group cannot be scaled-in further")
)

// GroupLister lists the per-org auto-scaling groups of an environment.
type GroupLister interface {
	AutoScalingGroups(ctx context.Context, env string) ([]models.AutoScalingGroup, error)
}

// JobPublisher enqueues a job on the environment's broker.
type JobPublisher interface {
	Publish(ctx context.Context, env, queue string, job any, dry bool) (dryrun.Result[models.PublishReceipt], error)
}

// ScalingService changes org dock clusters by enqueueing jobs for the
// scaling workers. The groups themselves are only read.
type ScalingService struct {
	groups GroupLister
	jobs   JobPublisher
	logger zerolog.Logger
}

// NewScalingService creates a new ScalingService.
func NewScalingService(groups GroupLister, jobs JobPublisher, logger zerolog.Logger) *ScalingService {
	return &ScalingService{groups: groups, jobs: jobs, logger: logger}
}

// Create enqueues the creation of org's group. The org must not have one.
func (ss *ScalingService) Create(ctx context.Context, env, org string, dry bool) (dryrun.Result[models.PublishReceipt], error) {
	if _, err := ss.group(ctx, env, org); err == nil {
		return dryrun.Result[models.PublishReceipt]{}, fmt.Errorf("org %s: %w", org, ErrGroupExists)
	} else if !errors.Is(err, ErrGroupNotFound) {
		return dryrun.Result[models.PublishReceipt]{}, err
	}
	return ss.jobs.Publish(ctx, env, constants.QueueASGCreate, models.ASGJob{GithubID: org}, dry)
}

// Delete enqueues the deletion of org's group.
func (ss *ScalingService) Delete(ctx context.Context, env, org string, dry bool) (dryrun.Result[models.PublishReceipt], error) {
	if _, err := ss.group(ctx, env, org); err != nil {
		return dryrun.Result[models.PublishReceipt]{}, err
	}
	return ss.jobs.Publish(ctx, env, constants.QueueASGDelete, models.ASGJob{GithubID: org}, dry)
}

// Off scales org's group to zero without deleting it.
func (ss *ScalingService) Off(ctx context.Context, env, org string, dry bool) (dryrun.Result[models.PublishReceipt], error) {
	return ss.update(ctx, env, org, dry, func(models.AutoScalingGroup) (models.ASGUpdate, error) {
		return models.ASGUpdate{MinSize: intPtr(0), DesiredCapacity: intPtr(0)}, nil
	})
}

// SetLaunchConfiguration switches org's group to launch configuration lc.
func (ss *ScalingService) SetLaunchConfiguration(ctx context.Context, env, org, lc string, dry bool) (dryrun.Result[models.PublishReceipt], error) {
	if lc == "" {
		return dryrun.Result[models.PublishReceipt]{}, errors.New("a launch configuration name is required")
	}
	return ss.update(ctx, env, org, dry, func(models.AutoScalingGroup) (models.ASGUpdate, error) {
		return models.ASGUpdate{LaunchConfigurationName: lc}, nil
	})
}

// ScaleOut adds n instances to org's group, raising min, desired and max.
func (ss *ScalingService) ScaleOut(ctx context.Context, env, org string, n int, dry bool) (dryrun.Result[models.PublishReceipt], error) {
	if n <= 0 {
		return dryrun.Result[models.PublishReceipt]{}, errors.New("scale out number must be greater than 0")
	}
	return ss.update(ctx, env, org, dry, func(g models.AutoScalingGroup) (models.ASGUpdate, error) {
		return models.ASGUpdate{MinSize: intPtr(g.Min + n), DesiredCapacity: intPtr(g.Desired + n), MaxSize: intPtr(g.Max + n)}, nil
	})
}

// ScaleIn removes n instances from org's group, lowering min, desired and max.
func (ss *ScalingService) ScaleIn(ctx context.Context, env, org string, n int, dry bool) (dryrun.Result[models.PublishReceipt], error) {
	if n <= 0 {
		return dryrun.Result[models.PublishReceipt]{}, errors.New("scale in number must be greater than 0")
	}
	return ss.update(ctx, env, org, dry, func(g models.AutoScalingGroup) (models.ASGUpdate, error) {
		if g.Min-n < 0 || g.Desired-n < 0 {
			return models.ASGUpdate{}, fmt.Errorf("org %s has min %d and desired %d: %w", org, g.Min, g.Desired, ErrCannotScaleIn)
		}
		return models.ASGUpdate{MinSize: intPtr(g.Min - n), DesiredCapacity: intPtr(g.Desired - n), MaxSize: intPtr(g.Max - n)}, nil
	})
}

// Provision enqueues a new dock for org.
func (ss *ScalingService) Provision(ctx context.Context, env, org string, dry bool) (dryrun.Result[models.PublishReceipt], error) {
	if org == "" {
		return dryrun.Result[models.PublishReceipt]{}, errors.New("an org id is required")
	}
	return ss.jobs.Publish(ctx, env, constants.QueueInstanceProvision, models.ProvisionJob{GithubID: org}, dry)
}

func (ss *ScalingService) update(ctx context.Context, env, org string, dry bool, change func(models.AutoScalingGroup) (models.ASGUpdate, error)) (dryrun.Result[models.PublishReceipt], error) {
	g, err := ss.group(ctx, env, org)
	if err != nil {
		return dryrun.Result[models.PublishReceipt]{}, err
	}
	data, err := change(g)
	if err != nil {
		return dryrun.Result[models.PublishReceipt]{}, err
	}
	ss.logger.Debug().Str("group", g.Name).Str("org", org).Msg("Updating auto-scaling group")
	return ss.jobs.Publish(ctx, env, constants.QueueASGUpdate, models.ASGJob{GithubID: org, Data: &data}, dry)
}

// group finds org's group among env's groups.
func (ss *ScalingService) group(ctx context.Context, env, org string) (models.AutoScalingGroup, error) {
	if org == "" {
		return models.AutoScalingGroup{}, errors.New("an org id is required")
	}
	groups, err := ss.groups.AutoScalingGroups(ctx, env)
	if err != nil {
		return models.AutoScalingGroup{}, err
	}
	for _, g := range groups {
		if g.Org == org {
			return g, nil
		}
	}
	return models.AutoScalingGroup{}, fmt.Errorf("org %s in %s: %w", org, env, ErrGroupNotFound)
}

func intPtr(n int) *int { return &n }
