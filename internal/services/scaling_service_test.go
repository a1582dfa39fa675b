package services

import (
	"context"
	"errors"
	"testing"

	"github.com/benmeehan/docks/internal/constants"
	"github.com/benmeehan/docks/internal/models"
	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGroups struct{ mock.Mock }

func (m *mockGroups) AutoScalingGroups(ctx context.Context, env string) ([]models.AutoScalingGroup, error) {
	args := m.Called(ctx, env)
	groups, _ := args.Get(0).([]models.AutoScalingGroup)
	return groups, args.Error(1)
}

type mockJobs struct{ mock.Mock }

func (m *mockJobs) Publish(ctx context.Context, env, queue string, job any, dry bool) (dryrun.Result[models.PublishReceipt], error) {
	args := m.Called(ctx, env, queue, job, dry)
	return args.Get(0).(dryrun.Result[models.PublishReceipt]), args.Error(1)
}

var gammaGroups = []models.AutoScalingGroup{
	{Name: "asg-production-gamma-1234", Org: "1234", Min: 2, Desired: 3, Max: 5},
	{Name: "asg-production-gamma-5678", Org: "5678", Min: 0, Desired: 1, Max: 2},
}

func scalingService(groups []models.AutoScalingGroup) (*ScalingService, *mockJobs) {
	lister := new(mockGroups)
	lister.On("AutoScalingGroups", mock.Anything, "gamma").Return(groups, nil)
	jobs := new(mockJobs)
	return NewScalingService(lister, jobs, zerolog.Nop()), jobs
}

func published(queue string) dryrun.Result[models.PublishReceipt] {
	return dryrun.Result[models.PublishReceipt]{Performed: true, Value: models.PublishReceipt{Queue: queue, Performed: true}}
}

func TestScalingService_Create(t *testing.T) {
	svc, jobs := scalingService(gammaGroups)
	jobs.On("Publish", mock.Anything, "gamma", constants.QueueASGCreate, models.ASGJob{GithubID: "9999"}, true).
		Return(published(constants.QueueASGCreate), nil)

	res, err := svc.Create(context.Background(), "gamma", "9999", true)

	require.NoError(t, err)
	assert.Equal(t, constants.QueueASGCreate, res.Value.Queue)
	jobs.AssertExpectations(t)
}

func TestScalingService_CreateExisting(t *testing.T) {
	svc, jobs := scalingService(gammaGroups)

	_, err := svc.Create(context.Background(), "gamma", "1234", false)

	assert.ErrorIs(t, err, ErrGroupExists)
	jobs.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestScalingService_DeleteMissing(t *testing.T) {
	svc, jobs := scalingService(gammaGroups)

	_, err := svc.Delete(context.Background(), "gamma", "9999", false)

	assert.ErrorIs(t, err, ErrGroupNotFound)
	jobs.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestScalingService_Delete(t *testing.T) {
	svc, jobs := scalingService(gammaGroups)
	jobs.On("Publish", mock.Anything, "gamma", constants.QueueASGDelete, models.ASGJob{GithubID: "1234"}, false).
		Return(published(constants.QueueASGDelete), nil)

	_, err := svc.Delete(context.Background(), "gamma", "1234", false)

	require.NoError(t, err)
	jobs.AssertExpectations(t)
}

func TestScalingService_Updates(t *testing.T) {
	tests := []struct {
		name string
		run  func(*ScalingService) (dryrun.Result[models.PublishReceipt], error)
		want models.ASGUpdate
	}{
		{
			name: "off",
			run: func(s *ScalingService) (dryrun.Result[models.PublishReceipt], error) {
				return s.Off(context.Background(), "gamma", "1234", false)
			},
			want: models.ASGUpdate{MinSize: intPtr(0), DesiredCapacity: intPtr(0)},
		},
		{
			name: "launch configuration",
			run: func(s *ScalingService) (dryrun.Result[models.PublishReceipt], error) {
				return s.SetLaunchConfiguration(context.Background(), "gamma", "1234", "dock-lc-v2", false)
			},
			want: models.ASGUpdate{LaunchConfigurationName: "dock-lc-v2"},
		},
		{
			name: "scale out",
			run: func(s *ScalingService) (dryrun.Result[models.PublishReceipt], error) {
				return s.ScaleOut(context.Background(), "gamma", "1234", 2, false)
			},
			want: models.ASGUpdate{MinSize: intPtr(4), DesiredCapacity: intPtr(5), MaxSize: intPtr(7)},
		},
		{
			name: "scale in",
			run: func(s *ScalingService) (dryrun.Result[models.PublishReceipt], error) {
				return s.ScaleIn(context.Background(), "gamma", "1234", 1, false)
			},
			want: models.ASGUpdate{MinSize: intPtr(1), DesiredCapacity: intPtr(2), MaxSize: intPtr(4)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, jobs := scalingService(gammaGroups)
			want := tt.want
			jobs.On("Publish", mock.Anything, "gamma", constants.QueueASGUpdate, models.ASGJob{GithubID: "1234", Data: &want}, false).
				Return(published(constants.QueueASGUpdate), nil)

			_, err := tt.run(svc)

			require.NoError(t, err)
			jobs.AssertExpectations(t)
		})
	}
}

func TestScalingService_ScaleInBelowZero(t *testing.T) {
	svc, jobs := scalingService(gammaGroups)

	_, err := svc.ScaleIn(context.Background(), "gamma", "5678", 1, false)

	assert.ErrorIs(t, err, ErrCannotScaleIn)
	jobs.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestScalingService_RejectsBadArguments(t *testing.T) {
	svc, _ := scalingService(gammaGroups)
	ctx := context.Background()

	_, err := svc.ScaleOut(ctx, "gamma", "1234", 0, false)
	assert.ErrorContains(t, err, "greater than 0")
	_, err = svc.ScaleIn(ctx, "gamma", "1234", -1, false)
	assert.ErrorContains(t, err, "greater than 0")
	_, err = svc.SetLaunchConfiguration(ctx, "gamma", "1234", "", false)
	assert.ErrorContains(t, err, "launch configuration")
	_, err = svc.Off(ctx, "gamma", "", false)
	assert.ErrorContains(t, err, "org id is required")
}

func TestScalingService_ListFailureSurfaces(t *testing.T) {
	lister := new(mockGroups)
	lister.On("AutoScalingGroups", mock.Anything, "gamma").Return(nil, errors.New("throttled"))
	svc := NewScalingService(lister, new(mockJobs), zerolog.Nop())

	_, err := svc.Create(context.Background(), "gamma", "9999", false)

	assert.ErrorContains(t, err, "throttled")
}

func TestScalingService_Provision(t *testing.T) {
	svc, jobs := scalingService(nil)
	jobs.On("Publish", mock.Anything, "gamma", constants.QueueInstanceProvision, models.ProvisionJob{GithubID: "1234"}, true).
		Return(published(constants.QueueInstanceProvision), nil)

	_, err := svc.Provision(context.Background(), "gamma", "1234", true)

	require.NoError(t, err)
	jobs.AssertExpectations(t)

	_, err = svc.Provision(context.Background(), "gamma", "", true)
	assert.Error(t, err)
}
