package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/benmeehan/docks/internal/mocks"
	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/benmeehan/docks/pkg/paginate"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeAWSClients struct {
	ec2     *mocks.MockEC2API
	asg     *mocks.MockAutoScalingAPI
	regions []string
}

func (f *fakeAWSClients) EC2(_ context.Context, region string) (EC2API, error) {
	f.regions = append(f.regions, region)
	return f.ec2, nil
}

func (f *fakeAWSClients) AutoScaling(_ context.Context, region string) (AutoScalingAPI, error) {
	f.regions = append(f.regions, region)
	return f.asg, nil
}

type fakeWeave struct {
	calls []string
	dry   bool
	err   error
}

func (f *fakeWeave) RemoveFromWeave(_ context.Context, _, org, ip string, dry bool) (dryrun.Result[int64], error) {
	f.calls = append(f.calls, org+"/"+ip)
	f.dry = dry
	return dryrun.Result[int64]{Performed: !dry}, f.err
}

func dockInstance(id, ip, org string) ec2types.Instance {
	return ec2types.Instance{
		InstanceId:       aws.String(id),
		ImageId:          aws.String("ami-0d1e"),
		InstanceType:     ec2types.InstanceTypeM4Large,
		State:            &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		LaunchTime:       aws.Time(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)),
		PrivateIpAddress: aws.String(ip),
		Tags:             []ec2types.Tag{{Key: aws.String("role"), Value: aws.String("dock")}, {Key: aws.String("org"), Value: aws.String(org)}},
	}
}

func TestComputeService_InstancesDrainsPages(t *testing.T) {
	runner, tunnels := testRunner()
	ec2Mock := new(mocks.MockEC2API)
	ec2Mock.On("DescribeInstances", mock.Anything, mock.MatchedBy(func(in *ec2.DescribeInstancesInput) bool {
		return in.NextToken == nil
	})).Return(&ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{dockInstance("i-1", "10.4.1.7", "1234")}}},
		NextToken:    aws.String("page-2"),
	}, nil)
	ec2Mock.On("DescribeInstances", mock.Anything, mock.MatchedBy(func(in *ec2.DescribeInstancesInput) bool {
		return aws.ToString(in.NextToken) == "page-2"
	})).Return(&ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{dockInstance("i-2", "10.4.2.9", "5678")}}},
	}, nil)
	clients := &fakeAWSClients{ec2: ec2Mock}

	svc := NewComputeService(runner, testConfig(), clients, &fakeWeave{}, zerolog.Nop())
	instances, err := svc.Instances(context.Background(), "gamma", "")

	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "i-1", instances[0].ID)
	assert.Equal(t, "1234", instances[0].Org)
	assert.Equal(t, "running", instances[0].State)
	assert.Equal(t, "m4.large", instances[0].Type)
	assert.Equal(t, "5678", instances[1].Org)
	assert.Equal(t, []string{"us-west-2"}, clients.regions)
	assert.Empty(t, tunnels.opened, "compute is reached directly")

	first := ec2Mock.Calls[0].Arguments.Get(1).(*ec2.DescribeInstancesInput)
	require.Len(t, first.Filters, 2)
	assert.Equal(t, "instance.group-name", aws.ToString(first.Filters[0].Name))
	assert.Equal(t, []string{"gamma-dock"}, first.Filters[0].Values)
}

func TestComputeService_InstancesStalledPagination(t *testing.T) {
	runner, _ := testRunner()
	ec2Mock := new(mocks.MockEC2API)
	ec2Mock.On("DescribeInstances", mock.Anything, mock.Anything).Return(&ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{dockInstance("i-1", "10.4.1.7", "1234")}}},
		NextToken:    aws.String("same"),
	}, nil)

	svc := NewComputeService(runner, testConfig(), &fakeAWSClients{ec2: ec2Mock}, &fakeWeave{}, zerolog.Nop())
	instances, err := svc.Instances(context.Background(), "gamma", "i-1")

	assert.ErrorIs(t, err, paginate.ErrPaginationStalled)
	assert.Nil(t, instances)
	ec2Mock.AssertNumberOfCalls(t, "DescribeInstances", 2)
}

func TestComputeService_AutoScalingGroups(t *testing.T) {
	runner, _ := testRunner()
	group := func(name, org, env string) asgtypes.AutoScalingGroup {
		g := asgtypes.AutoScalingGroup{
			AutoScalingGroupName: aws.String(name),
			MinSize:              aws.Int32(1),
			MaxSize:              aws.Int32(5),
			DesiredCapacity:      aws.Int32(2),
			DefaultCooldown:      aws.Int32(300),
		}
		if org != "" {
			g.Tags = append(g.Tags, asgtypes.TagDescription{Key: aws.String("org"), Value: aws.String(org)})
		}
		if env != "" {
			g.Tags = append(g.Tags, asgtypes.TagDescription{Key: aws.String("env"), Value: aws.String(env)})
		}
		return g
	}
	asgMock := new(mocks.MockAutoScalingAPI)
	asgMock.On("DescribeAutoScalingGroups", mock.Anything, mock.MatchedBy(func(in *autoscaling.DescribeAutoScalingGroupsInput) bool {
		return in.NextToken == nil
	})).Return(&autoscaling.DescribeAutoScalingGroupsOutput{
		AutoScalingGroups: []asgtypes.AutoScalingGroup{group("5678-production-gamma", "5678", "production-gamma"), group("untagged", "", "")},
		NextToken:         aws.String("t"),
	}, nil)
	asgMock.On("DescribeAutoScalingGroups", mock.Anything, mock.MatchedBy(func(in *autoscaling.DescribeAutoScalingGroupsInput) bool {
		return aws.ToString(in.NextToken) == "t"
	})).Return(&autoscaling.DescribeAutoScalingGroupsOutput{
		AutoScalingGroups: []asgtypes.AutoScalingGroup{group("1234-production-gamma", "1234", "production-gamma"), group("1234-production-delta", "1234", "production-delta")},
	}, nil)
	clients := &fakeAWSClients{asg: asgMock}

	svc := NewComputeService(runner, testConfig(), clients, &fakeWeave{}, zerolog.Nop())
	groups, err := svc.AutoScalingGroups(context.Background(), "gamma")

	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "1234", groups[0].Org)
	assert.Equal(t, "5678", groups[1].Org)
	assert.Equal(t, 2, groups[0].Desired)
	assert.Equal(t, 300, groups[0].Cooldown)
}

func TestComputeService_AutoScalingGroupsProductionRegion(t *testing.T) {
	runner, _ := testRunner()
	asgMock := new(mocks.MockAutoScalingAPI)
	asgMock.On("DescribeAutoScalingGroups", mock.Anything, mock.Anything).Return(&autoscaling.DescribeAutoScalingGroupsOutput{}, nil)
	clients := &fakeAWSClients{asg: asgMock}

	svc := NewComputeService(runner, testConfig(), clients, &fakeWeave{}, zerolog.Nop())
	_, err := svc.AutoScalingGroups(context.Background(), "production")

	require.NoError(t, err)
	assert.Equal(t, []string{"us-west-1"}, clients.regions)
}

func describeOne(ec2Mock *mocks.MockEC2API, instances ...ec2types.Instance) {
	ec2Mock.On("DescribeInstances", mock.Anything, mock.Anything).Return(&ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: instances}},
	}, nil)
}

func TestComputeService_Terminate(t *testing.T) {
	runner, _ := testRunner()
	ec2Mock := new(mocks.MockEC2API)
	describeOne(ec2Mock, dockInstance("i-1", "10.4.1.7", "1234"))
	ec2Mock.On("TerminateInstances", mock.Anything, &ec2.TerminateInstancesInput{InstanceIds: []string{"i-1"}}).Return(&ec2.TerminateInstancesOutput{
		TerminatingInstances: []ec2types.InstanceStateChange{{
			InstanceId:   aws.String("i-1"),
			CurrentState: &ec2types.InstanceState{Name: ec2types.InstanceStateNameShuttingDown},
		}},
	}, nil)
	weave := &fakeWeave{}

	svc := NewComputeService(runner, testConfig(), &fakeAWSClients{ec2: ec2Mock}, weave, zerolog.Nop())
	res, err := svc.Terminate(context.Background(), "gamma", "i-1", false)

	require.NoError(t, err)
	assert.True(t, res.Performed)
	assert.Equal(t, "shutting-down", res.Value.State)
	assert.Equal(t, []string{"1234/10.4.1.7"}, weave.calls)
	assert.False(t, weave.dry)
	ec2Mock.AssertExpectations(t)
}

func TestComputeService_TerminateDryRun(t *testing.T) {
	runner, _ := testRunner()
	ec2Mock := new(mocks.MockEC2API)
	describeOne(ec2Mock, dockInstance("i-1", "10.4.1.7", "1234"))
	weave := &fakeWeave{}

	svc := NewComputeService(runner, testConfig(), &fakeAWSClients{ec2: ec2Mock}, weave, zerolog.Nop())
	res, err := svc.Terminate(context.Background(), "gamma", "i-1", true)

	require.NoError(t, err)
	assert.False(t, res.Performed)
	assert.Equal(t, "i-1", res.Value.ID)
	assert.True(t, weave.dry)
	ec2Mock.AssertNotCalled(t, "TerminateInstances", mock.Anything, mock.Anything)
}

func TestComputeService_TerminateNotFound(t *testing.T) {
	runner, _ := testRunner()
	ec2Mock := new(mocks.MockEC2API)
	describeOne(ec2Mock)
	weave := &fakeWeave{}

	svc := NewComputeService(runner, testConfig(), &fakeAWSClients{ec2: ec2Mock}, weave, zerolog.Nop())
	_, err := svc.Terminate(context.Background(), "gamma", "i-404", false)

	assert.ErrorIs(t, err, ErrDockNotFound)
	assert.Empty(t, weave.calls)
}

func TestComputeService_TerminateStopsOnWeaveError(t *testing.T) {
	runner, _ := testRunner()
	ec2Mock := new(mocks.MockEC2API)
	describeOne(ec2Mock, dockInstance("i-1", "10.4.1.7", "1234"))
	weave := &fakeWeave{err: errors.New("redis tunnel failed")}

	svc := NewComputeService(runner, testConfig(), &fakeAWSClients{ec2: ec2Mock}, weave, zerolog.Nop())
	_, err := svc.Terminate(context.Background(), "gamma", "i-1", false)

	assert.ErrorContains(t, err, "redis tunnel failed")
	ec2Mock.AssertNotCalled(t, "TerminateInstances", mock.Anything, mock.Anything)
}
