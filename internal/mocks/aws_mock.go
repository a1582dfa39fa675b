package mocks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/stretchr/testify/mock"
)

// MockEC2API is a mock implementation of the EC2API interface
type MockEC2API struct {
	mock.Mock
}

func (m *MockEC2API) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*ec2.DescribeInstancesOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEC2API) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*ec2.TerminateInstancesOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAutoScalingAPI is a mock implementation of the AutoScalingAPI interface
type MockAutoScalingAPI struct {
	mock.Mock
}

func (m *MockAutoScalingAPI) DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*autoscaling.DescribeAutoScalingGroupsOutput), args.Error(1)
	}
	return nil, args.Error(1)
}
