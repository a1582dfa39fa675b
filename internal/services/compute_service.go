package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/benmeehan/docks/internal/models"
	"github.com/benmeehan/docks/internal/operation"
	"github.com/benmeehan/docks/internal/utils"
	"github.com/benmeehan/docks/pkg/dryrun"
	"github.com/benmeehan/docks/pkg/paginate"
	"github.com/rs/zerolog"
)

// EC2API is the part of the EC2 client used by ComputeService.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

// AutoScalingAPI is the part of the Auto Scaling client used by ComputeService.
type AutoScalingAPI interface {
	DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
}

// AWSClients builds region-bound AWS clients.
type AWSClients interface {
	EC2(ctx context.Context, region string) (EC2API, error)
	AutoScaling(ctx context.Context, region string) (AutoScalingAPI, error)
}

// WeaveRemover removes a dock from its org's weave network.
type WeaveRemover interface {
	RemoveFromWeave(ctx context.Context, env, org, ip string, dry bool) (dryrun.Result[int64], error)
}

// SDKClients implements AWSClients with the AWS SDK. Static keys are used
// when set, otherwise the default credential chain.
type SDKClients struct {
	AccessKeyID     string
	SecretAccessKey string
}

func (c SDKClients) load(ctx context.Context, region string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if c.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}

// EC2 implements AWSClients.
func (c SDKClients) EC2(ctx context.Context, region string) (EC2API, error) {
	cfg, err := c.load(ctx, region)
	if err != nil {
		return nil, err
	}
	return ec2.NewFromConfig(cfg), nil
}

// AutoScaling implements AWSClients.
func (c SDKClients) AutoScaling(ctx context.Context, region string) (AutoScalingAPI, error) {
	cfg, err := c.load(ctx, region)
	if err != nil {
		return nil, err
	}
	return autoscaling.NewFromConfig(cfg), nil
}

// ComputeService lists and terminates dock instances.
type ComputeService struct {
	runner  *operation.Runner
	config  *utils.Config
	clients AWSClients
	weave   WeaveRemover
	logger  zerolog.Logger
}

// NewComputeService creates a new ComputeService.
func NewComputeService(runner *operation.Runner, config *utils.Config, clients AWSClients, weave WeaveRemover, logger zerolog.Logger) *ComputeService {
	return &ComputeService{runner: runner, config: config, clients: clients, weave: weave, logger: logger}
}

// Instances lists env's dock instances, only the one with id when id is set.
func (cs *ComputeService) Instances(ctx context.Context, env, id string) ([]models.Instance, error) {
	_, environment := cs.config.Environment(env)
	req := operation.Request{Name: "aws instances", Intent: dryrun.Intent{Kind: dryrun.Read}}

	return operation.Execute(ctx, cs.runner, req, func(ctx context.Context, s operation.Session) ([]models.Instance, error) {
		client, err := cs.clients.EC2(ctx, environment.Region)
		if err != nil {
			return nil, err
		}

		filters := dockFilters(environment.DockFilters)
		if id != "" {
			filters = append(filters, ec2types.Filter{Name: aws.String("instance-id"), Values: []string{id}})
		}

		reservations, err := paginate.FetchAll(ctx, s.Logger, func(ctx context.Context, token *string) (paginate.Page[ec2types.Reservation], error) {
			out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{Filters: filters, NextToken: token})
			if err != nil {
				return paginate.Page[ec2types.Reservation]{}, fmt.Errorf("failed to describe instances: %w", err)
			}
			return paginate.Page[ec2types.Reservation]{Items: out.Reservations, ContinuationToken: paginate.Token(aws.ToString(out.NextToken))}, nil
		})
		if err != nil {
			return nil, err
		}

		var instances []models.Instance
		for _, res := range reservations {
			for _, inst := range res.Instances {
				instances = append(instances, toInstance(inst))
			}
		}
		return instances, nil
	})
}

// AutoScalingGroups lists the per-org dock groups of env.
func (cs *ComputeService) AutoScalingGroups(ctx context.Context, env string) ([]models.AutoScalingGroup, error) {
	name, environment := cs.config.Environment(env)
	req := operation.Request{Name: "asg list", Intent: dryrun.Intent{Kind: dryrun.Read}}

	return operation.Execute(ctx, cs.runner, req, func(ctx context.Context, s operation.Session) ([]models.AutoScalingGroup, error) {
		client, err := cs.clients.AutoScaling(ctx, environment.ASGRegion)
		if err != nil {
			return nil, err
		}

		groups, err := paginate.FetchAll(ctx, s.Logger, func(ctx context.Context, token *string) (paginate.Page[asgtypes.AutoScalingGroup], error) {
			out, err := client.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{NextToken: token})
			if err != nil {
				return paginate.Page[asgtypes.AutoScalingGroup]{}, fmt.Errorf("failed to describe auto scaling groups: %w", err)
			}
			return paginate.Page[asgtypes.AutoScalingGroup]{Items: out.AutoScalingGroups, ContinuationToken: paginate.Token(aws.ToString(out.NextToken))}, nil
		})
		if err != nil {
			return nil, err
		}

		want := "production-" + name
		var result []models.AutoScalingGroup
		for _, g := range groups {
			org, hasOrg := asgTag(g.Tags, "org")
			groupEnv, hasEnv := asgTag(g.Tags, "env")
			if !hasOrg || !hasEnv || groupEnv != want {
				continue
			}
			result = append(result, models.AutoScalingGroup{
				Name:                aws.ToString(g.AutoScalingGroupName),
				Org:                 org,
				Env:                 groupEnv,
				LaunchConfiguration: aws.ToString(g.LaunchConfigurationName),
				Min:                 int(aws.ToInt32(g.MinSize)),
				Max:                 int(aws.ToInt32(g.MaxSize)),
				Desired:             int(aws.ToInt32(g.DesiredCapacity)),
				Cooldown:            int(aws.ToInt32(g.DefaultCooldown)),
				Created:             aws.ToTime(g.CreatedTime),
			})
		}
		sort.Slice(result, func(i, j int) bool { return result[i].Org < result[j].Org })
		return result, nil
	})
}

// Terminate looks up the dock instance id, removes it from its weave network
// and terminates it. Every mutation honors dry.
func (cs *ComputeService) Terminate(ctx context.Context, env, id string, dry bool) (dryrun.Result[models.Instance], error) {
	instances, err := cs.Instances(ctx, env, id)
	if err != nil {
		return dryrun.Result[models.Instance]{}, err
	}
	if len(instances) != 1 {
		return dryrun.Result[models.Instance]{}, fmt.Errorf("dock with id %s: %w", id, ErrDockNotFound)
	}
	instance := instances[0]

	if _, err := cs.weave.RemoveFromWeave(ctx, env, instance.Org, instance.IP, dry); err != nil {
		return dryrun.Result[models.Instance]{}, err
	}

	_, environment := cs.config.Environment(env)
	req := operation.Request{Name: "terminate", Intent: dryrun.Intent{Kind: dryrun.Mutate, DryRun: dry}}
	return operation.Execute(ctx, cs.runner, req, func(ctx context.Context, s operation.Session) (dryrun.Result[models.Instance], error) {
		return operation.Guard(ctx, s, dryrun.Action[models.Instance]{
			Description: fmt.Sprintf("terminate dock instance %s (%s)", instance.ID, instance.IP),
			Preview:     instance,
			Run: func(ctx context.Context) (models.Instance, error) {
				client, err := cs.clients.EC2(ctx, environment.Region)
				if err != nil {
					return instance, err
				}
				out, err := client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{instance.ID}})
				if err != nil {
					return instance, fmt.Errorf("failed to terminate %s: %w", instance.ID, err)
				}
				terminated := instance
				for _, change := range out.TerminatingInstances {
					if aws.ToString(change.InstanceId) == instance.ID && change.CurrentState != nil {
						terminated.State = string(change.CurrentState.Name)
					}
				}
				return terminated, nil
			},
		})
	})
}

func dockFilters(filters map[string][]string) []ec2types.Filter {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ec2types.Filter, 0, len(names)+1)
	for _, name := range names {
		out = append(out, ec2types.Filter{Name: aws.String(name), Values: filters[name]})
	}
	return out
}

func toInstance(inst ec2types.Instance) models.Instance {
	i := models.Instance{
		ID:       aws.ToString(inst.InstanceId),
		AMI:      aws.ToString(inst.ImageId),
		Type:     string(inst.InstanceType),
		Launched: aws.ToTime(inst.LaunchTime),
		IP:       aws.ToString(inst.PrivateIpAddress),
	}
	if inst.State != nil {
		i.State = string(inst.State.Name)
	}
	for _, tag := range inst.Tags {
		if aws.ToString(tag.Key) == "org" {
			i.Org = aws.ToString(tag.Value)
		}
	}
	return i
}

func asgTag(tags []asgtypes.TagDescription, key string) (string, bool) {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == key {
			return aws.ToString(tag.Value), true
		}
	}
	return "", false
}
