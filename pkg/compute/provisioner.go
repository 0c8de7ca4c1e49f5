// Package compute makes a built image reachable as a running, load-balanced
// service: task definitions, the routing target group, host-based listener
// rules and the service itself. Every ensure operation is keyed by the
// project name so repeated calls converge on the same resources.
package compute

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/internal/logger"
	"github.com/nimbus-host/nimbus-backend/internal/utils"
	"github.com/nimbus-host/nimbus-backend/pkg/config"
	"github.com/nimbus-host/nimbus-backend/pkg/infrastructure/awsapi"
)

type ECSAPI interface {
	RegisterTaskDefinition(ctx context.Context, params *ecs.RegisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error)
	DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
	CreateService(ctx context.Context, params *ecs.CreateServiceInput, optFns ...func(*ecs.Options)) (*ecs.CreateServiceOutput, error)
	UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
	DeleteService(ctx context.Context, params *ecs.DeleteServiceInput, optFns ...func(*ecs.Options)) (*ecs.DeleteServiceOutput, error)
}

type ELBAPI interface {
	DescribeTargetGroups(ctx context.Context, params *elbv2.DescribeTargetGroupsInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTargetGroupsOutput, error)
	CreateTargetGroup(ctx context.Context, params *elbv2.CreateTargetGroupInput, optFns ...func(*elbv2.Options)) (*elbv2.CreateTargetGroupOutput, error)
	DeleteTargetGroup(ctx context.Context, params *elbv2.DeleteTargetGroupInput, optFns ...func(*elbv2.Options)) (*elbv2.DeleteTargetGroupOutput, error)
	DescribeLoadBalancers(ctx context.Context, params *elbv2.DescribeLoadBalancersInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancersOutput, error)
	DescribeRules(ctx context.Context, params *elbv2.DescribeRulesInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeRulesOutput, error)
	CreateRule(ctx context.Context, params *elbv2.CreateRuleInput, optFns ...func(*elbv2.Options)) (*elbv2.CreateRuleOutput, error)
	ModifyRule(ctx context.Context, params *elbv2.ModifyRuleInput, optFns ...func(*elbv2.Options)) (*elbv2.ModifyRuleOutput, error)
	DeleteRule(ctx context.Context, params *elbv2.DeleteRuleInput, optFns ...func(*elbv2.Options)) (*elbv2.DeleteRuleOutput, error)
}

type LogGroupAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	DeleteLogGroup(ctx context.Context, params *cloudwatchlogs.DeleteLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error)
}

type Provisioner struct {
	ecs  ECSAPI
	elb  ELBAPI
	logs LogGroupAPI
	cfg  *config.Config
}

func NewProvisioner(ecsClient ECSAPI, elbClient ELBAPI, logs LogGroupAPI, cfg *config.Config) *Provisioner {
	return &Provisioner{ecs: ecsClient, elb: elbClient, logs: logs, cfg: cfg}
}

// RegisterTaskDefinition creates a new immutable revision with one container
// on the fixed platform port. The runtime log group is pre-created;
// duplicate creation is not an error.
func (p *Provisioner) RegisterTaskDefinition(ctx context.Context, projectName, imageRef string, envVars map[string]string) (string, error) {
	logGroup := utils.RuntimeLogGroup(projectName)
	_, err := p.logs.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(logGroup),
	})
	if err != nil && !awsapi.IsAlreadyExists(err) {
		return "", wrapProvisioning("create log group", err)
	}

	out, err := p.ecs.RegisterTaskDefinition(ctx, &ecs.RegisterTaskDefinitionInput{
		Family:                  aws.String(utils.TaskFamily(projectName)),
		RequiresCompatibilities: []ecstypes.Compatibility{ecstypes.CompatibilityFargate},
		NetworkMode:             ecstypes.NetworkModeAwsvpc,
		Cpu:                     aws.String("256"),
		Memory:                  aws.String("512"),
		ExecutionRoleArn:        aws.String(p.cfg.ExecutionRoleARN),
		ContainerDefinitions: []ecstypes.ContainerDefinition{
			{
				Name:      aws.String(projectName),
				Image:     aws.String(imageRef),
				Essential: aws.Bool(true),
				PortMappings: []ecstypes.PortMapping{
					{ContainerPort: aws.Int32(p.cfg.ContainerPort)},
				},
				Environment: taskEnvVars(envVars),
				LogConfiguration: &ecstypes.LogConfiguration{
					LogDriver: ecstypes.LogDriverAwslogs,
					Options: map[string]string{
						"awslogs-group":         logGroup,
						"awslogs-region":        p.cfg.AWSRegion,
						"awslogs-stream-prefix": "ecs",
					},
				},
			},
		},
	})
	if err != nil {
		return "", wrapProvisioning("register task definition", err)
	}

	arn := aws.ToString(out.TaskDefinition.TaskDefinitionArn)
	logger.Info("task definition registered",
		zap.String("project", projectName),
		zap.String("taskDefArn", arn))
	return arn, nil
}

// CreateOrUpdateService forces a rolling deployment onto an existing service
// or creates one with the standing network configuration. Rollout keeps full
// capacity: up to 200% during the update, never below 100%.
func (p *Provisioner) CreateOrUpdateService(ctx context.Context, projectName, taskDefARN, targetGroupARN string) error {
	name := utils.ServiceName(projectName)
	deploymentCfg := &ecstypes.DeploymentConfiguration{
		MaximumPercent:        aws.Int32(200),
		MinimumHealthyPercent: aws.Int32(100),
	}

	described, err := p.ecs.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(p.cfg.ClusterName),
		Services: []string{name},
	})
	if err != nil {
		return wrapProvisioning("describe service", err)
	}

	if len(described.Services) > 0 && aws.ToString(described.Services[0].Status) != "INACTIVE" {
		_, err = p.ecs.UpdateService(ctx, &ecs.UpdateServiceInput{
			Cluster:                 aws.String(p.cfg.ClusterName),
			Service:                 aws.String(name),
			TaskDefinition:          aws.String(taskDefARN),
			ForceNewDeployment:      true,
			DeploymentConfiguration: deploymentCfg,
		})
		if err != nil {
			return wrapProvisioning("update service", err)
		}
		logger.Info("service rolling update started", zap.String("service", name))
		return nil
	}

	_, err = p.ecs.CreateService(ctx, &ecs.CreateServiceInput{
		Cluster:                 aws.String(p.cfg.ClusterName),
		ServiceName:             aws.String(name),
		TaskDefinition:          aws.String(taskDefARN),
		DesiredCount:            aws.Int32(1),
		LaunchType:              ecstypes.LaunchTypeFargate,
		DeploymentConfiguration: deploymentCfg,
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        p.cfg.ServiceSubnets,
				SecurityGroups: []string{p.cfg.ServiceSecurityGroup},
				AssignPublicIp: ecstypes.AssignPublicIpEnabled,
			},
		},
		LoadBalancers: []ecstypes.LoadBalancer{
			{
				TargetGroupArn: aws.String(targetGroupARN),
				ContainerName:  aws.String(projectName),
				ContainerPort:  aws.Int32(p.cfg.ContainerPort),
			},
		},
	})
	if err != nil {
		return wrapProvisioning("create service", err)
	}
	logger.Info("service created", zap.String("service", name))
	return nil
}

// ForceDeployment points an existing service at taskDefARN. Used by rollback,
// which never rebuilds the image.
func (p *Provisioner) ForceDeployment(ctx context.Context, projectName, taskDefARN string) error {
	_, err := p.ecs.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:            aws.String(p.cfg.ClusterName),
		Service:            aws.String(utils.ServiceName(projectName)),
		TaskDefinition:     aws.String(taskDefARN),
		ForceNewDeployment: true,
	})
	if err != nil {
		return wrapProvisioning("update service", err)
	}
	return nil
}

func (p *Provisioner) DeleteService(ctx context.Context, projectName string) error {
	_, err := p.ecs.DeleteService(ctx, &ecs.DeleteServiceInput{
		Cluster: aws.String(p.cfg.ClusterName),
		Service: aws.String(utils.ServiceName(projectName)),
		Force:   aws.Bool(true),
	})
	return err
}

func (p *Provisioner) DeleteLogGroup(ctx context.Context, name string) error {
	_, err := p.logs.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: aws.String(name),
	})
	return err
}

func taskEnvVars(vars map[string]string) []ecstypes.KeyValuePair {
	out := make([]ecstypes.KeyValuePair, 0, len(vars))
	for k, v := range vars {
		if k == "" || v == "" {
			continue
		}
		out = append(out, ecstypes.KeyValuePair{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}
	return out
}

// wrapProvisioning keeps AccessDenied failures actionable: the operator
// needs to know which permission the execution role is missing.
func wrapProvisioning(op string, err error) error {
	if awsapi.IsAccessDenied(err) {
		return errs.Provisioning(op, fmt.Errorf("access denied; grant the execution role permission to %s: %w", op, err))
	}
	return errs.Provisioning(op, err)
}
