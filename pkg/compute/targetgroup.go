package compute

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/internal/logger"
	"github.com/nimbus-host/nimbus-backend/internal/utils"
	"github.com/nimbus-host/nimbus-backend/pkg/infrastructure/awsapi"
)

// EnsureTargetGroup looks up the project's target group or creates it with
// the standing health check. The owning VPC comes from the shared load
// balancer, never from configuration.
func (p *Provisioner) EnsureTargetGroup(ctx context.Context, projectName string) (string, error) {
	name := utils.TargetGroupName(projectName)

	described, err := p.elb.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{
		Names: []string{name},
	})
	if err == nil && len(described.TargetGroups) > 0 {
		return aws.ToString(described.TargetGroups[0].TargetGroupArn), nil
	}
	if err != nil && !awsapi.IsNotFound(err) {
		return "", wrapProvisioning("describe target group", err)
	}

	lbs, err := p.elb.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{
		LoadBalancerArns: []string{p.cfg.LoadBalancerARN},
	})
	if err != nil {
		return "", wrapProvisioning("describe load balancer", err)
	}
	if len(lbs.LoadBalancers) == 0 {
		return "", wrapProvisioning("describe load balancer", fmt.Errorf("load balancer %s not found", p.cfg.LoadBalancerARN))
	}

	created, err := p.elb.CreateTargetGroup(ctx, &elbv2.CreateTargetGroupInput{
		Name:                    aws.String(name),
		VpcId:                   lbs.LoadBalancers[0].VpcId,
		Port:                    aws.Int32(p.cfg.ContainerPort),
		Protocol:                elbtypes.ProtocolEnumHttp,
		TargetType:              elbtypes.TargetTypeEnumIp,
		HealthCheckPath:         aws.String("/"),
		HealthCheckProtocol:     elbtypes.ProtocolEnumHttp,
		HealthyThresholdCount:   aws.Int32(2),
		UnhealthyThresholdCount: aws.Int32(5),
	})
	if err != nil {
		if awsapi.IsAlreadyExists(err) {
			again, derr := p.elb.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{
				Names: []string{name},
			})
			if derr == nil && len(again.TargetGroups) > 0 {
				return aws.ToString(again.TargetGroups[0].TargetGroupArn), nil
			}
		}
		return "", wrapProvisioning("create target group", err)
	}

	arn := aws.ToString(created.TargetGroups[0].TargetGroupArn)
	logger.Info("target group created",
		zap.String("project", projectName),
		zap.String("targetGroupArn", arn))
	return arn, nil
}

func (p *Provisioner) DeleteTargetGroup(ctx context.Context, projectName string) error {
	name := utils.TargetGroupName(projectName)
	described, err := p.elb.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{
		Names: []string{name},
	})
	if err != nil {
		return err
	}
	for _, tg := range described.TargetGroups {
		if _, err := p.elb.DeleteTargetGroup(ctx, &elbv2.DeleteTargetGroupInput{
			TargetGroupArn: tg.TargetGroupArn,
		}); err != nil {
			return err
		}
	}
	return nil
}
