// Package awsapi constructs the provider-client handles the engine is built
// on. Clients are created once at startup and injected; nothing else in the
// codebase touches AWS configuration.
package awsapi

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nimbus-host/nimbus-backend/pkg/config"
)

type ClientSet struct {
	CodeBuild *codebuild.Client
	ECR       *ecr.Client
	ECS       *ecs.Client
	ELB       *elbv2.Client
	ACM       *acm.Client
	Route53   *route53.Client
	Logs      *cloudwatchlogs.Client
	S3        *s3.Client
}

func NewClientSet(ctx context.Context, cfg *config.Config) (*ClientSet, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &ClientSet{
		CodeBuild: codebuild.NewFromConfig(awsCfg),
		ECR:       ecr.NewFromConfig(awsCfg),
		ECS:       ecs.NewFromConfig(awsCfg),
		ELB:       elbv2.NewFromConfig(awsCfg),
		ACM:       acm.NewFromConfig(awsCfg),
		Route53:   route53.NewFromConfig(awsCfg),
		Logs:      cloudwatchlogs.NewFromConfig(awsCfg),
		S3:        s3.NewFromConfig(awsCfg),
	}, nil
}
