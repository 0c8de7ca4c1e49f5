// Package builder turns a repository+branch into a pushed container image:
// it keeps the image repository and build project in shape (ensure-or-create,
// keyed by project name) and drives build executions while streaming their
// log output.
package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/internal/logger"
	"github.com/nimbus-host/nimbus-backend/internal/poll"
	"github.com/nimbus-host/nimbus-backend/internal/utils"
	"github.com/nimbus-host/nimbus-backend/pkg/config"
	"github.com/nimbus-host/nimbus-backend/pkg/infrastructure/awsapi"
)

type CodeBuildAPI interface {
	CreateProject(ctx context.Context, params *codebuild.CreateProjectInput, optFns ...func(*codebuild.Options)) (*codebuild.CreateProjectOutput, error)
	UpdateProject(ctx context.Context, params *codebuild.UpdateProjectInput, optFns ...func(*codebuild.Options)) (*codebuild.UpdateProjectOutput, error)
	StartBuild(ctx context.Context, params *codebuild.StartBuildInput, optFns ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error)
	BatchGetBuilds(ctx context.Context, params *codebuild.BatchGetBuildsInput, optFns ...func(*codebuild.Options)) (*codebuild.BatchGetBuildsOutput, error)
	DeleteProject(ctx context.Context, params *codebuild.DeleteProjectInput, optFns ...func(*codebuild.Options)) (*codebuild.DeleteProjectOutput, error)
}

type ECRAPI interface {
	DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	CreateRepository(ctx context.Context, params *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
	DeleteRepository(ctx context.Context, params *ecr.DeleteRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.DeleteRepositoryOutput, error)
}

type LogsAPI interface {
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

// BuildConfig parameterizes one build execution.
type BuildConfig struct {
	ProjectName    string
	Repo           string // owner/name
	Branch         string
	CommitSHA      string
	RootDir        string
	InstallCommand string
	BuildCommand   string
	EnvVars        map[string]string
	GithubToken    string
	ImageRepo      string
	ImageTag       string
}

type Coordinator struct {
	codebuild CodeBuildAPI
	ecr       ECRAPI
	logs      LogsAPI
	cfg       *config.Config

	pollInterval     time.Duration
	buildTimeout     time.Duration
	logStreamRetries uint64
}

func NewCoordinator(cb CodeBuildAPI, ecrClient ECRAPI, logs LogsAPI, cfg *config.Config) *Coordinator {
	return &Coordinator{
		codebuild:        cb,
		ecr:              ecrClient,
		logs:             logs,
		cfg:              cfg,
		pollInterval:     5 * time.Second,
		buildTimeout:     15 * time.Minute,
		logStreamRetries: 24,
	}
}

// EnsureImageRepository creates the image repository if it does not exist.
// Already-exists is success.
func (c *Coordinator) EnsureImageRepository(ctx context.Context, name string) error {
	_, err := c.ecr.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{name},
	})
	if err == nil {
		return nil
	}
	if !awsapi.IsNotFound(err) {
		return fmt.Errorf("describe image repository %s: %w", name, err)
	}

	_, err = c.ecr.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName: aws.String(name),
	})
	if err != nil && !awsapi.IsAlreadyExists(err) {
		return fmt.Errorf("create image repository %s: %w", name, err)
	}
	logger.Info("image repository ensured", zap.String("repository", name))
	return nil
}

// DeleteImageRepository force-deletes the repository including its images.
func (c *Coordinator) DeleteImageRepository(ctx context.Context, name string) error {
	_, err := c.ecr.DeleteRepository(ctx, &ecr.DeleteRepositoryInput{
		RepositoryName: aws.String(name),
		Force:          true,
	})
	return err
}

// EnsureProject creates the build project, or updates it in place when it
// already exists. Re-running with the same project name never creates a
// duplicate definition.
func (c *Coordinator) EnsureProject(ctx context.Context, cfg BuildConfig) error {
	spec := NewBuildSpec(cfg, c.cfg.RegistryURI, c.cfg.AWSRegion)
	rendered, err := spec.Render()
	if err != nil {
		return fmt.Errorf("render buildspec: %w", err)
	}

	name := utils.BuildProjectName(cfg.ProjectName)
	source := &cbtypes.ProjectSource{
		Type:      cbtypes.SourceTypeGithub,
		Location:  aws.String(fmt.Sprintf("https://%s@github.com/%s.git", cfg.GithubToken, cfg.Repo)),
		Buildspec: aws.String(rendered),
	}
	artifacts := &cbtypes.ProjectArtifacts{Type: cbtypes.ArtifactsTypeNoArtifacts}
	environment := &cbtypes.ProjectEnvironment{
		ComputeType:          cbtypes.ComputeTypeBuildGeneral1Small,
		Image:                aws.String("aws/codebuild/standard:7.0"),
		Type:                 cbtypes.EnvironmentTypeLinuxContainer,
		PrivilegedMode:       aws.Bool(true),
		EnvironmentVariables: buildEnvVars(cfg.EnvVars),
	}
	logsConfig := &cbtypes.LogsConfig{
		CloudWatchLogs: &cbtypes.CloudWatchLogsConfig{
			Status:    cbtypes.LogsConfigStatusTypeEnabled,
			GroupName: aws.String(utils.BuildLogGroup(cfg.ProjectName)),
		},
	}

	_, err = c.codebuild.CreateProject(ctx, &codebuild.CreateProjectInput{
		Name:        aws.String(name),
		Source:      source,
		Artifacts:   artifacts,
		Environment: environment,
		ServiceRole: aws.String(c.cfg.BuildRoleARN),
		LogsConfig:  logsConfig,
	})
	if err == nil {
		logger.Info("build project created", zap.String("project", name))
		return nil
	}
	if !awsapi.IsAlreadyExists(err) {
		return fmt.Errorf("create build project %s: %w", name, err)
	}

	_, err = c.codebuild.UpdateProject(ctx, &codebuild.UpdateProjectInput{
		Name:        aws.String(name),
		Source:      source,
		Artifacts:   artifacts,
		Environment: environment,
		ServiceRole: aws.String(c.cfg.BuildRoleARN),
		LogsConfig:  logsConfig,
	})
	if err != nil {
		return fmt.Errorf("update build project %s: %w", name, err)
	}
	logger.Info("build project updated", zap.String("project", name))
	return nil
}

// DeleteBuildProject removes the build definition during teardown.
func (c *Coordinator) DeleteBuildProject(ctx context.Context, projectName string) error {
	_, err := c.codebuild.DeleteProject(ctx, &codebuild.DeleteProjectInput{
		Name: aws.String(utils.BuildProjectName(projectName)),
	})
	return err
}

// Run starts a build and polls it to completion, forwarding every new log
// line to onLine in order. Returns the pushed image reference.
func (c *Coordinator) Run(ctx context.Context, cfg BuildConfig, onLine func(string)) (string, error) {
	started, err := c.codebuild.StartBuild(ctx, &codebuild.StartBuildInput{
		ProjectName:   aws.String(utils.BuildProjectName(cfg.ProjectName)),
		SourceVersion: aws.String(cfg.CommitSHA),
	})
	if err != nil {
		return "", fmt.Errorf("start build for %s: %w", cfg.ProjectName, err)
	}
	buildID := aws.ToString(started.Build.Id)
	logger.Info("build started",
		zap.String("project", cfg.ProjectName),
		zap.String("buildId", buildID))

	var (
		cursor       *string
		lastLine     string
		streamMisses uint64
	)

	err = poll.UntilDeadline(ctx, c.pollInterval, c.buildTimeout, func(ctx context.Context) error {
		out, err := c.codebuild.BatchGetBuilds(ctx, &codebuild.BatchGetBuildsInput{
			Ids: []string{buildID},
		})
		if err != nil {
			return fmt.Errorf("fetch build %s: %w", buildID, err)
		}
		if len(out.Builds) == 0 {
			return poll.Retryable(errs.Transient("build lookup", fmt.Errorf("build %s not visible yet", buildID)))
		}
		build := out.Builds[0]

		if build.Logs != nil && build.Logs.GroupName != nil && build.Logs.StreamName != nil {
			err := c.drainLogs(ctx, aws.ToString(build.Logs.GroupName), aws.ToString(build.Logs.StreamName), &cursor, &lastLine, onLine)
			if err != nil {
				if awsapi.HasErrorCode(err, "ResourceNotFoundException") {
					streamMisses++
					if streamMisses > c.logStreamRetries {
						return errs.Transient("build log stream", err)
					}
					return poll.Retryable(errs.Transient("build log stream", err))
				}
				return fmt.Errorf("fetch build logs: %w", err)
			}
		}

		switch build.BuildStatus {
		case cbtypes.StatusTypeInProgress:
			return poll.Retryable(&errs.BuildTimeoutError{Elapsed: c.buildTimeout})
		case cbtypes.StatusTypeSucceeded:
			return nil
		default:
			return &errs.BuildFailedError{
				Status:      string(build.BuildStatus),
				LastLogLine: lastLine,
			}
		}
	})
	if err != nil {
		return "", err
	}

	imageRef := fmt.Sprintf("%s/%s:%s", c.cfg.RegistryURI, cfg.ImageRepo, cfg.ImageTag)
	logger.Info("build succeeded",
		zap.String("project", cfg.ProjectName),
		zap.String("image", imageRef))
	return imageRef, nil
}

// drainLogs fetches every log event past the cursor and forwards it. The
// forward token repeating means the stream is drained for now.
func (c *Coordinator) drainLogs(ctx context.Context, group, stream string, cursor **string, lastLine *string, onLine func(string)) error {
	for {
		out, err := c.logs.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
			LogGroupName:  aws.String(group),
			LogStreamName: aws.String(stream),
			StartFromHead: aws.Bool(true),
			NextToken:     *cursor,
		})
		if err != nil {
			return err
		}
		for _, event := range out.Events {
			line := aws.ToString(event.Message)
			if onLine != nil {
				onLine(line)
			}
			*lastLine = line
		}
		if out.NextForwardToken == nil ||
			aws.ToString(out.NextForwardToken) == aws.ToString(*cursor) {
			return nil
		}
		*cursor = out.NextForwardToken
		if len(out.Events) == 0 {
			return nil
		}
	}
}

// buildEnvVars filters to well-formed pairs only.
func buildEnvVars(vars map[string]string) []cbtypes.EnvironmentVariable {
	out := make([]cbtypes.EnvironmentVariable, 0, len(vars))
	for k, v := range vars {
		if k == "" {
			continue
		}
		out = append(out, cbtypes.EnvironmentVariable{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}
	return out
}
