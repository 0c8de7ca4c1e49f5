// Package logcollect persists what a deployment left behind: the build
// output captured while polling, and the runtime output plus a reachability
// probe taken after the service is live.
package logcollect

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/internal/logger"
	"github.com/nimbus-host/nimbus-backend/internal/utils"
	"github.com/nimbus-host/nimbus-backend/pkg/config"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
)

type RuntimeLogsAPI interface {
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

type ArchiveAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type LogStore interface {
	InsertBuildLog(log *entities.BuildLogEntity) error
	InsertRuntimeLog(log *entities.RuntimeLogEntity) error
}

type Collector struct {
	logs    RuntimeLogsAPI
	archive ArchiveAPI
	store   LogStore
	cfg     *config.Config

	probeTimeout time.Duration
}

func NewCollector(logs RuntimeLogsAPI, archive ArchiveAPI, store LogStore, cfg *config.Config) *Collector {
	return &Collector{
		logs:         logs,
		archive:      archive,
		store:        store,
		cfg:          cfg,
		probeTimeout: 5 * time.Second,
	}
}

// PersistBuildLogs stores the captured build output: on local disk and in the
// archive bucket on a best-effort basis, and in the database as the record of
// truth. Only the database write can fail the call. Returns the log id of the
// stored row.
func (c *Collector) PersistBuildLogs(ctx context.Context, deploymentID uuid.UUID, lines []string) (string, error) {
	content := strings.Join(lines, "\n")

	if err := os.MkdirAll(utils.BuildLogDir(deploymentID), 0o755); err == nil {
		if err := os.WriteFile(utils.BuildLogPath(deploymentID), []byte(content), 0o644); err != nil {
			logger.Warn("build log disk write failed",
				zap.String("deploymentId", deploymentID.String()),
				zap.Error(err))
		}
	}

	if c.cfg.LogBucket != "" {
		key := fmt.Sprintf("build-logs/%s.txt", deploymentID)
		_, err := c.archive.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(c.cfg.LogBucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader([]byte(content)),
		})
		if err != nil {
			logger.Warn("build log archive upload failed",
				zap.String("deploymentId", deploymentID.String()),
				zap.Error(err))
		}
	}

	logID := uuid.NewString()
	err := c.store.InsertBuildLog(&entities.BuildLogEntity{
		LogID:        logID,
		DeploymentID: deploymentID,
		Content:      content,
	})
	if err != nil {
		return "", err
	}
	return logID, nil
}

// CollectRuntimeLogs drains every stream in the project's runtime log group
// and stores one row per stream, stamped with the result of an external
// reachability probe against the project hostname.
func (c *Collector) CollectRuntimeLogs(ctx context.Context, projectName string, deploymentID uuid.UUID) error {
	hostname := utils.ProjectHost(projectName, c.cfg.BaseDomain)
	probeStatus := c.probe(ctx, hostname)

	streams, err := c.logs.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: aws.String(utils.RuntimeLogGroup(projectName)),
		OrderBy:      types.OrderByLastEventTime,
		Descending:   aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("describe runtime log streams: %w", err)
	}

	for _, stream := range streams.LogStreams {
		name := aws.ToString(stream.LogStreamName)
		content, err := c.drainStream(ctx, utils.RuntimeLogGroup(projectName), name)
		if err != nil {
			return fmt.Errorf("drain runtime stream %s: %w", name, err)
		}
		err = c.store.InsertRuntimeLog(&entities.RuntimeLogEntity{
			LogID:        uuid.NewString(),
			DeploymentID: deploymentID,
			Stream:       name,
			Content:      content,
			ProbeStatus:  probeStatus,
			Hostname:     hostname,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) drainStream(ctx context.Context, group, stream string) (string, error) {
	var sb strings.Builder
	var cursor *string
	for {
		out, err := c.logs.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
			LogGroupName:  aws.String(group),
			LogStreamName: aws.String(stream),
			StartFromHead: aws.Bool(true),
			NextToken:     cursor,
		})
		if err != nil {
			return "", err
		}
		for _, event := range out.Events {
			sb.WriteString(aws.ToString(event.Message))
			sb.WriteString("\n")
		}
		if out.NextForwardToken == nil ||
			aws.ToString(out.NextForwardToken) == aws.ToString(cursor) {
			return sb.String(), nil
		}
		cursor = out.NextForwardToken
		if len(out.Events) == 0 {
			return sb.String(), nil
		}
	}
}

// probe hits the public hostname once with a short timeout. Any HTTP answer
// counts as a status; transport failure is recorded as unreachable.
func (c *Collector) probe(ctx context.Context, hostname string) string {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+hostname, nil)
	if err != nil {
		return "unreachable"
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "unreachable"
	}
	defer resp.Body.Close()
	return fmt.Sprintf("%d", resp.StatusCode)
}
