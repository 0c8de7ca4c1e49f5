package logcollect

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-host/nimbus-backend/internal/utils"
	"github.com/nimbus-host/nimbus-backend/pkg/config"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
)

type fakeRuntimeLogs struct {
	streams map[string][]string
}

func (f *fakeRuntimeLogs) DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error) {
	out := &cloudwatchlogs.DescribeLogStreamsOutput{}
	for name := range f.streams {
		out.LogStreams = append(out.LogStreams, cwtypes.LogStream{
			LogStreamName: aws.String(name),
		})
	}
	return out, nil
}

func (f *fakeRuntimeLogs) GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error) {
	out := &cloudwatchlogs.GetLogEventsOutput{
		NextForwardToken: aws.String("end"),
	}
	// First call drains everything; the repeated token stops the loop.
	if params.NextToken == nil {
		for _, msg := range f.streams[aws.ToString(params.LogStreamName)] {
			out.Events = append(out.Events, cwtypes.OutputLogEvent{
				Message: aws.String(msg),
			})
		}
	}
	return out, nil
}

type fakeArchive struct {
	bucket string
	key    string
	body   string
	err    error
}

func (f *fakeArchive) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(params.Bucket)
	f.key = aws.ToString(params.Key)
	body, _ := io.ReadAll(params.Body)
	f.body = string(body)
	return &s3.PutObjectOutput{}, nil
}

type fakeLogStore struct {
	buildLogs   []*entities.BuildLogEntity
	runtimeLogs []*entities.RuntimeLogEntity
	insertErr   error
}

func (f *fakeLogStore) InsertBuildLog(log *entities.BuildLogEntity) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.buildLogs = append(f.buildLogs, log)
	return nil
}

func (f *fakeLogStore) InsertRuntimeLog(log *entities.RuntimeLogEntity) error {
	f.runtimeLogs = append(f.runtimeLogs, log)
	return nil
}

func testCollector(t *testing.T, logs *fakeRuntimeLogs, archive *fakeArchive, store *fakeLogStore) *Collector {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	c := NewCollector(logs, archive, store, &config.Config{
		BaseDomain: "apps.example.com",
		LogBucket:  "nimbus-logs",
	})
	c.probeTimeout = 50 * time.Millisecond
	return c
}

func TestPersistBuildLogsStoresRowAndArchive(t *testing.T) {
	archive := &fakeArchive{}
	store := &fakeLogStore{}
	c := testCollector(t, &fakeRuntimeLogs{}, archive, store)

	deploymentID := uuid.New()
	logID, err := c.PersistBuildLogs(context.Background(), deploymentID, []string{"installing", "pushing"})
	require.NoError(t, err)
	assert.NotEmpty(t, logID)

	require.Len(t, store.buildLogs, 1)
	assert.Equal(t, logID, store.buildLogs[0].LogID)
	assert.Equal(t, deploymentID, store.buildLogs[0].DeploymentID)
	assert.Equal(t, "installing\npushing", store.buildLogs[0].Content)

	assert.Equal(t, "nimbus-logs", archive.bucket)
	assert.Equal(t, "build-logs/"+deploymentID.String()+".txt", archive.key)
	assert.Equal(t, "installing\npushing", archive.body)

	onDisk, err := os.ReadFile(utils.BuildLogPath(deploymentID))
	require.NoError(t, err)
	assert.Equal(t, "installing\npushing", string(onDisk))
}

func TestPersistBuildLogsSurvivesArchiveFailure(t *testing.T) {
	archive := &fakeArchive{err: errors.New("bucket gone")}
	store := &fakeLogStore{}
	c := testCollector(t, &fakeRuntimeLogs{}, archive, store)

	_, err := c.PersistBuildLogs(context.Background(), uuid.New(), []string{"line"})
	require.NoError(t, err, "archive upload is best-effort")
	assert.Len(t, store.buildLogs, 1)
}

func TestPersistBuildLogsFailsWhenStoreFails(t *testing.T) {
	store := &fakeLogStore{insertErr: errors.New("db down")}
	c := testCollector(t, &fakeRuntimeLogs{}, &fakeArchive{}, store)

	_, err := c.PersistBuildLogs(context.Background(), uuid.New(), []string{"line"})
	assert.Error(t, err)
}

func TestCollectRuntimeLogsStoresOneRowPerStream(t *testing.T) {
	logs := &fakeRuntimeLogs{streams: map[string][]string{
		"runtime/demo/aaa": {"listening on :3000", "ready"},
		"runtime/demo/bbb": {"worker started"},
	}}
	store := &fakeLogStore{}
	c := testCollector(t, logs, &fakeArchive{}, store)

	deploymentID := uuid.New()
	require.NoError(t, c.CollectRuntimeLogs(context.Background(), "demo", deploymentID))

	require.Len(t, store.runtimeLogs, 2)
	byStream := map[string]*entities.RuntimeLogEntity{}
	for _, row := range store.runtimeLogs {
		byStream[row.Stream] = row
		assert.Equal(t, deploymentID, row.DeploymentID)
		assert.Equal(t, "demo.apps.example.com", row.Hostname)
		assert.NotEmpty(t, row.ProbeStatus)
	}
	assert.Equal(t, "listening on :3000\nready\n", byStream["runtime/demo/aaa"].Content)
	assert.Equal(t, "worker started\n", byStream["runtime/demo/bbb"].Content)
}
