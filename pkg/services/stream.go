package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/internal/logger"
)

type StreamEventType string

const (
	StreamEventLog   StreamEventType = "log"
	StreamEventDone  StreamEventType = "done"
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one ordered chunk of a streaming launch. The stream is a
// sequence of log events terminated by exactly one done or error event.
type StreamEvent struct {
	Type   StreamEventType `json:"type"`
	Line   string          `json:"line,omitempty"`
	Result *LaunchResult   `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// LaunchStream runs the launch workflow on the worker pool and returns a
// channel of ordered events. A slow or disconnected consumer never stalls the
// workflow: events that cannot be delivered are dropped, and the workflow
// runs to completion and persists final state regardless.
func (s *DeploymentService) LaunchStream(ctx context.Context, req LaunchRequest) <-chan StreamEvent {
	events := make(chan StreamEvent, 256)

	send := func(ev StreamEvent) {
		select {
		case events <- ev:
		default:
			logger.Debug("stream consumer lagging, event dropped",
				zap.String("project", req.ProjectName))
		}
	}

	s.tasks.AddTask(func() {
		defer close(events)

		result, err := s.Launch(ctx, req, func(line string) {
			send(StreamEvent{Type: StreamEventLog, Line: line})
		})
		if err != nil {
			send(StreamEvent{Type: StreamEventError, Error: err.Error()})
			return
		}
		send(StreamEvent{Type: StreamEventDone, Result: result})
	})

	return events
}
