// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// eventBuffer is the capacity of a Job's event channel.
const eventBuffer = 64

// Job runs ingestions in the background, one goroutine per request. A new
// request waits for the previous one before it starts. The latest successful
// result is kept as the active index.
type Job struct {
	pipeline *Pipeline
	events   chan Event
	logger   *zap.Logger

	mu      sync.Mutex
	done    chan struct{}
	cancel  context.CancelFunc
	current *Result
	running bool
}

// NewJob returns a Job driving pipeline.
func NewJob(pipeline *Pipeline, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	closed := make(chan struct{})
	close(closed)
	return &Job{
		pipeline: pipeline,
		events:   make(chan Event, eventBuffer),
		logger:   logger,
		done:     closed,
	}
}

// Events delivers the progress of every run. Intermediate embedding events
// are dropped when the channel is full; terminal events are not.
func (j *Job) Events() <-chan Event {
	return j.events
}

// Start queues req behind any running ingestion and returns immediately.
func (j *Job) Start(ctx context.Context, req Request) {
	j.mu.Lock()
	prev := j.done
	done := make(chan struct{})
	runCtx, cancel := context.WithCancel(ctx)
	j.done = done
	j.cancel = cancel
	j.running = true
	j.mu.Unlock()

	userProgress := req.Progress
	req.Progress = func(e Event) {
		if userProgress != nil {
			userProgress(e)
		}
		j.publish(runCtx, e)
	}

	go func() {
		defer close(done)
		defer cancel()
		<-prev

		res, err := j.pipeline.Run(runCtx, req)

		j.mu.Lock()
		if err == nil {
			j.current = res
		}
		if j.done == done {
			j.running = false
		}
		j.mu.Unlock()
	}()
}

func (j *Job) publish(ctx context.Context, e Event) {
	if !e.Stage.Terminal() {
		select {
		case j.events <- e:
		default:
			j.logger.Debug("dropping ingest progress event", zap.String("stage", string(e.Stage)))
		}
		return
	}
	select {
	case j.events <- e:
	case <-ctx.Done():
		// The run was canceled; deliver without blocking when possible.
		select {
		case j.events <- e:
		default:
		}
	}
}

// Wait blocks until the most recently started ingestion has finished.
func (j *Job) Wait() {
	j.mu.Lock()
	done := j.done
	j.mu.Unlock()
	<-done
}

// Cancel stops the most recently started ingestion.
func (j *Job) Cancel() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Running reports whether an ingestion is queued or in progress.
func (j *Job) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// Current returns the active index, or nil before the first success.
func (j *Job) Current() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current
}
