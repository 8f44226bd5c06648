// Package worker defines the execution surface for plan tasks: a Worker
// interface, a Registry keyed by agent type, and the built-in web, coder,
// casual, and file workers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sotaru/tasuke/pkg/models"
)

// Input carries everything a worker needs to execute one task. Context maps
// dependency task IDs to their results so a worker can build on upstream
// output.
type Input struct {
	TaskID      string
	Description string
	Context     map[string]string
}

// Worker executes a single task and returns its result text. Implementations
// must honor ctx cancellation.
type Worker interface {
	Execute(ctx context.Context, input Input) (string, error)
}

// Dispatch runs a worker under a timeout. A deadline overrun surfaces as
// models.ErrTimeout; any other worker failure is wrapped in models.ErrWorker.
// The worker goroutine is abandoned on timeout; workers are expected to
// observe ctx and return promptly.
func Dispatch(ctx context.Context, w Worker, input Input, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := w.Execute(ctx, input)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return "", fmt.Errorf("task %s: %w", input.TaskID, models.ErrTimeout)
			}
			return "", fmt.Errorf("task %s: %w: %v", input.TaskID, models.ErrWorker, out.err)
		}
		return out.result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("task %s: %w", input.TaskID, models.ErrTimeout)
		}
		return "", ctx.Err()
	}
}
