package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sotaru/tasuke/pkg/models"
)

type slowWorker struct {
	delay time.Duration
}

func (w slowWorker) Execute(ctx context.Context, _ Input) (string, error) {
	select {
	case <-time.After(w.delay):
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type failingWorker struct{}

func (failingWorker) Execute(context.Context, Input) (string, error) {
	return "", errors.New("boom")
}

func TestDispatchSuccess(t *testing.T) {
	result, err := Dispatch(context.Background(), echoWorker{}, Input{TaskID: "t1", Description: "ok"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want ok", result)
	}
}

func TestDispatchTimeout(t *testing.T) {
	_, err := Dispatch(context.Background(), slowWorker{delay: time.Second}, Input{TaskID: "t1"}, 10*time.Millisecond)
	if !errors.Is(err, models.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestDispatchWorkerFailure(t *testing.T) {
	_, err := Dispatch(context.Background(), failingWorker{}, Input{TaskID: "t1"}, time.Second)
	if !errors.Is(err, models.ErrWorker) {
		t.Errorf("expected ErrWorker, got %v", err)
	}
}

func TestDispatchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Dispatch(ctx, slowWorker{delay: time.Second}, Input{TaskID: "t1"}, 0)
	if err == nil || errors.Is(err, models.ErrTimeout) {
		t.Errorf("expected cancellation error, got %v", err)
	}
}
