package schedule

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/maildeskhq/maildesk/internal/observability"
	"github.com/maildeskhq/maildesk/pkg/models"
)

type fakeStarter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeStarter) StartBatch(_ context.Context, mode models.JobMode) (models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return models.Job{}, f.err
	}
	return models.Job{Running: true, Mode: mode, Total: 1}, nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Output: io.Discard})
}

func TestNewRejectsBadExpression(t *testing.T) {
	if _, err := New("not a cron line", "", &fakeStarter{}, testLogger()); err == nil {
		t.Fatal("expected error for invalid expression")
	}
}

func TestNewRejectsBadTimezone(t *testing.T) {
	if _, err := New("* * * * *", "Mars/Olympus", &fakeStarter{}, testLogger()); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestNextIsScheduled(t *testing.T) {
	s, err := New("*/5 * * * *", "UTC", &fakeStarter{}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start()
	defer s.Stop()

	next := s.Next()
	if next.IsZero() {
		t.Fatal("next tick is zero")
	}
	if until := time.Until(next); until <= 0 || until > 5*time.Minute {
		t.Errorf("next tick in %v, want within 5m", until)
	}
}

func TestStartFailureIsSwallowed(t *testing.T) {
	// The trigger must only log a failed start, never propagate it.
	starter := &fakeStarter{err: errors.New("store offline")}
	s, err := New("* * * * *", "UTC", starter, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Start()
	s.Stop()
}
