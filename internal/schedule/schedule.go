// Package schedule triggers pipeline batch runs on a cron expression.
// A tick that fires while a run is still active is a no-op because the
// orchestrator refuses to start a second run.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/maildeskhq/maildesk/internal/observability"
	"github.com/maildeskhq/maildesk/pkg/models"
)

// Starter is the slice of the orchestrator the scheduler needs.
type Starter interface {
	StartBatch(ctx context.Context, mode models.JobMode) (models.Job, error)
}

// Scheduler fires StartBatch on a fixed cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	logger *observability.Logger
}

// New parses the cron expression and builds a stopped scheduler. The
// expression uses the standard five-field format; timezone defaults to the
// host's local time.
func New(expr, timezone string, starter Starter, logger *observability.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}

	loc := time.Local
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}

	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(expr, func() {
		snap, err := starter.StartBatch(context.Background(), models.JobModeBatch)
		if err != nil {
			logger.Warn(context.Background(), "scheduled batch start failed", "error", err)
			return
		}
		if snap.Running {
			logger.Info(context.Background(), "scheduled batch tick",
				"total", snap.Total, "processed", snap.Processed)
			return
		}
		logger.Debug(context.Background(), "scheduled tick found nothing to process")
	})
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins firing ticks.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight trigger callback.
// The pipeline run itself is detached and keeps going.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Next returns the time of the next scheduled tick, zero when stopped.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
