// Package pipeline drives the background AI processing run. An Orchestrator
// owns the singleton job state, feeds unprocessed inbox items through the
// agent and the fact extractor one at a time, and reports progress on the
// event bus. A run always returns the job to idle, even when it crashes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/maildeskhq/maildesk/internal/events"
	"github.com/maildeskhq/maildesk/internal/extract"
	"github.com/maildeskhq/maildesk/internal/observability"
	"github.com/maildeskhq/maildesk/internal/store"
	"github.com/maildeskhq/maildesk/pkg/models"
)

// DefaultBatchLimit caps the candidate set of one batch run.
const DefaultBatchLimit = 100

// ErrItemNotFound is returned by StartSingle for an unknown item id.
var ErrItemNotFound = errors.New("pipeline: item not found")

// Runner analyzes one item and returns its final answer text. The agent
// implements it; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, item *models.Item, onStep func(models.AgentStep)) (string, error)
}

// Config assembles an Orchestrator. Store and Runner are required.
type Config struct {
	Store      store.Store
	Runner     Runner
	Bus        *events.Bus
	BatchLimit int
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	Tracer     *observability.Tracer
}

// Orchestrator is the singleton owner of the pipeline job state. All
// mutation goes through StartBatch/StartSingle and the detached run loop
// they launch; everyone else only reads snapshots.
type Orchestrator struct {
	store   store.Store
	runner  Runner
	bus     *events.Bus
	limit   int
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	mu  sync.Mutex
	job models.Job
}

// New creates an orchestrator and wires it as the bus's snapshot source so
// observers attaching mid-run get greeted with current counters.
func New(cfg Config) *Orchestrator {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultBatchLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.LogConfig{})
	}
	o := &Orchestrator{
		store:   cfg.Store,
		runner:  cfg.Runner,
		bus:     cfg.Bus,
		limit:   cfg.BatchLimit,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
	}
	if o.bus != nil {
		o.bus.SetSnapshotProvider(o.snapshot)
	}
	return o
}

// Status returns the current job snapshot. It never blocks beyond the
// state mutex and is safe to call at any time.
func (o *Orchestrator) Status() models.Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.job
}

func (o *Orchestrator) snapshot() (models.Job, bool) {
	job := o.Status()
	return job, job.Running
}

// StartBatch starts a run over the unprocessed candidate set. If a run is
// already active it returns that run's snapshot unchanged; a second run is
// never queued. The returned snapshot describes the claimed run; the loop
// itself is detached and not awaited.
func (o *Orchestrator) StartBatch(ctx context.Context, mode models.JobMode) (models.Job, error) {
	if mode == models.JobModeSingle {
		return o.Status(), fmt.Errorf("pipeline: mode %q requires StartSingle", mode)
	}
	if mode == "" {
		mode = models.JobModeBatch
	}

	snapshot, claimed := o.claim(mode)
	if !claimed {
		return snapshot, nil
	}

	if mode == models.JobModeRecalculate {
		reset, err := o.store.ResetAllAI(ctx)
		if err != nil {
			o.release()
			return o.Status(), fmt.Errorf("reset ai fields: %w", err)
		}
		o.logger.Info(ctx, "cleared ai fields for recalculation", "items", reset)
	}

	items, err := o.store.ListUnprocessed(ctx, o.limit)
	if err != nil {
		o.release()
		return o.Status(), fmt.Errorf("list unprocessed items: %w", err)
	}
	return o.launch(items, mode), nil
}

// StartSingle runs the pipeline for exactly one item, clearing its previous
// AI results first. The no-second-run contract matches StartBatch.
func (o *Orchestrator) StartSingle(ctx context.Context, itemID string) (models.Job, error) {
	snapshot, claimed := o.claim(models.JobModeSingle)
	if !claimed {
		return snapshot, nil
	}

	item, err := o.store.Get(ctx, itemID)
	if err != nil {
		o.release()
		return o.Status(), fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		o.release()
		return o.Status(), fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if err := o.store.ResetAI(ctx, itemID); err != nil {
		o.release()
		return o.Status(), fmt.Errorf("reset item: %w", err)
	}
	item.ResetAI()

	return o.launch([]*models.Item{item}, models.JobModeSingle), nil
}

// claim atomically takes run ownership. It returns the current snapshot and
// whether this caller won; a caller that did not win must not mutate state.
// The job stays claimed while the candidate set is fetched so an interleaved
// start cannot slip in between check and launch.
func (o *Orchestrator) claim(mode models.JobMode) (models.Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job.Running {
		return o.job, false
	}
	o.job = models.Job{
		Running:   true,
		Mode:      mode,
		StartedAt: time.Now(),
	}
	return o.job, true
}

// release returns a claimed job to idle without having run anything.
func (o *Orchestrator) release() {
	o.mu.Lock()
	o.job = models.Job{}
	o.mu.Unlock()
}

// launch finalizes the claim against the candidate set and detaches the run
// loop. An empty set releases the claim and reports idle.
func (o *Orchestrator) launch(items []*models.Item, mode models.JobMode) models.Job {
	if len(items) == 0 {
		o.release()
		return o.Status()
	}

	o.mu.Lock()
	o.job.Total = len(items)
	snapshot := o.job
	o.mu.Unlock()

	runID := uuid.NewString()
	o.logger.Info(context.Background(), "pipeline run starting",
		"run_id", runID, "mode", string(mode), "items", len(items))
	o.publish(models.NewStartEvent(len(items)))

	go o.runLoop(observability.WithRunID(context.Background(), runID), items, mode)

	return snapshot
}

// runLoop processes the candidate set strictly in order. It is the sole
// mutator of the job until it finishes. The outermost recover is the crash
// boundary: whatever escapes, the job goes back to idle and observers get a
// fatal-error event instead of a silent hang.
func (o *Orchestrator) runLoop(ctx context.Context, items []*models.Item, mode models.JobMode) {
	start := time.Now()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		o.logger.Error(ctx, "pipeline run crashed",
			"panic", r, "stack", string(debug.Stack()))
		o.release()
		o.publish(models.NewFatalEvent(fmt.Sprint(r)))
		if o.metrics != nil {
			o.metrics.RecordRun(string(mode), "fatal", time.Since(start).Seconds())
		}
	}()

	for _, item := range items {
		o.setCurrent(item.ID)

		failed := o.processItem(ctx, item)

		o.mu.Lock()
		o.job.Processed++
		if failed {
			o.job.Failed++
		}
		processed, total, failedCount := o.job.Processed, o.job.Total, o.job.Failed
		o.mu.Unlock()

		o.publish(models.NewProgressEvent(processed, total, failedCount, digest(item)))
	}

	o.mu.Lock()
	processed, total, failedCount := o.job.Processed, o.job.Total, o.job.Failed
	o.job = models.Job{}
	o.mu.Unlock()

	o.logger.Info(ctx, "pipeline run complete",
		"mode", string(mode), "processed", processed, "failed", failedCount,
		"duration_ms", time.Since(start).Milliseconds())
	o.publish(models.NewCompleteEvent(processed, total, failedCount))
	if o.metrics != nil {
		o.metrics.RecordRun(string(mode), "completed", time.Since(start).Seconds())
	}
}

// processItem runs one item through agent, extractor, and store. It reports
// whether the item failed and must never let anything escape: a panic here
// counts as one failed item, not a crashed run.
func (o *Orchestrator) processItem(ctx context.Context, item *models.Item) (failed bool) {
	itemStart := time.Now()
	ctx = observability.WithItemID(ctx, item.ID)

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error(ctx, "item processing panicked",
				"item_id", item.ID, "panic", r, "stack", string(debug.Stack()))
			failed = true
			if err := o.store.SetProcessing(context.Background(), item.ID, false); err != nil {
				o.logger.Warn(ctx, "failed to clear processing marker", "error", err)
			}
		}
		status := "processed"
		if failed {
			status = "failed"
		}
		if o.metrics != nil {
			o.metrics.RecordItem(status, time.Since(itemStart).Seconds())
		}
	}()

	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.TraceItemProcessing(ctx, item.ID, string(o.jobMode()))
		defer span.End()
	}

	if err := o.store.SetProcessing(ctx, item.ID, true); err != nil {
		o.logger.Warn(ctx, "failed to set processing marker", "item_id", item.ID, "error", err)
	}

	answer, runErr := o.runner.Run(ctx, item, func(step models.AgentStep) {
		o.publish(models.NewStepEvent(item.ID, step))
	})

	res := extract.Parse(answer)
	if o.metrics != nil {
		o.metrics.RecordFacts(res.Source, len(res.Facts))
	}

	item.Summary = res.Summary
	item.Tags = res.Tags
	item.Facts = res.Facts
	item.SuggestedReply = res.SuggestedReply
	item.CustomerPhone = res.Phone
	if res.SuggestedReply != "" {
		item.SuggestedSubject = replySubject(item.Subject)
	}

	if runErr != nil {
		// The agent already shaped the error into readable terminal text;
		// persist it so the dashboard shows why the item has no analysis.
		if strings.TrimSpace(item.Summary) == "" {
			item.Summary = answer
		}
		failed = true
	}
	if strings.TrimSpace(item.Summary) == "" {
		failed = true
	}

	if err := o.store.UpdateAI(ctx, item); err != nil {
		o.logger.Error(ctx, "failed to persist ai result", "item_id", item.ID, "error", err)
		return true
	}

	o.logger.Debug(ctx, "item processed",
		"item_id", item.ID, "failed", failed,
		"facts", len(item.Facts), "source", res.Source,
		"duration_ms", time.Since(itemStart).Milliseconds())
	return failed
}

func (o *Orchestrator) setCurrent(itemID string) {
	o.mu.Lock()
	o.job.CurrentItemID = itemID
	o.mu.Unlock()
}

func (o *Orchestrator) jobMode() models.JobMode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.job.Mode
}

func (o *Orchestrator) publish(e models.PipelineEvent) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

func digest(item *models.Item) *models.ItemDigest {
	d := item.Digest()
	return &d
}

// replySubject derives the suggested reply subject, keeping an existing
// reply prefix instead of stacking another one.
func replySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "re:") || strings.HasPrefix(lower, "aw:") {
		return trimmed
	}
	if trimmed == "" {
		return "AW: Ihre Anfrage"
	}
	return "AW: " + trimmed
}
