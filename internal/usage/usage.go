// Package usage provides token usage tracking and formatting.
package usage

import (
	"fmt"
	"sync"
	"time"
)

// Usage represents token usage for a single provider call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Total returns the total token count.
func (u *Usage) Total() int64 {
	return u.PromptTokens + u.CompletionTokens
}

// Add adds another usage record to this one.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
}

// Record is one tracked provider call.
type Record struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Feature   string    `json:"feature,omitempty"`
	ItemID    string    `json:"item_id,omitempty"`
	Usage     Usage     `json:"usage"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker accumulates usage across provider calls. Tracking is best-effort
// bookkeeping: it never fails and never blocks the caller on anything but
// the internal mutex.
type Tracker struct {
	mu        sync.RWMutex
	records   []Record
	totals    map[string]*Usage // keyed by "provider:model"
	byFeature map[string]*Usage
	maxAge    time.Duration
	maxCount  int
}

// TrackerConfig configures the usage tracker.
type TrackerConfig struct {
	MaxAge   time.Duration
	MaxCount int
}

// DefaultTrackerConfig returns default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxAge:   24 * time.Hour,
		MaxCount: 1000,
	}
}

// NewTracker creates a new usage tracker.
func NewTracker(config TrackerConfig) *Tracker {
	if config.MaxAge <= 0 {
		config.MaxAge = 24 * time.Hour
	}
	if config.MaxCount <= 0 {
		config.MaxCount = 1000
	}

	return &Tracker{
		records:   make([]Record, 0),
		totals:    make(map[string]*Usage),
		byFeature: make(map[string]*Usage),
		maxAge:    config.MaxAge,
		maxCount:  config.MaxCount,
	}
}

// Track adds a usage record.
func (t *Tracker) Track(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	t.records = append(t.records, r)

	key := r.Provider + ":" + r.Model
	if t.totals[key] == nil {
		t.totals[key] = &Usage{}
	}
	t.totals[key].Add(&r.Usage)

	if r.Feature != "" {
		if t.byFeature[r.Feature] == nil {
			t.byFeature[r.Feature] = &Usage{}
		}
		t.byFeature[r.Feature].Add(&r.Usage)
	}

	t.pruneOld()
}

// pruneOld removes records older than maxAge and beyond maxCount.
func (t *Tracker) pruneOld() {
	cutoff := time.Now().Add(-t.maxAge)

	startIdx := 0
	for i, r := range t.records {
		if r.Timestamp.After(cutoff) {
			startIdx = i
			break
		}
		startIdx = i + 1
	}
	if startIdx > 0 {
		t.records = t.records[startIdx:]
	}

	if len(t.records) > t.maxCount {
		t.records = t.records[len(t.records)-t.maxCount:]
	}
}

// Totals returns usage totals for a provider:model key.
func (t *Tracker) Totals(provider, model string) *Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	key := provider + ":" + model
	if usage := t.totals[key]; usage != nil {
		u := *usage
		return &u
	}
	return nil
}

// FeatureTotals returns usage totals for a feature.
func (t *Tracker) FeatureTotals(feature string) *Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if usage := t.byFeature[feature]; usage != nil {
		u := *usage
		return &u
	}
	return nil
}

// Recent returns the most recent usage records.
func (t *Tracker) Recent(limit int) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit <= 0 || limit > len(t.records) {
		limit = len(t.records)
	}

	start := len(t.records) - limit
	result := make([]Record, limit)
	copy(result, t.records[start:])
	return result
}

// Summary returns usage totals keyed by "provider:model".
func (t *Tracker) Summary() map[string]*Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]*Usage)
	for k, v := range t.totals {
		u := *v
		result[k] = &u
	}
	return result
}

// FormatTokenCount formats a token count for display.
func FormatTokenCount(count int64) string {
	if count <= 0 {
		return "0"
	}
	if count >= 1_000_000 {
		return fmt.Sprintf("%.1fm", float64(count)/1_000_000)
	}
	if count >= 10_000 {
		return fmt.Sprintf("%dk", count/1_000)
	}
	if count >= 1_000 {
		return fmt.Sprintf("%.1fk", float64(count)/1_000)
	}
	return fmt.Sprintf("%d", count)
}
