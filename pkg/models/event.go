package models

import "time"

// PipelineEventType identifies the kind of pipeline event.
type PipelineEventType string

const (
	// Run lifecycle
	EventStart    PipelineEventType = "start"
	EventProgress PipelineEventType = "progress"
	EventComplete PipelineEventType = "complete"
	EventFatal    PipelineEventType = "fatal-error"

	// Per-item agent activity
	EventStep PipelineEventType = "step"

	// Sent once to observers that subscribe while a run is active.
	EventReconnect PipelineEventType = "reconnect"
)

// StepKind identifies the kind of agent step.
type StepKind string

const (
	StepToolCall   StepKind = "tool_call"
	StepToolResult StepKind = "tool_result"
	StepThinking   StepKind = "thinking"
	StepComplete   StepKind = "complete"
	StepError      StepKind = "error"
)

// StepStatus is the progress state of a step.
type StepStatus string

const (
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "error"
)

// AgentStep is one observable unit of agent activity. Steps are ephemeral:
// they stream to observers and are never persisted.
type AgentStep struct {
	Kind   StepKind       `json:"kind"`
	Tool   string         `json:"tool,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Result any            `json:"result,omitempty"`
	Status StepStatus     `json:"status"`
}

// RunProgress carries the counters of the active or finished run.
type RunProgress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// PipelineEvent is the single event model fanned out to live observers.
// Type discriminates; exactly the payload fields for that type are set.
type PipelineEvent struct {
	Type PipelineEventType `json:"type"`
	Time time.Time         `json:"time"`

	Run      *RunProgress `json:"run,omitempty"`      // start, progress, complete
	Item     *ItemDigest  `json:"item,omitempty"`     // progress
	ItemID   string       `json:"item_id,omitempty"`  // step
	Step     *AgentStep   `json:"step,omitempty"`     // step
	Error    string       `json:"error,omitempty"`    // fatal-error
	Snapshot *Job         `json:"snapshot,omitempty"` // reconnect
}

// NewStartEvent announces a freshly claimed run.
func NewStartEvent(total int) PipelineEvent {
	return PipelineEvent{
		Type: EventStart,
		Time: time.Now(),
		Run:  &RunProgress{Total: total},
	}
}

// NewProgressEvent reports one completed item with the counters after it.
func NewProgressEvent(processed, total, failed int, item *ItemDigest) PipelineEvent {
	return PipelineEvent{
		Type: EventProgress,
		Time: time.Now(),
		Run:  &RunProgress{Total: total, Processed: processed, Failed: failed},
		Item: item,
	}
}

// NewStepEvent forwards one agent step for the item being processed.
func NewStepEvent(itemID string, step AgentStep) PipelineEvent {
	return PipelineEvent{
		Type:   EventStep,
		Time:   time.Now(),
		ItemID: itemID,
		Step:   &step,
	}
}

// NewCompleteEvent announces a run that finished its candidate set.
func NewCompleteEvent(processed, total, failed int) PipelineEvent {
	return PipelineEvent{
		Type: EventComplete,
		Time: time.Now(),
		Run:  &RunProgress{Total: total, Processed: processed, Failed: failed},
	}
}

// NewFatalEvent announces a run that died outside per-item handling.
func NewFatalEvent(msg string) PipelineEvent {
	return PipelineEvent{
		Type:  EventFatal,
		Time:  time.Now(),
		Error: msg,
	}
}

// NewReconnectEvent hands a late observer the current run snapshot.
func NewReconnectEvent(snapshot Job) PipelineEvent {
	return PipelineEvent{
		Type:     EventReconnect,
		Time:     time.Now(),
		Snapshot: &snapshot,
	}
}
