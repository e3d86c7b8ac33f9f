// Package state persists workflow progress between runs. It is the single
// owner of the WorkflowState record: the step runner mutates state only
// through the methods here and persists it through a Store.
package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SchemaVersion is written to every saved state. Loaders accept states with
// the same or an older version; unknown fields from newer minor additions
// are ignored by both backends.
const SchemaVersion = 1

// ErrorEntry is one append-only error record.
type ErrorEntry struct {
	Step      int       `yaml:"step" json:"step"`
	Message   string    `yaml:"message" json:"message"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
}

// WorkflowState is the persisted record for one run.
//
// Invariant: a step appears in CompletedSteps exactly when StepOutputs holds
// its output, and a completed step has no PartialProgress entry. Mutate only
// through the methods below to keep that invariant.
type WorkflowState struct {
	SchemaVersion   int          `yaml:"schema_version" json:"schema_version"`
	RunID           string       `yaml:"run_id,omitempty" json:"run_id,omitempty"`
	RunStartedAt    *time.Time   `yaml:"run_started_at,omitempty" json:"run_started_at,omitempty"`
	LastUpdatedAt   *time.Time   `yaml:"last_updated_at,omitempty" json:"last_updated_at,omitempty"`
	CompletedSteps  []int        `yaml:"completed_steps" json:"completed_steps"`
	StepOutputs     map[int]any  `yaml:"step_outputs" json:"step_outputs"`
	PartialProgress map[int]any  `yaml:"partial_progress,omitempty" json:"partial_progress,omitempty"`
	ErrorLog        []ErrorEntry `yaml:"error_log,omitempty" json:"error_log,omitempty"`
}

// Store is the durability contract for WorkflowState. Save is atomic: it
// either fully succeeds or leaves the previously durable state untouched.
type Store interface {
	// Load returns the last durable state, or a fresh empty state if none exists.
	Load() (*WorkflowState, error)
	// Save durably replaces the stored state.
	Save(st *WorkflowState) error
	// Reset discards progress from fromStep onward and persists the result.
	// fromStep <= 0 clears everything.
	Reset(fromStep int) (*WorkflowState, error)
	Close() error
}

// New returns an empty state for a fresh run.
func New() *WorkflowState {
	return &WorkflowState{
		SchemaVersion:   SchemaVersion,
		StepOutputs:     make(map[int]any),
		PartialProgress: make(map[int]any),
	}
}

// normalize fills nil maps after deserialization and sorts CompletedSteps.
func (s *WorkflowState) normalize() {
	if s.SchemaVersion == 0 {
		s.SchemaVersion = SchemaVersion
	}
	if s.StepOutputs == nil {
		s.StepOutputs = make(map[int]any)
	}
	if s.PartialProgress == nil {
		s.PartialProgress = make(map[int]any)
	}
	sort.Ints(s.CompletedSteps)
}

// MarkStarted stamps the run start time on first use.
func (s *WorkflowState) MarkStarted(runID string) {
	if s.RunStartedAt == nil {
		now := time.Now()
		s.RunStartedAt = &now
	}
	if runID != "" {
		s.RunID = runID
	}
}

// IsStepCompleted reports whether a step finished in a previous attempt.
func (s *WorkflowState) IsStepCompleted(step int) bool {
	for _, c := range s.CompletedSteps {
		if c == step {
			return true
		}
	}
	return false
}

// MarkStepCompleted records the step's output, adds it to the completed set,
// and clears its partial progress.
func (s *WorkflowState) MarkStepCompleted(step int, output any) {
	if !s.IsStepCompleted(step) {
		s.CompletedSteps = append(s.CompletedSteps, step)
		sort.Ints(s.CompletedSteps)
	}
	s.StepOutputs[step] = output
	delete(s.PartialProgress, step)
}

// SetPartial stores a step-defined checkpoint payload for an in-progress step.
func (s *WorkflowState) SetPartial(step int, payload any) {
	s.PartialProgress[step] = payload
}

// LogError appends to the error log. Entries are never rewritten.
func (s *WorkflowState) LogError(step int, message string) {
	s.ErrorLog = append(s.ErrorLog, ErrorEntry{
		Step:      step,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// ResumePoint returns the lowest step that has not completed.
func (s *WorkflowState) ResumePoint() int {
	next := 1
	for _, c := range s.CompletedSteps {
		if c == next {
			next++
		}
	}
	return next
}

// pruneFrom discards completion records, outputs, partial progress, and error
// entries for fromStep and every later step. Steps strictly before fromStep
// are untouched. fromStep <= 0 resets to an empty state.
func (s *WorkflowState) pruneFrom(fromStep int) *WorkflowState {
	if fromStep <= 0 {
		return New()
	}

	pruned := New()
	pruned.RunID = s.RunID
	pruned.RunStartedAt = s.RunStartedAt
	pruned.LastUpdatedAt = s.LastUpdatedAt

	for _, c := range s.CompletedSteps {
		if c < fromStep {
			pruned.CompletedSteps = append(pruned.CompletedSteps, c)
		}
	}
	for step, out := range s.StepOutputs {
		if step < fromStep {
			pruned.StepOutputs[step] = out
		}
	}
	for step, p := range s.PartialProgress {
		if step < fromStep {
			pruned.PartialProgress[step] = p
		}
	}
	for _, e := range s.ErrorLog {
		if e.Step < fromStep {
			pruned.ErrorLog = append(pruned.ErrorLog, e)
		}
	}
	return pruned
}

// checkVersion rejects states written by a newer schema.
func checkVersion(version int) error {
	if version > SchemaVersion {
		return fmt.Errorf("state store: unexpected schema version %d (this build supports <= %d)", version, SchemaVersion)
	}
	return nil
}

// DecodeInto converts a deserialized payload (map/slice/scalar soup from
// either backend) into a typed struct. Steps use it to rebuild their cursor
// from StepOutputs and PartialProgress entries.
func DecodeInto(payload any, out any) error {
	if payload == nil {
		return fmt.Errorf("state: no payload to decode")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("state: encoding payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("state: decoding payload: %w", err)
	}
	return nil
}
