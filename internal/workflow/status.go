package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/medwiki-tools/editor-stats/internal/state"
)

// Step display states.
const (
	StateCompleted = "completed"
	StatePartial   = "in_progress"
	StatePending   = "pending"
	StateSkipped   = "skipped"
)

// StepStatus is the reported status of one pipeline step.
type StepStatus struct {
	Step   int    `json:"step"`
	Name   string `json:"name"`
	State  string `json:"state"`
	Output any    `json:"output,omitempty"`
}

// Status is the full pipeline status surfaced by the status command.
type Status struct {
	RunID       string            `json:"run_id,omitempty"`
	StartedAt   *time.Time        `json:"run_started_at,omitempty"`
	UpdatedAt   *time.Time        `json:"last_updated_at,omitempty"`
	ResumePoint int               `json:"resume_point"`
	Steps       []StepStatus      `json:"steps"`
	Errors      []state.ErrorEntry `json:"errors,omitempty"`
}

// BuildStatus derives the display status from persisted workflow state.
func BuildStatus(st *state.WorkflowState, uploadEnabled bool) Status {
	s := Status{
		RunID:       st.RunID,
		StartedAt:   st.RunStartedAt,
		UpdatedAt:   st.LastUpdatedAt,
		ResumePoint: st.ResumePoint(),
		Errors:      st.ErrorLog,
	}

	for step := FirstStep; step <= LastStep; step++ {
		ss := StepStatus{Step: step, Name: StepName(step), State: StatePending}
		switch {
		case st.IsStepCompleted(step):
			ss.State = StateCompleted
			ss.Output = st.StepOutputs[step]
		case st.PartialProgress[step] != nil:
			ss.State = StatePartial
			ss.Output = st.PartialProgress[step]
		case step == StepUpload && !uploadEnabled:
			ss.State = StateSkipped
		}
		s.Steps = append(s.Steps, ss)
	}
	return s
}

// JSON renders the status for machine consumption.
func (s Status) JSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	partialStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Render produces the human-readable status view.
func (s Status) Render() string {
	var b strings.Builder

	header := "No run in progress"
	if s.RunID != "" {
		header = fmt.Sprintf("Run %s", s.RunID)
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")
	if s.StartedAt != nil {
		fmt.Fprintf(&b, "Started:      %s\n", s.StartedAt.Format(time.RFC1123))
	}
	if s.UpdatedAt != nil {
		fmt.Fprintf(&b, "Last update:  %s\n", s.UpdatedAt.Format(time.RFC1123))
	}
	b.WriteString("\n")

	for _, ss := range s.Steps {
		var line string
		switch ss.State {
		case StateCompleted:
			line = completedStyle.Render(fmt.Sprintf("  ✓ Step %d: %s", ss.Step, ss.Name))
		case StatePartial:
			line = partialStyle.Render(fmt.Sprintf("  … Step %d: %s (in progress)", ss.Step, ss.Name))
		case StateSkipped:
			line = pendingStyle.Render(fmt.Sprintf("  - Step %d: %s (disabled)", ss.Step, ss.Name))
		default:
			line = pendingStyle.Render(fmt.Sprintf("  ○ Step %d: %s", ss.Step, ss.Name))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(s.Errors) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render(fmt.Sprintf("Errors (%d)", len(s.Errors))))
		b.WriteString("\n")
		// Show the most recent few; the full log lives in the state store.
		start := 0
		if len(s.Errors) > 5 {
			start = len(s.Errors) - 5
		}
		for _, e := range s.Errors[start:] {
			b.WriteString(errorStyle.Render(fmt.Sprintf("  [step %d] %s", e.Step, e.Message)))
			b.WriteString("\n")
		}
	}

	return b.String()
}
