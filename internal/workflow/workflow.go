// Package workflow drives the multi-step analysis pipeline: title retrieval,
// per-language editor aggregation, report generation, and upload. Progress is
// checkpointed after every unit of work so an interrupted run resumes where
// it stopped.
package workflow

import "fmt"

// Pipeline steps, in execution order.
const (
	StepTitles  = 1
	StepEditors = 2
	StepReports = 3
	StepUpload  = 4

	FirstStep = StepTitles
	LastStep  = StepUpload
)

// StepName returns the human-readable name for a step.
func StepName(step int) string {
	switch step {
	case StepTitles:
		return "Retrieve article titles"
	case StepEditors:
		return "Process editor statistics"
	case StepReports:
		return "Generate reports"
	case StepUpload:
		return "Upload reports"
	default:
		return fmt.Sprintf("Step %d", step)
	}
}

// ValidStep reports whether step is a known pipeline step.
func ValidStep(step int) bool {
	return step >= FirstStep && step <= LastStep
}
