package notify

import "time"

// Provider defines the notification contract for analysis run events.
// This interface allows for different notification backends (Slack, email, etc.)
// and enables easier testing through mock implementations.
type Provider interface {
	// RunStarted sends notification when an analysis run starts.
	RunStarted(runID, year string, languageCount int) error

	// RunCompleted sends notification when a run completes successfully.
	RunCompleted(runID string, startTime time.Time, duration time.Duration, languages int, editors int) error

	// RunCompletedWithErrors sends notification when a run completes with some language failures.
	RunCompletedWithErrors(runID string, startTime time.Time, duration time.Duration, succeeded, failed int, failures []string) error

	// RunFailed sends notification when a run fails outright.
	RunFailed(runID string, err error, duration time.Duration) error

	// LanguageFailed sends notification for individual language failures.
	LanguageFailed(runID, lang string, err error) error
}

// Ensure Notifier implements Provider
var _ Provider = (*Notifier)(nil)
