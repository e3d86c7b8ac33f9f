package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medwiki-tools/editor-stats/internal/config"
	"github.com/medwiki-tools/editor-stats/internal/logging"
	"github.com/medwiki-tools/editor-stats/internal/notify"
	"github.com/medwiki-tools/editor-stats/internal/replica"
	"github.com/medwiki-tools/editor-stats/internal/report"
	"github.com/medwiki-tools/editor-stats/internal/state"
)

// QueryClient runs replica queries. Satisfied by *replica.Executor.
type QueryClient interface {
	EditorCounts(ctx context.Context, t replica.Target, query string, args ...any) ([]replica.EditorRow, error)
	TitleLinks(ctx context.Context, t replica.Target, query string, args ...any) ([]replica.TitleRow, error)
}

// TargetResolver maps language codes to replica targets. Satisfied by
// *dbmap.Mapper.
type TargetResolver interface {
	Target(ctx context.Context, lang string) (replica.Target, error)
}

// PageWriter publishes rendered reports. Satisfied by *mwclient.Client.
type PageWriter interface {
	Login(ctx context.Context) error
	EditPage(ctx context.Context, title, text, summary string) error
}

// RunHistory records run outcomes. Satisfied by *state.SQLiteStore; a nil
// history is allowed for the YAML backend.
type RunHistory interface {
	RecordRunStart(runID string) error
	RecordRunEnd(runID, status, summary string) error
}

// Orchestrator coordinates the pipeline steps against the state store.
type Orchestrator struct {
	cfg      *config.Config
	store    state.Store
	client   QueryClient
	resolver TargetResolver
	files    *report.Files
	notifier notify.Provider
	uploader PageWriter
	history  RunHistory

	// ShowProgress enables the interactive progress bar during the editor
	// step. Off by default so tests and cron runs stay quiet.
	ShowProgress bool
}

// New builds an orchestrator. uploader and history may be nil; the upload
// step then reports a configuration error, and run history is not kept.
func New(cfg *config.Config, store state.Store, client QueryClient, resolver TargetResolver,
	files *report.Files, notifier notify.Provider, uploader PageWriter, history RunHistory) *Orchestrator {
	if notifier == nil {
		notifier = notify.New(nil)
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		client:   client,
		resolver: resolver,
		files:    files,
		notifier: notifier,
		uploader: uploader,
		history:  history,
	}
}

// RunAll executes the pipeline from the resume point through the last step.
// With fresh set, all prior progress is discarded first. Completed steps are
// never re-executed.
func (o *Orchestrator) RunAll(ctx context.Context, fresh bool) error {
	st, err := o.prepare(fresh)
	if err != nil {
		return err
	}

	runID := st.RunID
	startedAt := time.Now()
	if st.RunStartedAt != nil {
		startedAt = *st.RunStartedAt
	}

	langCount := len(o.cfg.Analysis.Languages)
	if err := o.notifier.RunStarted(runID, o.cfg.Analysis.Year, langCount); err != nil {
		logging.Warn("notification failed: %v", err)
	}
	if o.history != nil {
		if err := o.history.RecordRunStart(runID); err != nil {
			logging.Warn("could not record run start: %v", err)
		}
	}

	lastStep := LastStep
	if !o.cfg.Upload.Enabled {
		lastStep = StepReports
	}

	for step := FirstStep; step <= lastStep; step++ {
		if st.IsStepCompleted(step) {
			logging.Info("✓ Skipping step %d (%s): already completed", step, StepName(step))
			continue
		}
		if err := o.runStep(ctx, st, step); err != nil {
			o.finishRun(runID, startedAt, st, err)
			return err
		}
	}

	o.finishRun(runID, startedAt, st, nil)
	return nil
}

// RunStep executes exactly one step. Earlier steps must be completed first;
// a completed step is re-executed from scratch.
func (o *Orchestrator) RunStep(ctx context.Context, step int) error {
	if !ValidStep(step) {
		return fmt.Errorf("unknown step %d (valid: %d-%d)", step, FirstStep, LastStep)
	}

	st, err := o.store.Load()
	if err != nil {
		return err
	}
	for prior := FirstStep; prior < step; prior++ {
		if !st.IsStepCompleted(prior) {
			return fmt.Errorf("step %d requires step %d (%s) to be completed first",
				step, prior, StepName(prior))
		}
	}

	if st.RunID == "" {
		st.MarkStarted(newRunID())
	}
	return o.runStep(ctx, st, step)
}

// Status returns the current pipeline status.
func (o *Orchestrator) Status() (Status, error) {
	st, err := o.store.Load()
	if err != nil {
		return Status{}, err
	}
	return BuildStatus(st, o.cfg.Upload.Enabled), nil
}

// Reset discards progress from fromStep onward. Zero resets everything.
func (o *Orchestrator) Reset(fromStep int) (*state.WorkflowState, error) {
	if fromStep != 0 && !ValidStep(fromStep) {
		return nil, fmt.Errorf("unknown step %d (valid: %d-%d)", fromStep, FirstStep, LastStep)
	}
	return o.store.Reset(fromStep)
}

func (o *Orchestrator) prepare(fresh bool) (*state.WorkflowState, error) {
	if fresh {
		if _, err := o.store.Reset(0); err != nil {
			return nil, fmt.Errorf("discarding previous progress: %w", err)
		}
	}

	st, err := o.store.Load()
	if err != nil {
		return nil, err
	}

	if st.RunID == "" {
		st.MarkStarted(newRunID())
	} else if len(st.CompletedSteps) > 0 {
		logging.Info("Resuming run %s from step %d (%s)",
			st.RunID, st.ResumePoint(), StepName(st.ResumePoint()))
	}
	if err := o.store.Save(st); err != nil {
		return nil, err
	}
	return st, nil
}

func (o *Orchestrator) runStep(ctx context.Context, st *state.WorkflowState, step int) error {
	logging.Info("%s", strings.Repeat("=", 60))
	logging.Info("Step %d: %s", step, StepName(step))
	logging.Info("%s", strings.Repeat("=", 60))
	started := time.Now()

	var output any
	var err error
	switch step {
	case StepTitles:
		output, err = o.runTitles(ctx)
	case StepEditors:
		output, err = o.runEditors(ctx, st)
	case StepReports:
		output, err = o.runReports(ctx)
	case StepUpload:
		output, err = o.runUpload(ctx)
	}

	if err != nil {
		st.LogError(step, err.Error())
		if saveErr := o.store.Save(st); saveErr != nil {
			logging.Error("could not persist failure state: %v", saveErr)
		}
		return fmt.Errorf("step %d (%s): %w", step, StepName(step), err)
	}

	st.MarkStepCompleted(step, output)
	if err := o.store.Save(st); err != nil {
		return fmt.Errorf("persisting step %d completion: %w", step, err)
	}

	logging.Info("✓ Step %d complete in %s", step, time.Since(started).Round(time.Second))
	return nil
}

func (o *Orchestrator) finishRun(runID string, startedAt time.Time, st *state.WorkflowState, runErr error) {
	duration := time.Since(startedAt)

	var out EditorsOutput
	failed := []string{}
	succeeded := 0
	if payload, ok := st.StepOutputs[StepEditors]; ok {
		if err := state.DecodeInto(payload, &out); err == nil {
			failed = out.Failed
			succeeded = out.Languages
		}
	}

	var status, summary string
	switch {
	case runErr != nil && errors.Is(runErr, context.Canceled):
		status, summary = "cancelled", "run cancelled"
		if err := o.notifier.RunFailed(runID, runErr, duration); err != nil {
			logging.Warn("notification failed: %v", err)
		}
	case runErr != nil:
		status, summary = "failed", runErr.Error()
		if err := o.notifier.RunFailed(runID, runErr, duration); err != nil {
			logging.Warn("notification failed: %v", err)
		}
	case len(failed) > 0:
		status = "completed_with_errors"
		summary = fmt.Sprintf("%d languages succeeded, %d failed", succeeded, len(failed))
		if err := o.notifier.RunCompletedWithErrors(runID, startedAt, duration, succeeded, len(failed), failed); err != nil {
			logging.Warn("notification failed: %v", err)
		}
	default:
		status = "success"
		summary = fmt.Sprintf("%d languages, %d editors", succeeded, out.Editors)
		if err := o.notifier.RunCompleted(runID, startedAt, duration, succeeded, out.Editors); err != nil {
			logging.Warn("notification failed: %v", err)
		}
	}

	if o.history != nil {
		if err := o.history.RecordRunEnd(runID, status, summary); err != nil {
			logging.Warn("could not record run end: %v", err)
		}
	}
}

func newRunID() string {
	return uuid.New().String()[:8]
}
