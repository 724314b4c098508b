// Package pipeline sequences the stages of one document run and routes fatal
// stage errors to the failure notifier.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/notify"
	"voice-answers-go/internal/summarization"
	"voice-answers-go/internal/types"
)

type State string

const (
	Discovering  State = "discovering"
	Transcribing State = "transcribing"
	Validating   State = "validating"
	Summarizing  State = "summarizing"
	Assembling   State = "assembling"
	Completed    State = "completed"
	Failed       State = "failed"
)

func (s State) Terminal() bool { return s == Completed || s == Failed }

type Discoverer interface {
	Discover(ctx context.Context, folderRef, documentName string) (types.DiscoveryOutput, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, documentName string, audioRefs []string) (types.TranscriptionOutput, error)
}

type Validator interface {
	ValidateTranscripts(ctx context.Context, q types.Question, transcripts []types.Transcript) (types.ValidationOutcome, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, question string, onTopic []types.Answer) (summarization.Result, error)
}

type Assembler interface {
	Assemble(ctx context.Context, documentName string, reports []types.QuestionReport) (types.AssemblyOutput, error)
}

// Stages holds one implementation per pipeline state.
type Stages struct {
	Discovery     Discoverer
	Transcription Transcriber
	Validation    Validator
	Summarization Summarizer
	Assembly      Assembler
}

// Run is the record of one pipeline execution over a document.
type Run struct {
	ID           string                 `json:"runId"`
	DocumentName string                 `json:"documentName"`
	State        State                  `json:"state"`
	History      []State                `json:"history"`
	FailedStage  State                  `json:"failedStage,omitempty"`
	ErrorKind    types.ErrorKind        `json:"errorKind,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Questions    []types.QuestionReport `json:"questions"`
	Output       *types.AssemblyOutput  `json:"output,omitempty"`
	StartedAt    time.Time              `json:"startedAt"`
	FinishedAt   time.Time              `json:"finishedAt"`
}

func (r *Run) enter(s State) {
	r.State = s
	r.History = append(r.History, s)
}

type Controller struct {
	stages   Stages
	notifier notify.Notifier
	log      *logger.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Controller)

// WithClock replaces time.Now, used for run timestamps and notices.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

func New(stages Stages, notifier notify.Notifier, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		stages:   stages,
		notifier: notifier,
		log:      log.WithStage("controller"),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes every state for all questions of doc before advancing to the
// next one. The returned Run is always non-nil; err is the fatal stage error
// that moved it to Failed.
func (c *Controller) Run(ctx context.Context, doc types.Document) (*Run, error) {
	run := &Run{
		ID:           c.newID(),
		DocumentName: doc.Name,
		StartedAt:    c.now().UTC(),
		Questions:    make([]types.QuestionReport, len(doc.Questions)),
	}
	for i, q := range doc.Questions {
		run.Questions[i].Question = q
	}
	log := c.log.With("run_id", run.ID).With("document_name", doc.Name)
	log.WithField("questions", len(doc.Questions)).Info("pipeline run started")

	steps := []struct {
		state State
		fn    func(context.Context, *Run) error
		skip  func(*Run) bool
	}{
		{state: Discovering, fn: c.discover},
		{state: Transcribing, fn: c.transcribe},
		{state: Validating, fn: c.validate},
		{state: Summarizing, fn: c.summarize, skip: nothingToSummarize},
		{state: Assembling, fn: c.assemble},
	}
	for _, step := range steps {
		if step.skip != nil && step.skip(run) {
			log.WithField("state", step.state).Info("no question reached quorum, skipping")
			continue
		}
		run.enter(step.state)
		log.WithField("state", step.state).Debug("entering state")
		if err := step.fn(ctx, run); err != nil {
			return run, c.fail(ctx, log, run, err)
		}
	}

	run.enter(Completed)
	run.FinishedAt = c.now().UTC()
	log.WithFields(map[string]any{
		"status_code": run.Output.StatusCode,
		"document":    run.Output.DocumentRef,
		"duration_ms": run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	}).Info("pipeline run completed")
	return run, nil
}

func (c *Controller) fail(ctx context.Context, log *logger.Logger, run *Run, err error) error {
	run.FailedStage = run.State
	run.ErrorKind = types.KindOf(err)
	run.Error = err.Error()
	run.enter(Failed)
	run.FinishedAt = c.now().UTC()

	log.WithError(err).WithFields(map[string]any{
		"failed_stage": run.FailedStage,
		"error_kind":   run.ErrorKind,
	}).Error("pipeline run failed")

	notice := types.FailureNotice{
		RunID:        run.ID,
		Stage:        string(run.FailedStage),
		DocumentName: run.DocumentName,
		ErrorKind:    run.ErrorKind,
		Message:      err.Error(),
		Timestamp:    run.FinishedAt.Format(time.RFC3339),
	}
	// The notifier gets its own context so a cancelled run still reports.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if nerr := c.notifier.Notify(nctx, notice); nerr != nil {
		log.WithError(nerr).Warn("failure notification not delivered")
	}
	return err
}

func (c *Controller) discover(ctx context.Context, run *Run) error {
	if strings.TrimSpace(run.DocumentName) == "" {
		return types.NewError(types.KindInvalidInput, "documentName is required")
	}
	if len(run.Questions) == 0 {
		return types.NewError(types.KindInvalidInput, "document %q has no questions", run.DocumentName)
	}
	for i := range run.Questions {
		q := &run.Questions[i]
		out, err := c.stages.Discovery.Discover(ctx, q.Question.FolderRef, run.DocumentName)
		if err != nil {
			return err
		}
		q.Transcripts = make([]types.Transcript, 0, len(out.AudioRefs))
		for _, ref := range out.AudioRefs {
			q.Transcripts = append(q.Transcripts, types.Transcript{AudioRef: ref})
		}
	}
	return nil
}

// transcribe rejects a run where two questions land in the same transcript
// folder, since their summaries would overwrite each other.
func (c *Controller) transcribe(ctx context.Context, run *Run) error {
	folders := make(map[string]int, len(run.Questions))
	for i := range run.Questions {
		q := &run.Questions[i]
		audio := make([]string, 0, len(q.Transcripts))
		for _, t := range q.Transcripts {
			audio = append(audio, t.AudioRef)
		}
		out, err := c.stages.Transcription.Transcribe(ctx, run.DocumentName, audio)
		if err != nil {
			return err
		}
		q.Transcripts = out.Transcripts
		for _, t := range out.Transcripts {
			folder := t.TranscriptRef[:strings.LastIndex(t.TranscriptRef, "/")+1]
			if other, ok := folders[folder]; ok && other != i {
				return types.NewError(types.KindInvalidInput, "questions %s and %s share transcript folder %s",
					run.Questions[other].Question.FolderRef, q.Question.FolderRef, folder)
			}
			folders[folder] = i
		}
	}
	return nil
}

func (c *Controller) validate(ctx context.Context, run *Run) error {
	for i := range run.Questions {
		q := &run.Questions[i]
		outcome, err := c.stages.Validation.ValidateTranscripts(ctx, q.Question, q.Transcripts)
		if err != nil {
			return err
		}
		q.Outcome = outcome
	}
	return nil
}

func nothingToSummarize(run *Run) bool {
	for _, q := range run.Questions {
		if q.Outcome.ShouldSummarize {
			return false
		}
	}
	return true
}

func (c *Controller) summarize(ctx context.Context, run *Run) error {
	for i := range run.Questions {
		q := &run.Questions[i]
		if !q.Outcome.ShouldSummarize {
			continue
		}
		res, err := c.stages.Summarization.Summarize(ctx, q.Outcome.Question, q.Outcome.OnTopic)
		if err != nil {
			return err
		}
		q.SummaryRef, q.SummaryStatus, q.Summary = res.SummaryRef, res.StatusCode, res.Summary
		if res.StatusCode != http.StatusOK {
			return types.NewError(types.KindSummarizationFailed, "summary for question %q not stored (status %d)", q.Label(), res.StatusCode)
		}
	}
	return nil
}

func (c *Controller) assemble(ctx context.Context, run *Run) error {
	out, err := c.stages.Assembly.Assemble(ctx, run.DocumentName, run.Questions)
	if err != nil {
		return err
	}
	run.Output = &out
	return nil
}

// String renders a one-line run summary for CLI output.
func (r *Run) String() string {
	if r.State == Failed {
		return fmt.Sprintf("%s %s: failed in %s (%s): %s", r.ID, r.DocumentName, r.FailedStage, r.ErrorKind, r.Error)
	}
	if r.Output == nil {
		return fmt.Sprintf("%s %s: %s", r.ID, r.DocumentName, r.State)
	}
	return fmt.Sprintf("%s %s: %s status=%d document=%s report=%s",
		r.ID, r.DocumentName, r.State, r.Output.StatusCode, r.Output.DocumentRef, r.Output.ReportRef)
}
