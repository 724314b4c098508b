package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"voice-answers-go/internal/artifact"
	"voice-answers-go/internal/assembly"
	"voice-answers-go/internal/discovery"
	"voice-answers-go/internal/extractor"
	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/summarization"
	"voice-answers-go/internal/transcription"
	"voice-answers-go/internal/types"
	"voice-answers-go/internal/validation"
)

var fixedNow = time.Date(2025, 12, 1, 9, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	notices []types.FailureNotice
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, notice types.FailureNotice) error {
	n.notices = append(n.notices, notice)
	return n.err
}

// fakeStages answers every stage from canned data keyed by question folder.
type fakeStages struct {
	outcomes map[string]types.ValidationOutcome
	failAt   State
	failErr  error
	summary  summarization.Result

	summarized []string
	assembled  []types.QuestionReport
}

func (f *fakeStages) fail(s State) error {
	if f.failAt == s {
		return f.failErr
	}
	return nil
}

func (f *fakeStages) Discover(_ context.Context, folderRef, documentName string) (types.DiscoveryOutput, error) {
	if err := f.fail(Discovering); err != nil {
		return types.DiscoveryOutput{}, err
	}
	return types.DiscoveryOutput{StatusCode: 200, DocumentName: documentName, AudioRefs: []string{folderRef + "1.wav"}}, nil
}

func (f *fakeStages) Transcribe(_ context.Context, documentName string, audioRefs []string) (types.TranscriptionOutput, error) {
	if err := f.fail(Transcribing); err != nil {
		return types.TranscriptionOutput{}, err
	}
	out := types.TranscriptionOutput{StatusCode: 200, DocumentName: documentName}
	for _, a := range audioRefs {
		out.Transcripts = append(out.Transcripts, types.Transcript{AudioRef: a, TranscriptRef: strings.TrimSuffix(a, ".wav") + ".txt"})
	}
	return out, nil
}

func (f *fakeStages) ValidateTranscripts(_ context.Context, q types.Question, _ []types.Transcript) (types.ValidationOutcome, error) {
	if err := f.fail(Validating); err != nil {
		return types.ValidationOutcome{}, err
	}
	return f.outcomes[q.FolderRef], nil
}

func (f *fakeStages) Summarize(_ context.Context, question string, _ []types.Answer) (summarization.Result, error) {
	f.summarized = append(f.summarized, question)
	if err := f.fail(Summarizing); err != nil {
		return summarization.Result{}, err
	}
	return f.summary, nil
}

func (f *fakeStages) Assemble(_ context.Context, documentName string, reports []types.QuestionReport) (types.AssemblyOutput, error) {
	f.assembled = reports
	if err := f.fail(Assembling); err != nil {
		return types.AssemblyOutput{}, err
	}
	return types.AssemblyOutput{StatusCode: 200, DocumentName: documentName, DocumentRef: "s3://b/documents/" + documentName + "/document.docx"}, nil
}

func newController(f *fakeStages, n *recordingNotifier) *Controller {
	stages := Stages{Discovery: f, Transcription: f, Validation: f, Summarization: f, Assembly: f}
	return New(stages, n, logger.Discard(),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "run-1" }),
	)
}

func outcome(question string, pass bool) types.ValidationOutcome {
	o := types.ValidationOutcome{Question: question, OnTopic: []types.Answer{{ID: "1", Verdict: types.OnTopic}}, StatusCode: 400}
	if pass {
		o.ShouldSummarize, o.StatusCode = true, 200
	}
	return o
}

var doc = types.Document{
	Name: "doc",
	Questions: []types.Question{
		{FolderRef: "s3://b/audio/ec2/"},
		{FolderRef: "s3://b/audio/s3/"},
	},
}

func TestRunCompletes(t *testing.T) {
	f := &fakeStages{
		outcomes: map[string]types.ValidationOutcome{
			"s3://b/audio/ec2/": outcome("ec2", true),
			"s3://b/audio/s3/":  outcome("s3", false),
		},
		summary: summarization.Result{SummaryRef: "s3://b/t/ec2/summary/data.txt", StatusCode: http.StatusOK, Summary: "text"},
	}
	n := &recordingNotifier{}

	run, err := newController(f, n).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantHistory := []State{Discovering, Transcribing, Validating, Summarizing, Assembling, Completed}
	if diff := cmp.Diff(wantHistory, run.History); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ec2"}, f.summarized); diff != "" {
		t.Errorf("only quorum questions are summarized (-want +got):\n%s", diff)
	}
	if len(f.assembled) != 2 || !f.assembled[0].Summarized() || f.assembled[1].Summarized() {
		t.Errorf("assembled reports = %+v", f.assembled)
	}
	if f.assembled[0].Transcripts[0].TranscriptRef != "s3://b/audio/ec2/1.txt" {
		t.Errorf("transcripts not carried: %+v", f.assembled[0].Transcripts)
	}
	if run.Output == nil || run.Output.StatusCode != 200 || run.ID != "run-1" {
		t.Errorf("run = %+v", run)
	}
	if len(n.notices) != 0 {
		t.Errorf("unexpected notices: %+v", n.notices)
	}
}

func TestRunSkipsSummarizingWithoutQuorum(t *testing.T) {
	f := &fakeStages{outcomes: map[string]types.ValidationOutcome{
		"s3://b/audio/ec2/": outcome("ec2", false),
		"s3://b/audio/s3/":  outcome("s3", false),
	}}
	run, err := newController(f, &recordingNotifier{}).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantHistory := []State{Discovering, Transcribing, Validating, Assembling, Completed}
	if diff := cmp.Diff(wantHistory, run.History); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if len(f.summarized) != 0 {
		t.Errorf("summarizer called for %v", f.summarized)
	}
	if len(f.assembled) != 2 || f.assembled[0].Outcome.StatusCode != 400 {
		t.Errorf("assembly did not receive quorum failures: %+v", f.assembled)
	}
}

func TestRunFailureNotifies(t *testing.T) {
	tests := []struct {
		name     string
		failAt   State
		failErr  error
		wantKind types.ErrorKind
	}{
		{"discovery", Discovering, types.NewError(types.KindNoArtifactsFound, "empty"), types.KindNoArtifactsFound},
		{"transcription", Transcribing, types.NewError(types.KindTranscriptionFailed, "none"), types.KindTranscriptionFailed},
		{"validation", Validating, types.NewError(types.KindClassificationExhausted, "3 attempts"), types.KindClassificationExhausted},
		{"summarization", Summarizing, types.NewError(types.KindSummarizationFailed, "llm down"), types.KindSummarizationFailed},
		{"assembly", Assembling, errors.New("disk full"), types.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeStages{
				outcomes: map[string]types.ValidationOutcome{"s3://b/audio/ec2/": outcome("ec2", true)},
				summary:  summarization.Result{SummaryRef: "s3://b/x", StatusCode: 200},
				failAt:   tt.failAt,
				failErr:  tt.failErr,
			}
			n := &recordingNotifier{}
			run, err := newController(f, n).Run(context.Background(), doc)
			if !errors.Is(err, tt.failErr) {
				t.Fatalf("Run error = %v, want %v", err, tt.failErr)
			}
			if run.State != Failed || run.FailedStage != tt.failAt {
				t.Errorf("state = %s, failed stage = %s", run.State, run.FailedStage)
			}
			want := []types.FailureNotice{{
				RunID:        "run-1",
				Stage:        string(tt.failAt),
				DocumentName: "doc",
				ErrorKind:    tt.wantKind,
				Message:      tt.failErr.Error(),
				Timestamp:    "2025-12-01T09:30:00Z",
			}}
			if diff := cmp.Diff(want, n.notices); diff != "" {
				t.Errorf("notice mismatch (-want +got):\n%s", diff)
			}
			if last := run.History[len(run.History)-1]; last != Failed {
				t.Errorf("last state = %s", last)
			}
		})
	}
}

func TestRunStopsAfterFailure(t *testing.T) {
	f := &fakeStages{failAt: Validating, failErr: types.NewError(types.KindMixedQuestionInput, "two parents")}
	if _, err := newController(f, &recordingNotifier{}).Run(context.Background(), doc); err == nil {
		t.Fatal("expected error")
	}
	if len(f.summarized) != 0 || f.assembled != nil {
		t.Errorf("stages ran after failure: summarized=%v assembled=%v", f.summarized, f.assembled)
	}
}

func TestRunNotifierErrorDoesNotMask(t *testing.T) {
	stageErr := types.NewError(types.KindNoArtifactsFound, "empty folder")
	f := &fakeStages{failAt: Discovering, failErr: stageErr}
	n := &recordingNotifier{err: errors.New("webhook unreachable")}
	_, err := newController(f, n).Run(context.Background(), doc)
	if !errors.Is(err, types.ErrNoArtifactsFound) {
		t.Errorf("err = %v, want NoArtifactsFound", err)
	}
}

func TestRunSummaryNotStored(t *testing.T) {
	f := &fakeStages{
		outcomes: map[string]types.ValidationOutcome{"s3://b/audio/ec2/": outcome("ec2", true)},
		summary:  summarization.Result{SummaryRef: "s3://b/x", StatusCode: http.StatusBadRequest},
	}
	n := &recordingNotifier{}
	run, err := newController(f, n).Run(context.Background(), doc)
	if !errors.Is(err, types.ErrSummarizationFailed) {
		t.Fatalf("err = %v, want SummarizationFailed", err)
	}
	if run.FailedStage != Summarizing || len(n.notices) != 1 {
		t.Errorf("failed stage = %s, notices = %d", run.FailedStage, len(n.notices))
	}
}

func TestRunInvalidDocument(t *testing.T) {
	for _, d := range []types.Document{{Name: "doc"}, {Questions: doc.Questions}} {
		n := &recordingNotifier{}
		run, err := newController(&fakeStages{}, n).Run(context.Background(), d)
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("%+v: err = %v", d, err)
		}
		if run.FailedStage != Discovering || len(n.notices) != 1 {
			t.Errorf("%+v: failed stage = %s, notices = %d", d, run.FailedStage, len(n.notices))
		}
	}
}

func TestRunRejectsSharedTranscriptFolder(t *testing.T) {
	f := &fakeStages{}
	n := &recordingNotifier{}
	d := types.Document{Name: "doc", Questions: []types.Question{
		{FolderRef: "s3://b/audio/ec2/"},
		{FolderRef: "s3://b/audio/ec2/"},
	}}
	run, err := newController(f, n).Run(context.Background(), d)
	if !errors.Is(err, types.ErrInvalidInput) {
		t.Fatalf("err = %v, want InvalidInput", err)
	}
	if run.FailedStage != Transcribing || len(n.notices) != 1 {
		t.Errorf("failed stage = %s, notices = %d", run.FailedStage, len(n.notices))
	}
}

func newStoreStages(store artifact.Store, markers ...string) Stages {
	log := logger.Discard()
	mock := extractor.Mock{OffTopicMarkers: markers}
	return Stages{
		Discovery:     discovery.New(store, log, ".wav"),
		Transcription: transcription.New(store, transcription.Mock{}, log),
		Validation:    validation.New(store, mock, log),
		Summarization: summarization.New(store, mock, log),
		Assembly:      assembly.New(store, log, ""),
	}
}

func TestRunSameFolderNameUnderDifferentParents(t *testing.T) {
	ctx := context.Background()
	store := artifact.NewMemoryStore()
	for _, key := range []string{"teamA/q1/a1.wav", "teamA/q1/a2.wav", "teamA/q1/a3.wav", "teamB/q1/a1.wav"} {
		if err := store.Put(ctx, artifact.Ref{Scheme: "mem", Bucket: "media", Key: key}, []byte("RIFF")); err != nil {
			t.Fatal(err)
		}
	}
	d := types.Document{Name: "handbook", Questions: []types.Question{
		{Text: "Team A", FolderRef: "mem://media/teamA/q1/"},
		{Text: "Team B", FolderRef: "mem://media/teamB/q1/"},
	}}

	run, err := New(newStoreStages(store, "teamB"), &recordingNotifier{}, logger.Discard()).Run(ctx, d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	a, b := run.Questions[0], run.Questions[1]
	if len(a.Outcome.OnTopic) != 3 || len(a.Outcome.OffTopic) != 0 {
		t.Errorf("team A outcome = %+v", a.Outcome)
	}
	if len(b.Outcome.OffTopic) != 1 || b.Outcome.ShouldSummarize {
		t.Errorf("team B outcome = %+v", b.Outcome)
	}
	if a.SummaryRef != "mem://media/transcripts/handbook/teamA/q1/summary/data.txt" {
		t.Errorf("team A summary ref = %q", a.SummaryRef)
	}
	text, err := store.Get(ctx, artifact.MustParseRef("mem://media/transcripts/handbook/teamA/q1/a1.txt"))
	if err != nil || strings.Contains(string(text), "teamB") {
		t.Errorf("team A transcript = %q, %v", text, err)
	}
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := artifact.NewMemoryStore()
	for _, key := range []string{"audio/ec2/a1.wav", "audio/ec2/a2.wav", "audio/ec2/a3.wav", "audio/s3/b1.wav", "audio/s3/b2.wav"} {
		if err := store.Put(ctx, artifact.Ref{Scheme: "mem", Bucket: "media", Key: key}, []byte("RIFF")); err != nil {
			t.Fatal(err)
		}
	}
	d := types.Document{Name: "handbook", Questions: []types.Question{
		{Text: "What is EC2?", FolderRef: "mem://media/audio/ec2/"},
		{FolderRef: "mem://media/audio/s3/"},
	}}

	run, err := New(newStoreStages(store, "b2.wav"), &recordingNotifier{}, logger.Discard()).Run(ctx, d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.State != Completed || run.Output.StatusCode != 400 {
		t.Fatalf("run = %s", run)
	}
	ec2, s3 := run.Questions[0], run.Questions[1]
	if !ec2.Summarized() || ec2.SummaryRef != "mem://media/transcripts/handbook/audio/ec2/summary/data.txt" {
		t.Errorf("ec2 = %+v", ec2)
	}
	if s3.Outcome.ShouldSummarize || len(s3.Outcome.OffTopic) != 1 || s3.Outcome.OffTopic[0].ID != "b2" {
		t.Errorf("s3 outcome = %+v", s3.Outcome)
	}
	if _, err := store.Get(ctx, artifact.MustParseRef(run.Output.DocumentRef)); err != nil {
		t.Errorf("document not stored: %v", err)
	}
	summary, err := store.Get(ctx, artifact.MustParseRef(ec2.SummaryRef))
	if err != nil || !strings.HasPrefix(string(summary), "What is EC2?") {
		t.Errorf("summary = %q, %v", summary, err)
	}
}
