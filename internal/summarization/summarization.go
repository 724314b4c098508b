// Package summarization condenses the on-topic answers of a question into a
// single summary artifact stored next to the transcripts.
package summarization

import (
	"context"
	"net/http"
	"strings"
	"time"

	"voice-answers-go/internal/answers"
	"voice-answers-go/internal/artifact"
	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/types"
)

// DefaultFileName is the summary location relative to the question folder.
const DefaultFileName = "summary/data.txt"

type Summarizer interface {
	Summarize(ctx context.Context, req types.SummaryRequest) (string, error)
}

// Result is the outcome of one summarization. StatusCode is 400 when there
// was nothing to summarize or the summary could not be persisted; SummaryRef
// is still set in the latter case.
type Result struct {
	SummaryRef string
	StatusCode int
	Summary    string
}

type Stage struct {
	store           artifact.Store
	summarizer      Summarizer
	log             *logger.Logger
	fileName        string
	readConcurrency int
}

type Option func(*Stage)

func WithFileName(name string) Option {
	return func(s *Stage) {
		if name = strings.Trim(name, "/ "); name != "" {
			s.fileName = name
		}
	}
}

func WithReadConcurrency(n int) Option {
	return func(s *Stage) { s.readConcurrency = n }
}

func New(store artifact.Store, summarizer Summarizer, log *logger.Logger, opts ...Option) *Stage {
	s := &Stage{
		store:           store,
		summarizer:      summarizer,
		log:             log.WithStage("summarization"),
		fileName:        DefaultFileName,
		readConcurrency: answers.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SummarizeRefs loads the on-topic transcripts behind refs and summarizes
// them. The question defaults to the folder name when q.Text is empty.
func (s *Stage) SummarizeRefs(ctx context.Context, q types.Question, refs []string) (Result, error) {
	if len(refs) == 0 {
		s.log.Info("no valid answers retrieved for question")
		return Result{StatusCode: http.StatusBadRequest}, nil
	}
	group, err := answers.GroupByQuestion(answers.FromRefs(refs))
	if err != nil {
		return Result{}, err
	}
	question := strings.TrimSpace(q.Text)
	if question == "" {
		question = group.Question()
	}
	loaded, err := answers.Load(ctx, s.store, group, s.readConcurrency, s.log)
	if err != nil {
		if types.KindOf(err) == types.KindNoAnswersFound {
			s.log.WithError(err).Warn("no readable on-topic transcripts")
			return Result{StatusCode: http.StatusBadRequest}, nil
		}
		return Result{}, err
	}
	return s.Summarize(ctx, question, loaded)
}

// Summarize calls the summarizer once over every on-topic answer and writes
// the text under the folder of the first answer's transcript.
func (s *Stage) Summarize(ctx context.Context, question string, onTopic []types.Answer) (Result, error) {
	log := s.log.With("question", question)
	if len(onTopic) == 0 {
		log.Info("no valid answers retrieved for question")
		return Result{StatusCode: http.StatusBadRequest}, nil
	}

	first, err := artifact.ParseRef(onTopic[0].TranscriptRef)
	if err != nil {
		return Result{}, types.WrapError(types.KindInvalidInput, err, "on-topic transcript reference")
	}
	target := first.Parent().Join(s.fileName)

	req := types.SummaryRequest{Question: question, Answers: make([]string, 0, len(onTopic))}
	for _, a := range onTopic {
		req.Answers = append(req.Answers, a.Text)
	}

	log.WithField("answers", len(req.Answers)).Info("summarizing answers")
	start := time.Now()
	summary, err := s.summarizer.Summarize(ctx, req)
	if err != nil {
		log.WithError(err).Error("summarizer call failed")
		return Result{}, types.WrapError(types.KindSummarizationFailed, err, "question %q", question)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return Result{}, types.NewError(types.KindSummarizationFailed, "empty summary for question %q", question)
	}
	log.WithField("response_time_ms", time.Since(start).Milliseconds()).Info("summary generated")

	res := Result{SummaryRef: target.String(), Summary: summary, StatusCode: http.StatusOK}
	if err := s.store.Put(ctx, target, []byte(summary)); err != nil {
		log.WithError(err).WithField("summary", res.SummaryRef).Error("failed to persist summary")
		res.StatusCode = http.StatusBadRequest
		return res, nil
	}
	log.WithField("summary", res.SummaryRef).Info("summary persisted")
	return res, nil
}
