// Package validation screens the answers of one question for relevance and
// decides whether enough of them are on-topic to be summarized.
package validation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"voice-answers-go/internal/answers"
	"voice-answers-go/internal/artifact"
	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/retry"
	"voice-answers-go/internal/types"
)

// Classifier returns the indices of the answers it judges off-topic.
type Classifier interface {
	Classify(ctx context.Context, req types.ClassificationRequest) (types.ClassificationResult, error)
}

type Stage struct {
	store           artifact.Store
	classifier      Classifier
	log             *logger.Logger
	policy          retry.Policy
	retryOpts       []retry.Option
	readConcurrency int
}

type Option func(*Stage)

func WithPolicy(p retry.Policy) Option {
	return func(s *Stage) { s.policy = p }
}

// WithRetryOptions passes options (timer, hooks) to the classifier retry loop.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(s *Stage) { s.retryOpts = append(s.retryOpts, opts...) }
}

func WithReadConcurrency(n int) Option {
	return func(s *Stage) { s.readConcurrency = n }
}

func New(store artifact.Store, classifier Classifier, log *logger.Logger, opts ...Option) *Stage {
	s := &Stage{
		store:           store,
		classifier:      classifier,
		log:             log.WithStage("validation"),
		policy:          retry.DefaultPolicy(),
		readConcurrency: answers.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate screens transcript references that carry no audio linkage.
func (s *Stage) Validate(ctx context.Context, q types.Question, transcriptRefs []string) (types.ValidationOutcome, error) {
	return s.ValidateTranscripts(ctx, q, answers.FromRefs(transcriptRefs))
}

// ValidateTranscripts resolves transcripts, classifies them under the retry
// budget, partitions them and applies the quorum rule. Verdicts are assigned
// only after a successful classification.
func (s *Stage) ValidateTranscripts(ctx context.Context, q types.Question, transcripts []types.Transcript) (types.ValidationOutcome, error) {
	group, err := answers.GroupByQuestion(transcripts)
	if err != nil {
		return types.ValidationOutcome{}, err
	}

	question := strings.TrimSpace(q.Text)
	if question == "" {
		question = group.Question()
	}
	log := s.log.With("question", question)

	candidates, err := answers.Load(ctx, s.store, group, s.readConcurrency, log)
	if err != nil {
		return types.ValidationOutcome{}, err
	}
	log.WithField("answers", len(candidates)).Info("running topic analysis")

	req := types.ClassificationRequest{Question: question, Answers: make([]types.IndexedAnswer, 0, len(candidates))}
	known := make(map[string]bool, len(candidates))
	for _, a := range candidates {
		req.Answers = append(req.Answers, types.IndexedAnswer{Index: a.ID, Answer: a.Text})
		known[a.ID] = true
	}

	start := time.Now()
	opts := append([]retry.Option{retry.OnRetry(func(attempt int, err error, wait time.Duration) {
		log.WithError(err).WithField("attempt", attempt).WithField("wait", wait.String()).Warn("topic analysis failed, retrying")
	})}, s.retryOpts...)

	offTopic, err := retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) (map[string]bool, error) {
		res, err := s.classifier.Classify(ctx, req)
		if err != nil {
			return nil, err
		}
		return offTopicSet(res, known)
	}, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return types.ValidationOutcome{}, err
		}
		log.WithError(err).Error("max retries reached, topic analysis failed")
		return types.ValidationOutcome{}, types.WrapError(types.KindClassificationExhausted, err, "question %q", question)
	}
	log.WithField("response_time_ms", time.Since(start).Milliseconds()).Info("topic analysis completed")

	out := Decide(question, candidates, offTopic)
	log.WithFields(map[string]any{
		"on_topic":         len(out.OnTopic),
		"off_topic":        len(out.OffTopic),
		"should_summarize": out.ShouldSummarize,
		"status_code":      out.StatusCode,
	}).Info("validation finished")
	return out, nil
}

// offTopicSet normalizes a classifier result. The sentinel and an empty list
// both mean nothing is off-topic. An index the request never contained makes
// the result malformed, which counts as a failed attempt.
func offTopicSet(res types.ClassificationResult, known map[string]bool) (map[string]bool, error) {
	set := map[string]bool{}
	for _, idx := range res.OffTopicAnswers {
		idx = strings.TrimSpace(idx)
		if idx == types.AllOnTopicSentinel {
			continue
		}
		if !known[idx] {
			return nil, fmt.Errorf("classifier returned unknown answer index %q", idx)
		}
		set[idx] = true
	}
	return set, nil
}

// Decide partitions candidates by the off-topic set, keeping input order, and
// applies the quorum rule. It copies candidates; the inputs are not modified.
func Decide(question string, candidates []types.Answer, offTopic map[string]bool) types.ValidationOutcome {
	out := types.ValidationOutcome{
		Question: question,
		OnTopic:  []types.Answer{},
		OffTopic: []types.Answer{},
	}
	for _, a := range candidates {
		if offTopic[a.ID] {
			a.Verdict = types.OffTopic
			out.OffTopic = append(out.OffTopic, a)
		} else {
			a.Verdict = types.OnTopic
			out.OnTopic = append(out.OnTopic, a)
		}
	}
	out.ShouldSummarize = QuorumReached(len(out.OnTopic), len(candidates))
	out.StatusCode = http.StatusBadRequest
	if out.ShouldSummarize {
		out.StatusCode = http.StatusOK
	}
	return out
}

// QuorumReached is the strict-majority rule: an even split does not pass.
func QuorumReached(onTopic, total int) bool {
	return total > 0 && 2*onTopic > total
}
