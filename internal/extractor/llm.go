// Package extractor turns model completions into structured pipeline
// results: off-topic verdicts for the validation stage and summaries for the
// summarization stage.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"voice-answers-go/internal/llm"
	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/types"
)

const (
	classifierMaxTokens = 128
	summarizerMaxTokens = 1024
)

// Classifier asks a model which answers miss the question.
type Classifier struct {
	provider llm.Provider
	log      *logger.Logger
}

func NewClassifier(p llm.Provider, log *logger.Logger) *Classifier {
	return &Classifier{provider: p, log: log.With("component", "classifier").With("provider", p.Name())}
}

// Classify makes one model call. Transport errors and unparseable output are
// both returned so the caller can retry them.
func (c *Classifier) Classify(ctx context.Context, req types.ClassificationRequest) (types.ClassificationResult, error) {
	prompt, err := BuildClassificationPrompt(req)
	if err != nil {
		return types.ClassificationResult{}, err
	}
	text, err := c.provider.Complete(ctx, llm.Request{
		System:      classifierSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   classifierMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return types.ClassificationResult{}, fmt.Errorf("classify: %w", err)
	}
	c.log.Debug("classifier raw output:\n" + text)
	return parseClassification(text)
}

func BuildClassificationPrompt(req types.ClassificationRequest) (string, error) {
	answers, err := json.MarshalIndent(req.Answers, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal answers: %w", err)
	}
	return fmt.Sprintf(classifierPrompt, string(answers), req.Question), nil
}

type Summarizer struct {
	provider llm.Provider
	log      *logger.Logger
}

func NewSummarizer(p llm.Provider, log *logger.Logger) *Summarizer {
	return &Summarizer{provider: p, log: log.With("component", "summarizer").With("provider", p.Name())}
}

func (s *Summarizer) Summarize(ctx context.Context, req types.SummaryRequest) (string, error) {
	text, err := s.provider.Complete(ctx, llm.Request{
		System:      summarizerSystemPrompt,
		Prompt:      BuildSummaryPrompt(req),
		MaxTokens:   summarizerMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return parseSummary(text), nil
}

func BuildSummaryPrompt(req types.SummaryRequest) string {
	return fmt.Sprintf(summarizerPrompt, FormatInputs(req.Answers), req.Question)
}

// FormatInputs wraps each text in numbered <input_text_N> tags.
func FormatInputs(texts []string) string {
	var sb strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&sb, "<input_text_%d>%s</input_text_%d>\n\n", i+1, t, i+1)
	}
	return sb.String()
}
