package extractor

import (
	"context"
	"fmt"
	"strings"

	"voice-answers-go/internal/types"
)

// Mock is a deterministic offline classifier and summarizer, enabled with
// USE_MOCK_LLM=true. Answers containing one of OffTopicMarkers are reported
// off-topic; the summary is the first sentence of each answer.
type Mock struct {
	OffTopicMarkers []string
}

func (m Mock) Classify(_ context.Context, req types.ClassificationRequest) (types.ClassificationResult, error) {
	var off []string
	for _, a := range req.Answers {
		text := strings.ToLower(a.Answer)
		for _, marker := range m.OffTopicMarkers {
			if marker != "" && strings.Contains(text, strings.ToLower(marker)) {
				off = append(off, a.Index)
				break
			}
		}
	}
	if len(off) == 0 {
		off = []string{types.AllOnTopicSentinel}
	}
	return types.ClassificationResult{OffTopicAnswers: off}, nil
}

func (m Mock) Summarize(_ context.Context, req types.SummaryRequest) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", req.Question)
	for _, a := range req.Answers {
		first, _, _ := strings.Cut(strings.TrimSpace(a), ".")
		if first == "" {
			continue
		}
		fmt.Fprintf(&sb, "- %s.\n", first)
	}
	return sb.String(), nil
}
