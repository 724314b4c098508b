// Package actionable turns document statistics into review notes for the
// people who own the questionnaire.
package actionable

import (
	"fmt"

	"voice-answers-go/internal/aggregator"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// lowRelevance is the on-topic share under which a summarized question still
// gets a review note.
const lowRelevance = 0.65

// Generate returns one card per question that needs attention, in question
// order, or a single all-clear card.
func Generate(ins aggregator.Insight) []ActionCard {
	var cards []ActionCard
	for _, q := range ins.PerQuestion {
		switch {
		case q.Answers == 0:
			cards = append(cards, ActionCard{
				Insight: fmt.Sprintf("No usable answers for %q", q.Question),
				Action:  "Check the recordings folder and the transcription output",
				Impact:  "Question missing from the document",
			})
		case !q.Summarized && q.OnTopicRate <= 0.5:
			cards = append(cards, ActionCard{
				Insight: fmt.Sprintf("Only %d of %d answers to %q are on-topic (%.0f%%)", q.OnTopic, q.Answers, q.Question, q.OnTopicRate*100),
				Action:  "Review the question wording and collect new recordings",
				Impact:  "Question left out of the summary document",
			})
		case !q.Summarized:
			cards = append(cards, ActionCard{
				Insight: fmt.Sprintf("Summary for %q was not stored", q.Question),
				Action:  "Re-run the document once storage is reachable",
				Impact:  "Question left out of the summary document",
			})
		case q.OnTopicRate < lowRelevance:
			cards = append(cards, ActionCard{
				Insight: fmt.Sprintf("%.0f%% of answers to %q are on-topic", q.OnTopicRate*100, q.Question),
				Action:  "Spot-check the off-topic answers before publishing",
				Impact:  "Summary rests on a narrow majority",
			})
		}
	}
	if len(cards) == 0 {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("All %d questions reached quorum", ins.Questions),
			Action:  "No action needed",
			Impact:  "Document complete",
		})
	}
	return cards
}
