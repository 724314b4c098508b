// Package aggregator computes document level statistics over question reports.
package aggregator

import "voice-answers-go/internal/types"

type QuestionStat struct {
	Question    string  `json:"question"`
	Answers     int     `json:"answers"`
	OnTopic     int     `json:"on_topic"`
	OnTopicRate float64 `json:"on_topic_rate"`
	Summarized  bool    `json:"summarized"`
}

type Insight struct {
	Questions    int            `json:"questions"`
	Summarized   int            `json:"summarized"`
	QuorumFailed int            `json:"quorum_failed"`
	Answers      int            `json:"answers"`
	OnTopic      int            `json:"on_topic"`
	OffTopic     int            `json:"off_topic"`
	PerQuestion  []QuestionStat `json:"per_question"`
}

// OnTopicRate is the share of on-topic answers across the document.
func (in Insight) OnTopicRate() float64 {
	if in.Answers == 0 {
		return 0
	}
	return float64(in.OnTopic) / float64(in.Answers)
}

func Aggregate(reports []types.QuestionReport) Insight {
	in := Insight{Questions: len(reports), PerQuestion: make([]QuestionStat, 0, len(reports))}
	for _, r := range reports {
		on, off := len(r.Outcome.OnTopic), len(r.Outcome.OffTopic)
		st := QuestionStat{
			Question:   r.Label(),
			Answers:    on + off,
			OnTopic:    on,
			Summarized: r.Summarized(),
		}
		if st.Answers > 0 {
			st.OnTopicRate = float64(on) / float64(st.Answers)
		}
		in.PerQuestion = append(in.PerQuestion, st)

		in.Answers += st.Answers
		in.OnTopic += on
		in.OffTopic += off
		if st.Summarized {
			in.Summarized++
		}
		if !r.Outcome.ShouldSummarize {
			in.QuorumFailed++
		}
	}
	return in
}
