package types

import "fmt"

// Verdict is the relevance decision for a single answer.
type Verdict int

const (
	Unclassified Verdict = iota
	OnTopic
	OffTopic
)

func (v Verdict) String() string {
	switch v {
	case OnTopic:
		return "on_topic"
	case OffTopic:
		return "off_topic"
	default:
		return "unclassified"
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(b []byte) error {
	switch string(b) {
	case "on_topic":
		*v = OnTopic
	case "off_topic":
		*v = OffTopic
	case "unclassified", "":
		*v = Unclassified
	default:
		return fmt.Errorf("unknown verdict %q", string(b))
	}
	return nil
}

type Document struct {
	Name      string     `json:"documentName"`
	Questions []Question `json:"questions"`
}

// Question is one prompt of a document. FolderRef is the folder holding the
// recorded answers; every answer of the question lives directly under it.
type Question struct {
	ID        string `json:"id,omitempty"`
	Text      string `json:"text,omitempty"`
	FolderRef string `json:"folderUri"`
}

type Answer struct {
	ID             string  `json:"id"`
	SourceAudioRef string  `json:"sourceAudioUri,omitempty"`
	TranscriptRef  string  `json:"transcriptUri"`
	Text           string  `json:"-"`
	Verdict        Verdict `json:"verdict"`
}

// Transcript links an audio artifact to the text artifact produced from it.
type Transcript struct {
	AudioRef      string `json:"audioUri"`
	TranscriptRef string `json:"transcriptUri"`
}

// ValidationOutcome is produced once per question and never modified afterwards.
type ValidationOutcome struct {
	Question        string   `json:"question"`
	OnTopic         []Answer `json:"onTopicAnswers"`
	OffTopic        []Answer `json:"offTopicAnswers"`
	ShouldSummarize bool     `json:"shouldSummarize"`
	StatusCode      int      `json:"statusCode"`
}

func (o ValidationOutcome) OnTopicRefs() []string {
	return answerRefs(o.OnTopic)
}

func (o ValidationOutcome) OffTopicRefs() []string {
	return answerRefs(o.OffTopic)
}

func (o ValidationOutcome) Total() int {
	return len(o.OnTopic) + len(o.OffTopic)
}

func answerRefs(answers []Answer) []string {
	refs := make([]string, 0, len(answers))
	for _, a := range answers {
		refs = append(refs, a.TranscriptRef)
	}
	return refs
}

// IndexedAnswer is one entry of a classification request.
type IndexedAnswer struct {
	Index  string `json:"index"`
	Answer string `json:"answer"`
}

type ClassificationRequest struct {
	Question string          `json:"question"`
	Answers  []IndexedAnswer `json:"answers"`
}

// ClassificationResult lists off-topic indices. Both ["-1"] and an empty list
// mean no answer was judged off-topic.
type ClassificationResult struct {
	OffTopicAnswers []string `json:"off_topic_answers"`
}

// AllOnTopicSentinel is the index the classifier returns when nothing is off-topic.
const AllOnTopicSentinel = "-1"

type SummaryRequest struct {
	Question string   `json:"question"`
	Answers  []string `json:"answers"`
}

// QuestionReport collects what one run learned about a question. It is the
// input of document assembly.
type QuestionReport struct {
	Question      Question          `json:"question"`
	Transcripts   []Transcript      `json:"transcripts,omitempty"`
	Outcome       ValidationOutcome `json:"outcome"`
	SummaryRef    string            `json:"summaryRef,omitempty"`
	SummaryStatus int               `json:"summaryStatus,omitempty"`
	Summary       string            `json:"-"`
}

// Label is the human readable question: its text, the question the
// validation stage derived, or the folder reference as a last resort.
func (r QuestionReport) Label() string {
	switch {
	case r.Question.Text != "":
		return r.Question.Text
	case r.Outcome.Question != "":
		return r.Outcome.Question
	default:
		return r.Question.FolderRef
	}
}

func (r QuestionReport) Summarized() bool {
	return r.SummaryStatus == 200 && r.SummaryRef != ""
}
