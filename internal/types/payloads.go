package types

// --------------------------------------------
// Stage-to-stage payloads. Only references travel between stages.
// --------------------------------------------

type DiscoveryRequest struct {
	DocumentName string `json:"documentName"`
	FolderRef    string `json:"audioFileFolderUri"`
}

type DiscoveryOutput struct {
	StatusCode   int      `json:"statusCode"`
	DocumentName string   `json:"documentName"`
	AudioRefs    []string `json:"audioRefs"`
	ServiceName  string   `json:"serviceName,omitempty"`
}

type TranscriptionOutput struct {
	StatusCode   int          `json:"statusCode"`
	DocumentName string       `json:"documentName"`
	Transcripts  []Transcript `json:"transcripts"`
	ServiceName  string       `json:"serviceName,omitempty"`
}

func (o TranscriptionOutput) TranscriptRefs() []string {
	refs := make([]string, 0, len(o.Transcripts))
	for _, t := range o.Transcripts {
		refs = append(refs, t.TranscriptRef)
	}
	return refs
}

type ValidationInput struct {
	StatusCode     int      `json:"statusCode"`
	DocumentName   string   `json:"documentName"`
	QuestionText   string   `json:"questionText,omitempty"`
	TranscriptRefs []string `json:"transcriptRefs"`
	ServiceName    string   `json:"serviceName,omitempty"`
}

type ValidationOutput struct {
	StatusCode      int      `json:"statusCode"`
	DocumentName    string   `json:"documentName"`
	OnTopicRefs     []string `json:"onTopicRefs"`
	OffTopicRefs    []string `json:"offTopicRefs"`
	ShouldSummarize bool     `json:"shouldSummarize"`
	ServiceName     string   `json:"serviceName,omitempty"`
}

// NewValidationOutput flattens an outcome into its reference-only payload.
func NewValidationOutput(documentName string, o ValidationOutcome) ValidationOutput {
	return ValidationOutput{
		StatusCode:      o.StatusCode,
		DocumentName:    documentName,
		OnTopicRefs:     o.OnTopicRefs(),
		OffTopicRefs:    o.OffTopicRefs(),
		ShouldSummarize: o.ShouldSummarize,
	}
}

type SummarizationInput struct {
	StatusCode      int      `json:"statusCode"`
	DocumentName    string   `json:"documentName"`
	QuestionText    string   `json:"questionText,omitempty"`
	OnTopicRefs     []string `json:"onTopicRefs"`
	OffTopicRefs    []string `json:"offTopicRefs"`
	ShouldSummarize bool     `json:"shouldSummarize"`
	ServiceName     string   `json:"serviceName,omitempty"`
}

type SummarizationOutput struct {
	StatusCode   int    `json:"statusCode"`
	DocumentName string `json:"documentName"`
	SummaryRef   string `json:"summaryRef"`
	ServiceName  string `json:"serviceName,omitempty"`
}

type AssemblyOutput struct {
	StatusCode   int    `json:"statusCode"`
	DocumentName string `json:"documentName"`
	DocumentRef  string `json:"documentRef"`
	ReportRef    string `json:"reportRef"`
}

// FailureNotice is published when a run halts on a fatal stage error.
type FailureNotice struct {
	RunID        string    `json:"runId"`
	Stage        string    `json:"stage"`
	DocumentName string    `json:"documentName"`
	ErrorKind    ErrorKind `json:"errorKind"`
	Message      string    `json:"message"`
	Timestamp    string    `json:"timestamp"`
}
