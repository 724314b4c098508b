package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"voice-answers-go/internal/app"
	"voice-answers-go/internal/artifact"
	"voice-answers-go/internal/config"
	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/types"
)

func newTestServer(t *testing.T) (*httptest.Server, *artifact.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	store := artifact.NewMemoryStore()
	seed := map[string]string{
		"audio/ec2/a1.wav":             "RIFF",
		"audio/ec2/a2.wav":             "RIFF",
		"transcripts/doc/ec2/a1.txt":   "EC2 is virtual servers.",
		"transcripts/doc/ec2/a2.txt":   "I like turtles.",
		"transcripts/doc/ec2/a3.txt":   "Compute capacity in the cloud.",
		"transcripts/doc/other/o1.txt": "Something else.",
	}
	for key, body := range seed {
		if err := store.Put(ctx, artifact.Ref{Scheme: "mem", Bucket: "m", Key: key}, []byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	cfg := &config.Config{}
	cfg.LLM.OffTopicMarkers = []string{"turtles"}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	a, err := app.NewWithComponents(ctx, cfg, logger.Discard(), app.Components{Store: store})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(New(a).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func post(t *testing.T, srv *httptest.Server, path, body string, out any) int {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestDiscover(t *testing.T) {
	srv, _ := newTestServer(t)

	var out types.DiscoveryOutput
	status := post(t, srv, "/stages/discover", `{"documentName":"doc","audioFileFolderUri":"mem://m/audio/ec2/"}`, &out)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	want := types.DiscoveryOutput{
		StatusCode:   200,
		DocumentName: "doc",
		AudioRefs:    []string{"mem://m/audio/ec2/a1.wav", "mem://m/audio/ec2/a2.wav"},
		ServiceName:  "discovery",
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("discover mismatch (-want +got):\n%s", diff)
	}

	var e errorBody
	if status := post(t, srv, "/stages/discover", `{"documentName":"doc","audioFileFolderUri":"mem://m/audio/none/"}`, &e); status != http.StatusNotFound {
		t.Errorf("empty folder status = %d", status)
	}
	if e.ErrorKind != types.KindNoArtifactsFound {
		t.Errorf("errorKind = %q", e.ErrorKind)
	}
}

func TestValidateThenSummarize(t *testing.T) {
	srv, store := newTestServer(t)

	var v types.ValidationOutput
	body := `{"statusCode":200,"documentName":"doc","transcriptRefs":[
		"mem://m/transcripts/doc/ec2/a1.txt","mem://m/transcripts/doc/ec2/a2.txt","mem://m/transcripts/doc/ec2/a3.txt"]}`
	if status := post(t, srv, "/stages/validate", body, &v); status != http.StatusOK {
		t.Fatalf("validate status = %d", status)
	}
	want := types.ValidationOutput{
		StatusCode:      200,
		DocumentName:    "doc",
		OnTopicRefs:     []string{"mem://m/transcripts/doc/ec2/a1.txt", "mem://m/transcripts/doc/ec2/a3.txt"},
		OffTopicRefs:    []string{"mem://m/transcripts/doc/ec2/a2.txt"},
		ShouldSummarize: true,
		ServiceName:     "validation",
	}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Fatalf("validate mismatch (-want +got):\n%s", diff)
	}

	in, _ := json.Marshal(types.SummarizationInput{
		StatusCode:      v.StatusCode,
		DocumentName:    v.DocumentName,
		QuestionText:    "What is EC2?",
		OnTopicRefs:     v.OnTopicRefs,
		OffTopicRefs:    v.OffTopicRefs,
		ShouldSummarize: v.ShouldSummarize,
	})
	var s types.SummarizationOutput
	if status := post(t, srv, "/stages/summarize", string(in), &s); status != http.StatusOK {
		t.Fatalf("summarize status = %d", status)
	}
	if s.StatusCode != 200 || s.SummaryRef != "mem://m/transcripts/doc/ec2/summary/data.txt" {
		t.Errorf("summarize = %+v", s)
	}
	text, err := store.Get(context.Background(), artifact.MustParseRef(s.SummaryRef))
	if err != nil || !strings.Contains(string(text), "EC2 is virtual servers.") {
		t.Errorf("summary = %q, %v", text, err)
	}
}

func TestSummarizeWithoutQuorum(t *testing.T) {
	srv, store := newTestServer(t)
	var s types.SummarizationOutput
	body := `{"statusCode":400,"documentName":"doc","onTopicRefs":["mem://m/transcripts/doc/ec2/a1.txt"],"shouldSummarize":false}`
	if status := post(t, srv, "/stages/summarize", body, &s); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if s.StatusCode != 400 || s.SummaryRef != "" {
		t.Errorf("summarize = %+v", s)
	}
	if _, err := store.Get(context.Background(), artifact.MustParseRef("mem://m/transcripts/doc/ec2/summary/data.txt")); !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("summary written without quorum: %v", err)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t)
	tests := []struct {
		name, path, body string
		wantStatus       int
		wantKind         types.ErrorKind
	}{
		{"malformed json", "/stages/validate", `{`, http.StatusBadRequest, types.KindInvalidInput},
		{"empty body", "/stages/discover", ``, http.StatusBadRequest, types.KindInvalidInput},
		{"mixed questions", "/stages/validate", `{"transcriptRefs":["mem://m/transcripts/doc/ec2/a1.txt","mem://m/transcripts/doc/other/o1.txt"]}`, http.StatusBadRequest, types.KindMixedQuestionInput},
		{"nothing readable", "/stages/validate", `{"transcriptRefs":["mem://m/transcripts/doc/ec2/gone.txt"]}`, http.StatusNotFound, types.KindNoAnswersFound},
		{"no audio", "/stages/transcribe", `{"documentName":"doc","audioRefs":[]}`, http.StatusBadRequest, types.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e errorBody
			if status := post(t, srv, tt.path, tt.body, &e); status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if e.ErrorKind != tt.wantKind {
				t.Errorf("errorKind = %q, want %q", e.ErrorKind, tt.wantKind)
			}
		})
	}

	if got := statusFor(types.NewError(types.KindClassificationExhausted, "x")); got != http.StatusBadGateway {
		t.Errorf("ClassificationExhausted -> %d", got)
	}
	if got := statusFor(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("plain error -> %d", got)
	}
}

func TestRunEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	var run struct {
		State     string                 `json:"state"`
		ErrorKind types.ErrorKind        `json:"errorKind"`
		Output    *types.AssemblyOutput  `json:"output"`
		Questions []types.QuestionReport `json:"questions"`
	}
	status := post(t, srv, "/runs", `{"documentName":"handbook","questions":[{"text":"What is EC2?","folderUri":"mem://m/audio/ec2/"}]}`, &run)
	if status != http.StatusOK || run.State != "completed" || run.Output == nil {
		t.Fatalf("status = %d, run = %+v", status, run)
	}
	if run.Output.DocumentRef != "mem://m/documents/handbook/document.docx" {
		t.Errorf("document ref = %q", run.Output.DocumentRef)
	}

	status = post(t, srv, "/runs", `{"documentName":"handbook","questions":[{"folderUri":"mem://m/audio/none/"}]}`, &run)
	if status != http.StatusNotFound || run.State != "failed" || run.ErrorKind != types.KindNoArtifactsFound {
		t.Errorf("status = %d, run = %+v", status, run)
	}
}
