package app

import (
	"context"
	"errors"
	"testing"

	"voice-answers-go/internal/artifact"
	"voice-answers-go/internal/config"
	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/notify"
	"voice-answers-go/internal/pipeline"
	"voice-answers-go/internal/types"
)

func newTestApp(t *testing.T, store artifact.Store) *App {
	t.Helper()
	cfg := &config.Config{}
	cfg.LLM.OffTopicMarkers = []string{"q2/x"}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	a, err := NewWithComponents(context.Background(), cfg, logger.Discard(), Components{Store: store})
	if err != nil {
		t.Fatalf("NewWithComponents: %v", err)
	}
	return a
}

func TestDefaultsAreOffline(t *testing.T) {
	a := newTestApp(t, artifact.NewMemoryStore())
	if _, ok := a.Notifier.(*notify.Log); !ok {
		t.Errorf("notifier = %T, want *notify.Log", a.Notifier)
	}
}

func TestWebhookNotifier(t *testing.T) {
	n, err := newNotifier(config.NotifyConfig{WebhookURL: "http://hooks.local/fail"}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if m, ok := n.(notify.Multi); !ok || len(m) != 2 {
		t.Errorf("notifier = %#v", n)
	}
}

func TestRunDocuments(t *testing.T) {
	ctx := context.Background()
	store := artifact.NewMemoryStore()
	for _, key := range []string{"audio/q1/a.wav", "audio/q1/b.wav", "audio/q2/x.wav", "audio/q2/y.wav", "audio/q2/z.wav"} {
		store.Put(ctx, artifact.Ref{Scheme: "mem", Bucket: "m", Key: key}, []byte("RIFF"))
	}
	a := newTestApp(t, store)

	docs := []types.Document{
		{Name: "one", Questions: []types.Question{{FolderRef: "mem://m/audio/q1/"}, {FolderRef: "mem://m/audio/q2/"}}},
		{Name: "missing", Questions: []types.Question{{FolderRef: "mem://m/audio/none/"}}},
	}
	runs, err := a.RunDocuments(ctx, docs, 2)
	if !errors.Is(err, types.ErrNoArtifactsFound) {
		t.Errorf("err = %v, want NoArtifactsFound from the second document", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d", len(runs))
	}
	if runs[0].State != pipeline.Completed || runs[0].Output.StatusCode != 200 {
		t.Errorf("first run = %s", runs[0])
	}
	if q2 := runs[0].Questions[1]; len(q2.Outcome.OffTopic) != 1 || !q2.Outcome.ShouldSummarize {
		t.Errorf("q2 outcome = %+v", q2.Outcome)
	}
	if runs[1].State != pipeline.Failed || runs[1].FailedStage != pipeline.Discovering {
		t.Errorf("second run = %s", runs[1])
	}
}
