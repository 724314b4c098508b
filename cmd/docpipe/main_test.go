package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "dev" {
		t.Errorf("version = %q", out)
	}
}

func TestRunLocalFolder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a1.wav", "a2.wav", "a3.wav"} {
		p := filepath.Join(root, "media", "audio", "ec2", name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("RIFF"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfgPath := filepath.Join(root, "docpipe.yaml")
	cfg := fmt.Sprintf("storage:\n  local_root: %q\nlog:\n  level: error\n", root)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("TRANSCRIBE_URL", "")

	out, err := execute(t, "run", "--config", cfgPath, "--document", "handbook",
		"--question", "file://media/audio/ec2/", "--text", "What is EC2?")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "completed status=200") {
		t.Errorf("output = %s", out)
	}
	if _, err := os.Stat(filepath.Join(root, "media", "documents", "handbook", "document.docx")); err != nil {
		t.Errorf("document not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "media", "transcripts", "handbook", "audio", "ec2", "summary", "data.txt")); err != nil {
		t.Errorf("summary not written: %v", err)
	}
}
