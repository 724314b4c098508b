// Package app builds the stage graph from configuration. Both binaries use it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"voice-answers-go/internal/artifact"
	"voice-answers-go/internal/assembly"
	"voice-answers-go/internal/config"
	"voice-answers-go/internal/discovery"
	"voice-answers-go/internal/extractor"
	"voice-answers-go/internal/llm"
	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/notify"
	"voice-answers-go/internal/pipeline"
	"voice-answers-go/internal/retry"
	"voice-answers-go/internal/summarization"
	"voice-answers-go/internal/transcription"
	"voice-answers-go/internal/types"
	"voice-answers-go/internal/validation"
)

// Version is overridden at build time with -ldflags "-X ...app.Version=...".
var Version = "dev"

type App struct {
	Config *config.Config
	Log    *logger.Logger
	Store  artifact.Store

	Discovery     *discovery.Stage
	Transcription *transcription.Stage
	Validation    *validation.Stage
	Summarization *summarization.Stage
	Assembly      *assembly.Stage
	Notifier      notify.Notifier
	Controller    *pipeline.Controller
}

// Components lets callers (tests, alternative entry points) replace the
// collaborators New would otherwise build from cfg.
type Components struct {
	Store       artifact.Store
	Transcriber transcription.Service
	Classifier  validation.Classifier
	Summarizer  summarization.Summarizer
	Notifier    notify.Notifier
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	return NewWithComponents(ctx, cfg, log, Components{})
}

func NewWithComponents(ctx context.Context, cfg *config.Config, log *logger.Logger, c Components) (*App, error) {
	var err error
	if c.Store == nil {
		if c.Store, err = newStore(ctx, cfg.Storage); err != nil {
			return nil, err
		}
	}
	if c.Transcriber == nil {
		if c.Transcriber, err = newTranscriber(cfg.Transcription); err != nil {
			return nil, err
		}
	}
	if c.Classifier == nil || c.Summarizer == nil {
		classifier, summarizer, err := newModels(ctx, cfg.LLM, log)
		if err != nil {
			return nil, err
		}
		if c.Classifier == nil {
			c.Classifier = classifier
		}
		if c.Summarizer == nil {
			c.Summarizer = summarizer
		}
	}
	if c.Notifier == nil {
		if c.Notifier, err = newNotifier(cfg.Notify, log); err != nil {
			return nil, err
		}
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Store:    c.Store,
		Notifier: c.Notifier,

		Discovery: discovery.New(c.Store, log, cfg.Transcription.Extensions...),
		Transcription: transcription.New(c.Store, c.Transcriber, log,
			transcription.WithOutputPrefix(cfg.Transcription.OutputPrefix),
			transcription.WithConcurrency(cfg.Transcription.Concurrency),
		),
		Validation: validation.New(c.Store, c.Classifier, log,
			validation.WithPolicy(retry.Policy{
				MaxAttempts: cfg.Validation.MaxAttempts,
				BaseDelay:   cfg.Validation.BaseDelay.Std(),
			}),
			validation.WithReadConcurrency(cfg.Validation.ReadConcurrency),
		),
		Summarization: summarization.New(c.Store, c.Summarizer, log,
			summarization.WithFileName(cfg.Summarization.FileName),
			summarization.WithReadConcurrency(cfg.Validation.ReadConcurrency),
		),
		Assembly: assembly.New(c.Store, log, cfg.Assembly.OutputPrefix),
	}
	a.Controller = pipeline.New(pipeline.Stages{
		Discovery:     a.Discovery,
		Transcription: a.Transcription,
		Validation:    a.Validation,
		Summarization: a.Summarization,
		Assembly:      a.Assembly,
	}, a.Notifier, log)

	log.WithFields(map[string]any{
		"transcription": cfg.Transcription.Mode,
		"llm_provider":  cfg.LLM.Provider,
		"max_attempts":  cfg.Validation.MaxAttempts,
		"base_delay":    cfg.Validation.BaseDelay.Std().String(),
	}).Info("pipeline configured")
	return a, nil
}

// RunDocuments runs one pipeline per document with at most parallel runs in
// flight. A failed run does not stop the others; the joined errors are
// returned alongside every run record, in input order.
func (a *App) RunDocuments(ctx context.Context, docs []types.Document, parallel int) ([]*pipeline.Run, error) {
	if parallel < 1 {
		parallel = 1
	}
	runs := make([]*pipeline.Run, len(docs))
	errs := make([]error, len(docs))

	var eg errgroup.Group
	eg.SetLimit(parallel)
	for i, d := range docs {
		eg.Go(func() error {
			runs[i], errs[i] = a.Controller.Run(ctx, d)
			if errs[i] != nil {
				errs[i] = fmt.Errorf("document %q: %w", d.Name, errs[i])
			}
			return nil
		})
	}
	eg.Wait()
	return runs, errors.Join(errs...)
}

func newStore(ctx context.Context, cfg config.StorageConfig) (artifact.Store, error) {
	s3, err := artifact.NewS3Store(ctx, artifact.S3Options{
		Region:         cfg.S3.Region,
		Endpoint:       cfg.S3.Endpoint,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		return nil, err
	}
	root := cfg.LocalRoot
	if root == "" {
		root = "."
	}
	return artifact.NewMux().
		Handle("s3", s3).
		Handle("file", artifact.NewLocalStore(root)).
		Handle("mem", artifact.NewMemoryStore()), nil
}

func newTranscriber(cfg config.TranscriptionConfig) (transcription.Service, error) {
	if cfg.Mode == "mock" {
		return transcription.Mock{}, nil
	}
	return transcription.NewHTTPService(cfg.URL,
		transcription.WithPolling(cfg.PollInterval.Std(), cfg.PollAttempts),
	)
}

func newModels(ctx context.Context, cfg config.LLMConfig, log *logger.Logger) (validation.Classifier, summarization.Summarizer, error) {
	if cfg.Provider == "mock" {
		m := extractor.Mock{OffTopicMarkers: cfg.OffTopicMarkers}
		return m, m, nil
	}
	p, err := llm.New(ctx, llm.Config{
		Provider: cfg.Provider,
		URL:      cfg.URL,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Timeout:  cfg.Timeout.Std(),
	})
	if err != nil {
		return nil, nil, err
	}
	return extractor.NewClassifier(p, log), extractor.NewSummarizer(p, log), nil
}

func newNotifier(cfg config.NotifyConfig, log *logger.Logger) (notify.Notifier, error) {
	logNotifier := notify.NewLog(log)
	if cfg.WebhookURL == "" {
		return logNotifier, nil
	}
	hook, err := notify.NewWebhook(cfg.WebhookURL, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return nil, err
	}
	return notify.Multi{logNotifier, hook}, nil
}
