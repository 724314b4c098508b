// Package notify publishes failure notices for halted pipeline runs.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/types"
)

type Notifier interface {
	Notify(ctx context.Context, n types.FailureNotice) error
}

// Log writes notices to the structured log. It is the fallback when no
// webhook is configured.
type Log struct {
	log *logger.Logger
}

func NewLog(log *logger.Logger) *Log {
	return &Log{log: log.With("component", "notify")}
}

func (l *Log) Notify(_ context.Context, n types.FailureNotice) error {
	l.log.WithFields(map[string]any{
		"run_id":        n.RunID,
		"stage":         n.Stage,
		"document_name": n.DocumentName,
		"error_kind":    n.ErrorKind,
		"timestamp":     n.Timestamp,
	}).Error("pipeline failed: " + n.Message)
	return nil
}

// Webhook POSTs the notice as JSON, retrying transport and 5xx failures.
type Webhook struct {
	url      string
	client   *http.Client
	maxRetry time.Duration
}

func NewWebhook(url string, client *http.Client) (*Webhook, error) {
	if url == "" {
		return nil, errors.New("notify webhook url is empty")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{url: url, client: client, maxRetry: 20 * time.Second}, nil
}

func (w *Webhook) Notify(ctx context.Context, n types.FailureNotice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("webhook server error %d: %s", resp.StatusCode, body)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("webhook rejected notice %d: %s", resp.StatusCode, body))
		}
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = w.maxRetry
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("publish failure notice: %w", err)
	}
	return nil
}

// Multi fans a notice out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n types.FailureNotice) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
