package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Service converts one audio artifact into transcript text.
type Service interface {
	Transcribe(ctx context.Context, audioRef string) (string, error)
}

type PublishSuccessResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		MediaId          string `json:"MediaId"`
		Status           string `json:"Status"`
		LanguageId       int    `json:"LanguageId"`
		TranscriptionURL string `json:"TranscriptionURL"`
		WordsCount       int    `json:"WordsCount"`
	} `json:"Data"`
	Reason   string `json:"Reason,omitempty"`
	UniqueId string `json:"UniqueId,omitempty"`
}

type StatusResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		AudioURL             string `json:"AudioURL"`
		LanguageId           int    `json:"LanguageId"`
		Status               string `json:"Status"` // Success, Queued, Processing, Failed
		TranscriptionTextURL string `json:"TranscriptionTextURL"`
		WordsCount           int    `json:"WordsCount"`
	} `json:"Data"`
	Reason   string `json:"Reason,omitempty"`
	UniqueId string `json:"UniqueId,omitempty"`
}

// HTTPService drives a publish / poll / download transcription API.
type HTTPService struct {
	host         string
	client       *http.Client
	pollInterval time.Duration
	pollAttempts int
	requestRetry time.Duration
}

type HTTPOption func(*HTTPService)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPService) { s.client = c }
}

func WithPolling(interval time.Duration, attempts int) HTTPOption {
	return func(s *HTTPService) {
		if interval > 0 {
			s.pollInterval = interval
		}
		if attempts > 0 {
			s.pollAttempts = attempts
		}
	}
}

// WithRequestRetry bounds the time spent retrying one API request.
func WithRequestRetry(d time.Duration) HTTPOption {
	return func(s *HTTPService) { s.requestRetry = d }
}

func NewHTTPService(host string, opts ...HTTPOption) (*HTTPService, error) {
	if host == "" {
		return nil, errors.New("TRANSCRIBE_URL not set")
	}
	s := &HTTPService{
		host:         strings.TrimRight(host, "/"),
		client:       &http.Client{Timeout: 12 * time.Second},
		pollInterval: 1500 * time.Millisecond,
		pollAttempts: 40,
		requestRetry: 12 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *HTTPService) Transcribe(ctx context.Context, audioRef string) (string, error) {
	mediaID, existingURL, err := s.publish(ctx, audioRef)
	if err != nil {
		return "", err
	}
	if existingURL != "" {
		return s.download(ctx, existingURL)
	}
	finalURL, err := s.poll(ctx, mediaID)
	if err != nil {
		return "", err
	}
	return s.download(ctx, finalURL)
}

func (s *HTTPService) publish(ctx context.Context, audioRef string) (string, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	w.WriteField("callRecordingLink", audioRef)
	w.WriteField("callType", "PNS")
	_ = w.Close()
	body := b.Bytes()

	var resp PublishSuccessResponse
	err := s.doJSON(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+"/transcribe", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	}, &resp)
	if err != nil {
		return "", "", err
	}
	if resp.Code != 200 {
		return "", "", fmt.Errorf("transcribe publish error: code=%d reason=%s", resp.Code, resp.Reason)
	}
	if resp.Data.TranscriptionURL != "" && strings.ToLower(resp.Data.Status) == "success" {
		return "", resp.Data.TranscriptionURL, nil
	}
	if resp.Data.MediaId == "" {
		return "", "", errors.New("transcribe publish returned no media id")
	}
	return resp.Data.MediaId, "", nil
}

func (s *HTTPService) poll(ctx context.Context, mediaID string) (string, error) {
	u, err := url.Parse(s.host + "/getstatus")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("mediaId", mediaID)
	u.RawQuery = q.Encode()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for i := 0; i < s.pollAttempts; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		var st StatusResponse
		err := s.doJSON(ctx, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		}, &st)
		if err != nil {
			continue
		}
		switch st.Data.Status {
		case "Success":
			return st.Data.TranscriptionTextURL, nil
		case "Queued", "Processing":
			continue
		case "Failed":
			return "", fmt.Errorf("transcription failed: %s", st.Reason)
		}
	}
	return "", fmt.Errorf("transcription timeout for media %s", mediaID)
}

func (s *HTTPService) download(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("download failed: %s", string(b))
	}
	return string(b), nil
}

// doJSON retries server errors and undecodable bodies; 4xx answers are permanent.
func (s *HTTPService) doJSON(ctx context.Context, newReq func() (*http.Request, error), target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.requestRetry
	op := func() error {
		req, err := newReq()
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error: %s", string(body))
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("client error %d: %s", resp.StatusCode, string(body)))
		}
		if len(body) == 0 {
			return fmt.Errorf("empty body")
		}
		if err := json.Unmarshal(body, target); err != nil {
			return fmt.Errorf("json decode error: %v body=%s", err, string(body))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

// Mock returns a canned transcript naming the audio artifact.
type Mock struct{}

func (Mock) Transcribe(_ context.Context, audioRef string) (string, error) {
	return "MOCK TRANSCRIPT: spoken answer recorded in " + audioRef, nil
}
