// Package httpapi exposes the pipeline and each stage over HTTP. Stage
// endpoints take and return the reference-only payloads, so an external
// orchestrator can drive the stages one by one.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"voice-answers-go/internal/app"
	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/types"
)

const maxBody = 1 << 20

type Server struct {
	app *app.App
	log *logger.Logger
}

func New(a *app.App) *Server {
	return &Server{app: a, log: a.Log.With("component", "http")}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("POST /runs", s.run)
	mux.HandleFunc("POST /stages/discover", s.discover)
	mux.HandleFunc("POST /stages/transcribe", s.transcribe)
	mux.HandleFunc("POST /stages/validate", s.validate)
	mux.HandleFunc("POST /stages/summarize", s.summarize)
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.log.WithRequest(r).Debug("health check")
	fmt.Fprint(w, "ok")
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).With("handler", "run")
	var doc types.Document
	if !decode(w, r, reqLog, &doc) {
		return
	}
	reqLog = reqLog.With("document_name", doc.Name)
	reqLog.WithField("questions", len(doc.Questions)).Info("run request received")

	start := time.Now()
	run, err := s.app.Controller.Run(r.Context(), doc)
	reqLog = reqLog.With("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		reqLog.WithError(err).Warn("run failed")
		writeJSON(w, reqLog, statusFor(err), run)
		return
	}
	reqLog.WithField("run_id", run.ID).Info("run finished")
	writeJSON(w, reqLog, http.StatusOK, run)
}

func (s *Server) discover(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).With("handler", "discover")
	var in types.DiscoveryRequest
	if !decode(w, r, reqLog, &in) {
		return
	}
	out, err := s.app.Discovery.Discover(r.Context(), in.FolderRef, in.DocumentName)
	if err != nil {
		writeError(w, reqLog, err)
		return
	}
	out.ServiceName = "discovery"
	writeJSON(w, reqLog, http.StatusOK, out)
}

func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).With("handler", "transcribe")
	var in types.DiscoveryOutput
	if !decode(w, r, reqLog, &in) {
		return
	}
	out, err := s.app.Transcription.Transcribe(r.Context(), in.DocumentName, in.AudioRefs)
	if err != nil {
		writeError(w, reqLog, err)
		return
	}
	out.ServiceName = "transcription"
	writeJSON(w, reqLog, http.StatusOK, out)
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).With("handler", "validate")
	var in types.ValidationInput
	if !decode(w, r, reqLog, &in) {
		return
	}
	outcome, err := s.app.Validation.Validate(r.Context(), types.Question{Text: in.QuestionText}, in.TranscriptRefs)
	if err != nil {
		writeError(w, reqLog, err)
		return
	}
	out := types.NewValidationOutput(in.DocumentName, outcome)
	out.ServiceName = "validation"
	writeJSON(w, reqLog, http.StatusOK, out)
}

// summarize passes a quorum failure through as statusCode 400 without
// calling the summarizer.
func (s *Server) summarize(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).With("handler", "summarize")
	var in types.SummarizationInput
	if !decode(w, r, reqLog, &in) {
		return
	}
	out := types.SummarizationOutput{
		StatusCode:   http.StatusBadRequest,
		DocumentName: in.DocumentName,
		ServiceName:  "summarization",
	}
	if !in.ShouldSummarize {
		reqLog.Info("quorum not reached, nothing to summarize")
		writeJSON(w, reqLog, http.StatusOK, out)
		return
	}
	res, err := s.app.Summarization.SummarizeRefs(r.Context(), types.Question{Text: in.QuestionText}, in.OnTopicRefs)
	if err != nil {
		writeError(w, reqLog, err)
		return
	}
	out.StatusCode, out.SummaryRef = res.StatusCode, res.SummaryRef
	writeJSON(w, reqLog, http.StatusOK, out)
}

type errorBody struct {
	ErrorKind types.ErrorKind `json:"errorKind"`
	Error     string          `json:"error"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch types.KindOf(err) {
	case types.KindInvalidInput, types.KindMixedQuestionInput:
		return http.StatusBadRequest
	case types.KindNoArtifactsFound, types.KindNoAnswersFound:
		return http.StatusNotFound
	case types.KindClassificationExhausted, types.KindSummarizationFailed,
		types.KindTranscriptionFailed, types.KindAssemblyFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, reqLog *logger.Logger, err error) {
	status := statusFor(err)
	entry := reqLog.WithError(err).WithField("status", status)
	if status >= 500 {
		entry.Error("stage failed")
	} else {
		entry.Warn("stage rejected request")
	}
	writeJSON(w, reqLog, status, errorBody{ErrorKind: types.KindOf(err), Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, reqLog *logger.Logger, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v)
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) {
		err = errors.New("empty request body")
	}
	writeError(w, reqLog, types.WrapError(types.KindInvalidInput, err, "decode request"))
	return false
}

func writeJSON(w http.ResponseWriter, reqLog *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		reqLog.WithError(err).Error("failed to write response")
	}
}
