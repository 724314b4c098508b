// Package transcription turns discovered audio artifacts into transcript
// artifacts laid out one folder per question.
package transcription

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"voice-answers-go/internal/artifact"
	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/types"
)

const DefaultConcurrency = 4

type Stage struct {
	store        artifact.Store
	service      Service
	log          *logger.Logger
	outputPrefix string
	concurrency  int
}

type Option func(*Stage)

// WithOutputPrefix sets the folder transcripts are written under. By default
// it is the "transcripts" folder of the audio bucket.
func WithOutputPrefix(prefix string) Option {
	return func(s *Stage) { s.outputPrefix = strings.TrimSpace(prefix) }
}

func WithConcurrency(n int) Option {
	return func(s *Stage) { s.concurrency = n }
}

func New(store artifact.Store, service Service, log *logger.Logger, opts ...Option) *Stage {
	s := &Stage{
		store:       store,
		service:     service,
		log:         log.WithStage("transcription"),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = DefaultConcurrency
	}
	return s
}

// TranscriptRef derives where the transcript of audio is stored:
// <prefix>/<documentName>/<question folder key>/<answer id>.txt. The full
// folder key is kept so questions in different folders never share a
// transcript folder, even when their last segments match.
func (s *Stage) TranscriptRef(documentName string, audio artifact.Ref) (artifact.Ref, error) {
	prefix := artifact.Ref{Scheme: audio.Scheme, Bucket: audio.Bucket, Key: "transcripts/"}
	if s.outputPrefix != "" {
		p, err := artifact.ParseRef(s.outputPrefix)
		if err != nil {
			return artifact.Ref{}, err
		}
		prefix = p
	}
	return prefix.Join(documentName, audio.Parent().Key, audio.Stem()+".txt"), nil
}

// Transcribe runs one transcription job per audio artifact. Failed jobs are
// logged and left out; TranscriptionFailed is returned when none succeeded.
// The output keeps the order of audioRefs.
func (s *Stage) Transcribe(ctx context.Context, documentName string, audioRefs []string) (types.TranscriptionOutput, error) {
	log := s.log.With("document_name", documentName)
	if strings.TrimSpace(documentName) == "" {
		return types.TranscriptionOutput{}, types.NewError(types.KindInvalidInput, "documentName is required")
	}
	if len(audioRefs) == 0 {
		return types.TranscriptionOutput{}, types.NewError(types.KindInvalidInput, "no audio references supplied")
	}

	type job struct {
		audio  artifact.Ref
		target artifact.Ref
	}
	jobs := make([]job, 0, len(audioRefs))
	claimed := make(map[artifact.Ref]artifact.Ref, len(audioRefs))
	for _, raw := range audioRefs {
		audio, err := artifact.ParseRef(raw)
		if err != nil {
			return types.TranscriptionOutput{}, types.WrapError(types.KindInvalidInput, err, "audio reference")
		}
		target, err := s.TranscriptRef(documentName, audio)
		if err != nil {
			return types.TranscriptionOutput{}, types.WrapError(types.KindInvalidInput, err, "transcript output prefix")
		}
		if prev, ok := claimed[target]; ok {
			return types.TranscriptionOutput{}, types.NewError(types.KindInvalidInput,
				"%s and %s both map to transcript %s", prev, audio, target)
		}
		claimed[target] = audio
		jobs = append(jobs, job{audio: audio, target: target})
	}

	log.WithField("count", len(jobs)).Info("starting transcription jobs")
	slots := make([]*types.Transcript, len(jobs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)
	for i, j := range jobs {
		eg.Go(func() error {
			jl := log.With("audio", j.audio.String())
			text, err := s.service.Transcribe(egCtx, j.audio.String())
			if err == nil {
				err = s.store.Put(egCtx, j.target, []byte(text))
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				jl.WithError(err).Warn("transcription job failed, skipping")
				return nil
			}
			jl.WithField("transcript", j.target.String()).Debug("transcript stored")
			slots[i] = &types.Transcript{AudioRef: j.audio.String(), TranscriptRef: j.target.String()}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return types.TranscriptionOutput{}, err
	}

	out := types.TranscriptionOutput{StatusCode: http.StatusOK, DocumentName: documentName}
	for _, t := range slots {
		if t != nil {
			out.Transcripts = append(out.Transcripts, *t)
		}
	}
	if len(out.Transcripts) == 0 {
		log.Error("no transcripts produced")
		return types.TranscriptionOutput{}, types.NewError(types.KindTranscriptionFailed, "none of %d audio files could be transcribed", len(jobs))
	}
	log.WithFields(map[string]any{"produced": len(out.Transcripts), "failed": len(jobs) - len(out.Transcripts)}).Info("transcription finished")
	return out, nil
}
