// Package discovery enumerates the recorded answers stored under a question folder.
package discovery

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"voice-answers-go/internal/artifact"
	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/types"
)

type Stage struct {
	store      artifact.Store
	log        *logger.Logger
	extensions map[string]bool
}

// New returns a discovery stage. When extensions is non-empty only objects
// with one of those extensions (".wav", ".mp3", ...) count as audio.
func New(store artifact.Store, log *logger.Logger, extensions ...string) *Stage {
	ext := map[string]bool{}
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		ext[e] = true
	}
	return &Stage{store: store, log: log.WithStage("discovery"), extensions: ext}
}

// Discover lists the audio references under folderRef. An empty folder is a
// definitive NoArtifactsFound, never retried.
func (s *Stage) Discover(ctx context.Context, folderRef, documentName string) (types.DiscoveryOutput, error) {
	log := s.log.With("document_name", documentName).With("folder", folderRef)

	if strings.TrimSpace(documentName) == "" {
		return types.DiscoveryOutput{}, types.NewError(types.KindInvalidInput, "documentName is required")
	}
	if strings.TrimSpace(folderRef) == "" {
		return types.DiscoveryOutput{}, types.NewError(types.KindInvalidInput, "audio folder reference is required")
	}
	folder, err := artifact.ParseRef(folderRef)
	if err != nil {
		return types.DiscoveryOutput{}, types.WrapError(types.KindInvalidInput, err, "audio folder reference")
	}
	folder = folder.AsFolder()

	log.Info("listing audio artifacts")
	refs, err := s.store.List(ctx, folder)
	if err != nil {
		log.WithError(err).Error("listing failed")
		return types.DiscoveryOutput{}, fmt.Errorf("list %s: %w", folder, err)
	}

	// Only direct children of the folder are answers to this question.
	var audio []string
	for _, r := range refs {
		if r.IsFolder() || !s.accepts(r) {
			continue
		}
		if strings.Contains(strings.TrimPrefix(r.Key, folder.Key), "/") {
			log.WithField("ref", r.String()).Debug("skipping nested artifact")
			continue
		}
		audio = append(audio, r.String())
	}
	if len(audio) == 0 {
		log.Warn("no audio artifacts found")
		return types.DiscoveryOutput{}, types.NewError(types.KindNoArtifactsFound, "no audio files under %s", folder)
	}

	log.WithField("count", len(audio)).Info("audio artifacts discovered")
	return types.DiscoveryOutput{
		StatusCode:   http.StatusOK,
		DocumentName: documentName,
		AudioRefs:    audio,
	}, nil
}

func (s *Stage) accepts(r artifact.Ref) bool {
	if len(s.extensions) == 0 {
		return true
	}
	return s.extensions[strings.ToLower(path.Ext(r.Key))]
}
