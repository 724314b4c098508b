// Package answers turns transcript references into Answer values: it groups
// references by question folder and fetches their text.
package answers

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"voice-answers-go/internal/artifact"
	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/types"
)

const DefaultConcurrency = 8

// Group is the set of transcripts that share one question folder.
type Group struct {
	Folder      artifact.Ref
	Transcripts []types.Transcript
	refs        []artifact.Ref
}

// Question returns the question name derived from the folder.
func (g Group) Question() string {
	return g.Folder.Base()
}

// GroupByQuestion indexes transcripts by parent folder in one ordered pass and
// fails with MixedQuestionInputError as soon as a second folder shows up.
func GroupByQuestion(transcripts []types.Transcript) (Group, error) {
	if len(transcripts) == 0 {
		return Group{}, types.NewError(types.KindInvalidInput, "no transcript references supplied")
	}

	var folders []string
	byFolder := map[string]*Group{}
	seenIDs := map[string]string{}

	for _, tr := range transcripts {
		ref, err := artifact.ParseRef(tr.TranscriptRef)
		if err != nil {
			return Group{}, types.WrapError(types.KindInvalidInput, err, "transcript reference")
		}
		if ref.IsFolder() {
			return Group{}, types.NewError(types.KindInvalidInput, "%s is a folder, not a transcript", ref)
		}
		key := ref.Parent().String()
		g, ok := byFolder[key]
		if !ok {
			folders = append(folders, key)
			if len(folders) > 1 {
				return Group{}, types.NewError(types.KindMixedQuestionInput,
					"transcripts come from different questions: %s", strings.Join(folders, ", "))
			}
			g = &Group{Folder: ref.Parent()}
			byFolder[key] = g
		}
		id := ref.Stem()
		if prev, dup := seenIDs[id]; dup {
			return Group{}, types.NewError(types.KindInvalidInput, "answer id %q used by both %s and %s", id, prev, ref)
		}
		seenIDs[id] = ref.String()
		g.Transcripts = append(g.Transcripts, tr)
		g.refs = append(g.refs, ref)
	}
	return *byFolder[folders[0]], nil
}

// Load reads every transcript of the group. Unreadable transcripts are logged
// and skipped; NoAnswersFound is returned only when nothing could be read.
// Reads run concurrently but each one only fills its own slot.
func Load(ctx context.Context, store artifact.Store, g Group, concurrency int, log *logger.Logger) ([]types.Answer, error) {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	slots := make([]*types.Answer, len(g.refs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i := range g.refs {
		eg.Go(func() error {
			ref := g.refs[i]
			b, err := store.Get(egCtx, ref)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.WithError(err).WithField("transcript", ref.String()).Warn("skipping unreadable transcript")
				return nil
			}
			slots[i] = &types.Answer{
				ID:             ref.Stem(),
				SourceAudioRef: g.Transcripts[i].AudioRef,
				TranscriptRef:  ref.String(),
				Text:           string(b),
				Verdict:        types.Unclassified,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([]types.Answer, 0, len(slots))
	for _, a := range slots {
		if a != nil {
			out = append(out, *a)
		}
	}
	if len(out) == 0 {
		return nil, types.NewError(types.KindNoAnswersFound, "no readable transcripts under %s", g.Folder)
	}
	return out, nil
}

// FromRefs wraps bare transcript references.
func FromRefs(refs []string) []types.Transcript {
	out := make([]types.Transcript, 0, len(refs))
	for _, r := range refs {
		out = append(out, types.Transcript{TranscriptRef: r})
	}
	return out
}
