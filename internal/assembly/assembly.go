// Package assembly produces the final artifacts of a run: the summary
// document (docx) and the validation report (xlsx).
package assembly

import (
	"context"
	"net/http"
	"strings"

	"voice-answers-go/internal/actionable"
	"voice-answers-go/internal/aggregator"
	"voice-answers-go/internal/artifact"
	"voice-answers-go/internal/logger"
	"voice-answers-go/internal/types"
)

const (
	DocumentFile = "document.docx"
	ReportFile   = "report.xlsx"
)

type Stage struct {
	store        artifact.Store
	log          *logger.Logger
	outputPrefix string
}

// New returns an assembly stage writing under outputPrefix. An empty prefix
// means the "documents" folder of the first question's bucket.
func New(store artifact.Store, log *logger.Logger, outputPrefix string) *Stage {
	return &Stage{store: store, log: log.WithStage("assembly"), outputPrefix: strings.TrimSpace(outputPrefix)}
}

// Assemble renders and stores both artifacts. Status is 200 when every
// question was summarized and 400 otherwise; quorum failures are not errors.
func (s *Stage) Assemble(ctx context.Context, documentName string, reports []types.QuestionReport) (types.AssemblyOutput, error) {
	log := s.log.With("document_name", documentName)
	if strings.TrimSpace(documentName) == "" {
		return types.AssemblyOutput{}, types.NewError(types.KindInvalidInput, "documentName is required")
	}
	if len(reports) == 0 {
		return types.AssemblyOutput{}, types.NewError(types.KindInvalidInput, "no questions to assemble")
	}

	folder, err := s.folder(documentName, reports)
	if err != nil {
		return types.AssemblyOutput{}, err
	}

	filled := make([]types.QuestionReport, len(reports))
	copy(filled, reports)
	for i := range filled {
		if err := s.loadSummary(ctx, &filled[i]); err != nil {
			return types.AssemblyOutput{}, err
		}
	}

	ins := aggregator.Aggregate(filled)
	cards := actionable.Generate(ins)

	docBytes, err := renderDocument(documentName, filled, cards)
	if err != nil {
		return types.AssemblyOutput{}, types.WrapError(types.KindAssemblyFailed, err, "render document")
	}
	reportBytes, err := renderReport(filled)
	if err != nil {
		return types.AssemblyOutput{}, types.WrapError(types.KindAssemblyFailed, err, "render report")
	}

	docRef, reportRef := folder.Join(DocumentFile), folder.Join(ReportFile)
	if err := s.store.Put(ctx, docRef, docBytes); err != nil {
		return types.AssemblyOutput{}, types.WrapError(types.KindAssemblyFailed, err, "store %s", docRef)
	}
	if err := s.store.Put(ctx, reportRef, reportBytes); err != nil {
		return types.AssemblyOutput{}, types.WrapError(types.KindAssemblyFailed, err, "store %s", reportRef)
	}

	status := http.StatusOK
	if ins.Summarized < ins.Questions {
		status = http.StatusBadRequest
	}
	log.WithFields(map[string]any{
		"questions":     ins.Questions,
		"summarized":    ins.Summarized,
		"quorum_failed": ins.QuorumFailed,
		"status_code":   status,
		"document":      docRef.String(),
	}).Info("document assembled")

	return types.AssemblyOutput{
		StatusCode:   status,
		DocumentName: documentName,
		DocumentRef:  docRef.String(),
		ReportRef:    reportRef.String(),
	}, nil
}

func (s *Stage) folder(documentName string, reports []types.QuestionReport) (artifact.Ref, error) {
	if s.outputPrefix != "" {
		p, err := artifact.ParseRef(s.outputPrefix)
		if err != nil {
			return artifact.Ref{}, types.WrapError(types.KindInvalidInput, err, "assembly output prefix")
		}
		return p.Join(documentName), nil
	}
	q, err := artifact.ParseRef(reports[0].Question.FolderRef)
	if err != nil {
		return artifact.Ref{}, types.WrapError(types.KindInvalidInput, err, "question folder reference")
	}
	return artifact.Ref{Scheme: q.Scheme, Bucket: q.Bucket, Key: "documents"}.Join(documentName), nil
}

// loadSummary reads the summary text of a summarized question when the
// caller only passed its reference.
func (s *Stage) loadSummary(ctx context.Context, r *types.QuestionReport) error {
	if !r.Summarized() || r.Summary != "" {
		return nil
	}
	ref, err := artifact.ParseRef(r.SummaryRef)
	if err != nil {
		return types.WrapError(types.KindInvalidInput, err, "summary reference")
	}
	b, err := s.store.Get(ctx, ref)
	if err != nil {
		return types.WrapError(types.KindAssemblyFailed, err, "read summary %s", ref)
	}
	r.Summary = string(b)
	return nil
}
