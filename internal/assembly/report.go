package assembly

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"voice-answers-go/internal/types"
)

const (
	questionsSheet = "Questions"
	answersSheet   = "Answers"
)

// renderReport writes the validation workbook: one row per question on the
// Questions sheet and one row per classified answer on the Answers sheet.
func renderReport(reports []types.QuestionReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", questionsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(answersSheet); err != nil {
		return nil, err
	}

	qRows := [][]any{{"Question", "Folder", "Status Code", "On-topic", "Off-topic", "Summarized", "Summary"}}
	aRows := [][]any{{"Question", "Answer ID", "Verdict", "Transcript", "Audio"}}
	for _, r := range reports {
		o := r.Outcome
		qRows = append(qRows, []any{r.Label(), r.Question.FolderRef, o.StatusCode, len(o.OnTopic), len(o.OffTopic), r.Summarized(), r.SummaryRef})
		for _, group := range [][]types.Answer{o.OnTopic, o.OffTopic} {
			for _, a := range group {
				aRows = append(aRows, []any{r.Label(), a.ID, a.Verdict.String(), a.TranscriptRef, a.SourceAudioRef})
			}
		}
	}
	if err := writeRows(f, questionsSheet, qRows); err != nil {
		return nil, err
	}
	if err := writeRows(f, answersSheet, aRows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
