// Package manifest reads the workbook that lists documents and the question
// folders whose recorded answers feed them.
package manifest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"voice-answers-go/internal/types"
)

// Load opens the workbook at path. See Parse for the expected layout.
func Load(path string) ([]types.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func LoadReader(r io.Reader) ([]types.Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the first sheet. Columns are detected by header: a document
// column ("document"), a folder column ("folder", "uri", "audio", "path")
// and optional question text and id columns. Rows without a document name or
// folder are skipped. Documents keep the order of their first row.
func Parse(f *excelize.File) ([]types.Document, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	docIdx, folderIdx, textIdx, idIdx := -1, -1, -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "document"):
			if docIdx == -1 {
				docIdx = i
			}
		case strings.Contains(l, "folder") || strings.Contains(l, "uri") || strings.Contains(l, "audio") || strings.Contains(l, "path"):
			if folderIdx == -1 {
				folderIdx = i
			}
		case strings.Contains(l, "question") && strings.Contains(l, "id"), l == "id":
			if idIdx == -1 {
				idIdx = i
			}
		case strings.Contains(l, "question") || strings.Contains(l, "text"):
			if textIdx == -1 {
				textIdx = i
			}
		}
	}
	if docIdx == -1 || folderIdx == -1 {
		return nil, fmt.Errorf("manifest needs a document column and a folder column, got header %q", rows[0])
	}

	var order []string
	byName := map[string]*types.Document{}
	for _, r := range rows[1:] {
		name := cell(r, docIdx)
		folder := cell(r, folderIdx)
		if name == "" || folder == "" {
			continue
		}
		doc, ok := byName[name]
		if !ok {
			doc = &types.Document{Name: name}
			byName[name] = doc
			order = append(order, name)
		}
		doc.Questions = append(doc.Questions, types.Question{
			ID:        cell(r, idIdx),
			Text:      cell(r, textIdx),
			FolderRef: folder,
		})
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("no usable rows")
	}

	out := make([]types.Document, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
