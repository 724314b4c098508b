package assembly

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"voice-answers-go/internal/actionable"
	"voice-answers-go/internal/types"
)

const (
	fontName = "Calibri"
	fontSize = 11
)

// renderDocument builds the summary document: a title, one section per
// question and the review notes.
func renderDocument(documentName string, reports []types.QuestionReport, cards []actionable.ActionCard) ([]byte, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, err
	}

	addRun(doc.AddParagraph(""), documentName, true, 18)
	doc.AddParagraph("")

	for i, r := range reports {
		addRun(doc.AddParagraph(""), fmt.Sprintf("%d. %s", i+1, r.Label()), true, 14)
		if r.Summarized() {
			for _, line := range strings.Split(r.Summary, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					addRun(doc.AddParagraph(""), line, false, fontSize)
				}
			}
		} else {
			addRun(doc.AddParagraph(""), notSummarizedNote(r), false, fontSize)
		}
		doc.AddParagraph("")
	}

	addRun(doc.AddParagraph(""), "Review notes", true, 14)
	for _, c := range cards {
		p := doc.AddParagraph("")
		p.AddText(c.Insight+": ").Font(fontName).Size(fontSize).Color("000000").Bold(true)
		p.AddText(c.Action).Font(fontName).Size(fontSize).Color("000000")
	}

	dir, err := os.MkdirTemp("", "assembly-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "document.docx")
	if err := doc.SaveTo(path); err != nil {
		return nil, fmt.Errorf("save docx: %w", err)
	}
	return os.ReadFile(path)
}

func notSummarizedNote(r types.QuestionReport) string {
	o := r.Outcome
	if !o.ShouldSummarize {
		return fmt.Sprintf("Not summarized: %d of %d answers were on-topic, short of a majority.", len(o.OnTopic), o.Total())
	}
	return "Not summarized: the summary could not be stored."
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
