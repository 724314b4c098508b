package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"voice-answers-go/internal/types"
)

var runFlags struct {
	document  string
	questions []string
	texts     []string
	jsonOut   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline for one document",
	Example: "  docpipe run --document handbook \\\n" +
		"    --question s3://media/audio/ec2/ --text \"What is EC2?\" \\\n" +
		"    --question s3://media/audio/s3/",
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.document, "document", "", "Document name (required)")
	f.StringArrayVar(&runFlags.questions, "question", nil, "Question folder holding the recorded answers (repeatable)")
	f.StringArrayVar(&runFlags.texts, "text", nil, "Question text, matched to --question by position (optional)")
	f.BoolVar(&runFlags.jsonOut, "json", false, "Print the full run record as JSON")

	_ = runCmd.MarkFlagRequired("document")
	_ = runCmd.MarkFlagRequired("question")
}

func runRun(cmd *cobra.Command, _ []string) error {
	if len(runFlags.texts) > len(runFlags.questions) {
		return fmt.Errorf("%d --text values for %d --question folders", len(runFlags.texts), len(runFlags.questions))
	}
	doc := types.Document{Name: runFlags.document}
	for i, folder := range runFlags.questions {
		q := types.Question{FolderRef: folder}
		if i < len(runFlags.texts) {
			q.Text = runFlags.texts[i]
		}
		doc.Questions = append(doc.Questions, q)
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	run, runErr := a.Controller.Run(cmd.Context(), doc)

	out := cmd.OutOrStdout()
	if runFlags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, run)
		for _, q := range run.Questions {
			fmt.Fprintf(out, "  %-40s on=%d off=%d status=%d summary=%s\n",
				q.Label(), len(q.Outcome.OnTopic), len(q.Outcome.OffTopic), q.Outcome.StatusCode, q.SummaryRef)
		}
	}
	return runErr
}
