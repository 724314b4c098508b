package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"voice-answers-go/internal/manifest"
	"voice-answers-go/internal/types"
)

var manifestFlags struct {
	parallel int
	only     string
}

var manifestCmd = &cobra.Command{
	Use:   "manifest <workbook.xlsx>",
	Short: "Run the pipeline for every document listed in a workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifest,
}

func init() {
	f := manifestCmd.Flags()
	f.IntVar(&manifestFlags.parallel, "parallel", 1, "Documents processed concurrently")
	f.StringVar(&manifestFlags.only, "document", "", "Process only this document")
}

func runManifest(cmd *cobra.Command, args []string) error {
	docs, err := manifest.Load(args[0])
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	if manifestFlags.only != "" {
		i := slices.IndexFunc(docs, func(d types.Document) bool { return d.Name == manifestFlags.only })
		if i < 0 {
			return fmt.Errorf("document %q not in %s", manifestFlags.only, args[0])
		}
		docs = docs[i : i+1]
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	runs, runErr := a.RunDocuments(cmd.Context(), docs, manifestFlags.parallel)

	out := cmd.OutOrStdout()
	completed := 0
	for _, r := range runs {
		fmt.Fprintln(out, r)
		if r.Error == "" {
			completed++
		}
	}
	fmt.Fprintf(out, "%d/%d documents completed\n", completed, len(runs))
	return runErr
}
