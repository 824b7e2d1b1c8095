package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"photoprep/internal/pipeline"
	"photoprep/internal/stagerun"
	"photoprep/internal/textutil"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(out io.Writer, result *pipeline.Result) {
	if result == nil {
		return
	}
	if len(result.Reports) > 0 {
		rows := make([][]string, 0, len(result.Reports))
		for _, report := range result.Reports {
			rows = append(rows, []string{
				textutil.StageLabel(report.Stage),
				report.Folder,
				strconv.Itoa(len(report.Output)),
				strconv.Itoa(len(report.Failures)),
			})
		}
		fmt.Fprintln(out, renderTable([]string{"Stage", "Folder", "Written", "Failed"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
		printFailures(out, result.Reports)
	}
	if result.Exit != nil {
		fmt.Fprintf(out, "Toolchain: %s exited %d after %s\n", filepath.Base(result.Exit.Script), result.Exit.Code, result.Exit.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(out, "Run %s: %d images in %s\n", result.RunID, len(result.Set), result.Folder)
}

func printFailures(out io.Writer, reports []stagerun.Report) {
	for _, report := range reports {
		for _, failure := range report.Failures {
			fmt.Fprintf(out, "  %s skipped %s: %v\n", report.Stage, failure.Path, failure.Err)
		}
	}
}
