package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"photoprep/internal/provenance"
	"photoprep/internal/textutil"
)

const historyTimeLayout = "2006-01-02 15:04:05"

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, cmd, func(store *provenance.Store) error {
				runs, err := store.ListRuns(commandCtx(cmd), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						run.ID,
						formatHistoryTime(run.StartedAt),
						run.Status,
						run.Source,
						run.ErrorMessage,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Run", "Started", "Status", "Source", "Error"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryLatestCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the stages of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, cmd, func(store *provenance.Store) error {
				run, err := store.GetRun(commandCtx(cmd), args[0])
				if err != nil {
					return err
				}
				stages, err := store.Stages(commandCtx(cmd), run.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:     %s\n", run.ID)
				fmt.Fprintf(out, "Source:  %s\n", run.Source)
				fmt.Fprintf(out, "Status:  %s\n", run.Status)
				fmt.Fprintf(out, "Params:  %d fps, %d%%, %s\n", run.FrameRate, run.ResizePercent, run.Backend)
				if run.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:   %s\n", run.ErrorMessage)
				}
				if len(stages) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(stages))
				for _, st := range stages {
					exit := ""
					if st.ExitCode != nil {
						exit = strconv.Itoa(*st.ExitCode)
					}
					rows = append(rows, []string{
						textutil.StageLabel(st.Stage),
						st.OutputFolder,
						strconv.Itoa(st.Succeeded),
						strconv.Itoa(st.Failed),
						exit,
						st.FinishedAt.Sub(st.StartedAt).Round(time.Millisecond).String(),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Stage", "Output", "Written", "Failed", "Exit", "Took"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight}))
				return nil
			})
		},
	}
}

func newHistoryLatestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "latest <stage>",
		Short: "Print the most recent output folder of a stage (extract, resize, rmbg)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, cmd, func(store *provenance.Store) error {
				folder, err := store.LatestOutput(commandCtx(cmd), args[0])
				if err != nil {
					return err
				}
				if folder == "" {
					return fmt.Errorf("no %s output recorded", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), folder)
				return nil
			})
		},
	}
}

func withHistory(ctx *commandContext, cmd *cobra.Command, fn func(*provenance.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := provenance.Open(commandCtx(cmd), cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	return errors.Join(fn(store), store.Close())
}

func formatHistoryTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(historyTimeLayout)
}
