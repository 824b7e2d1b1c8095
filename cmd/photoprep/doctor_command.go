package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"photoprep/internal/deps"
	"photoprep/internal/preflight"
	"photoprep/internal/textutil"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that external tools, models, scripts, and directories are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				state := "ok"
				if !st.Available {
					state = "missing"
					if st.Optional {
						state = "missing (optional)"
					}
				}
				rows = append(rows, []string{st.Name, state, textutil.YesNo(!st.Optional), st.Command, st.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Status", "Required", "Command", "Detail"}, rows, nil))

			checks := preflight.RunAll(cfg)
			dirRows := make([][]string, 0, len(checks))
			for _, check := range checks {
				dirRows = append(dirRows, []string{check.Name, textutil.Ternary(check.Passed, "ok", "failed"), check.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Directory", "Status", "Detail"}, dirRows, nil))

			missing := deps.Missing(statuses)
			failed := preflight.Failed(checks)
			if len(missing) > 0 || len(failed) > 0 {
				return fmt.Errorf("%d required dependencies missing, %d directory checks failed", len(missing), len(failed))
			}
			fmt.Fprintln(out, "All required dependencies available")
			return nil
		},
	}
}
