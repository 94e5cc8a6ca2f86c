package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tutorprobe/internal/harness"
	"github.com/roach88/tutorprobe/internal/probe"
	"github.com/roach88/tutorprobe/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	RunID    string
	Limit    int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show runs recorded with run --db",
		Long: `List runs recorded in a database by "run --db", oldest first, or show
every step of one run with --run.

Examples:
  tutorprobe history --db ./runs.db
  tutorprobe history --db ./runs.db --limit 5
  tutorprobe history --db ./runs.db --run 01928f6e-7c2a-7b44-9d1e-3f5a2b8c9d0e`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the steps of one run")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of most recent runs to list (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func showHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	// Opening creates missing files; history should only read existing ones.
	if _, err := os.Stat(opts.Database); err != nil {
		return out.Fail(ExitCommandError, CodeStore, "database not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			opts.Logger.Error("error closing database", "error", closeErr)
		}
	}()

	if opts.RunID != "" {
		run, err := st.ReadRun(cmd.Context(), opts.RunID)
		if errors.Is(err, store.ErrNotFound) {
			return out.Fail(ExitFailure, CodeStore, "run not found", err)
		}
		if err != nil {
			return out.Fail(ExitCommandError, CodeStore, "failed to read run", err)
		}
		return out.Success(run, func(w io.Writer) error {
			return writeRun(w, run)
		})
	}

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to list runs", err)
	}
	return out.Success(runs, func(w io.Writer) error {
		if len(runs) == 0 {
			_, err := fmt.Fprintln(w, "No runs recorded.")
			return err
		}
		for _, run := range runs {
			if err := writeRunLine(w, run); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeRunLine(w io.Writer, run store.Run) error {
	_, err := fmt.Fprintf(w, "%d  %s  %s  %s  %s\n",
		run.Seq, run.ID, run.StartedAt.Format(time.RFC3339), run.Scenario, run.Summary)
	return err
}

// writeRun prints one recorded run in the same shape as the live report.
func writeRun(w io.Writer, run store.Run) error {
	if _, err := fmt.Fprintf(w, "=== %s (run %s, %s, %s)\n",
		run.Scenario, run.ID, run.BaseURL, run.StartedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	for _, o := range run.Outcomes {
		var err error
		switch {
		case o.Status == harness.StatusSkipped:
			_, err = fmt.Fprintf(w, "- %s: skipped (%s)\n", o.StepName, o.Reason)
		case o.Kind == probe.KindSuccess || o.Kind == probe.KindHTTPError:
			_, err = fmt.Fprintf(w, "%s %s: %d %dms\n", probe.Icon(o.Kind), o.StepName, o.StatusCode, o.ElapsedMS)
		default:
			_, err = fmt.Fprintf(w, "%s %s: %s %dms\n", probe.Icon(o.Kind), o.StepName, o.Message, o.ElapsedMS)
		}
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "--- %s: %s\n", run.Scenario, run.Summary)
	return err
}
