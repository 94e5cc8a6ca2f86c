package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tutorprobe/internal/harness"
	"github.com/roach88/tutorprobe/internal/probe"
	"github.com/roach88/tutorprobe/internal/store"
	"github.com/roach88/tutorprobe/internal/token"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Files    []string
	Strict   bool
	Database string

	// Prober overrides the HTTP prober (for testing).
	// If nil, a probe.Prober is created per invocation.
	Prober harness.Prober
}

// RunReport is the JSON payload of the run command.
type RunReport struct {
	Scenarios []ScenarioReport `json:"scenarios"`
	Summary   harness.Summary  `json:"summary"`
}

// ScenarioReport is one scenario's results as printed in JSON output.
type ScenarioReport struct {
	Name    string          `json:"name"`
	RunID   string          `json:"run_id,omitempty"`
	Steps   []StepReport    `json:"steps"`
	Summary harness.Summary `json:"summary"`
}

// StepReport is one step in JSON output. Request headers are omitted so
// bearer tokens never appear.
type StepReport struct {
	Name       string             `json:"name"`
	Status     harness.StepStatus `json:"status"`
	Method     string             `json:"method,omitempty"`
	URL        string             `json:"url,omitempty"`
	Kind       probe.Kind         `json:"kind,omitempty"`
	StatusCode int                `json:"status_code,omitempty"`
	Body       string             `json:"body,omitempty"`
	Message    string             `json:"message,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Note       string             `json:"note,omitempty"`
	ElapsedMS  int64              `json:"elapsed_ms,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run probe scenarios against the server",
		Long: `Run built-in probe scenarios, and any scenario files given with --file,
against the configured server. With no arguments and no --file, every
built-in scenario runs.

Each step is reported as soon as its outcome is known. A step whose
prerequisite failed is skipped, never sent with a placeholder token.

Exit codes:
  0 - All scenarios ran (step failures are reported, not fatal)
  1 - --strict was given and at least one step failed
  2 - Command error (unknown scenario, invalid file, database error)

Examples:
  tutorprobe run
  tutorprobe run health student-dashboard
  tutorprobe run --file ./probes/checkout.yaml --strict
  tutorprobe run --db ./runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Files, "file", "f", nil, "additional scenario YAML file (repeatable)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when any step fails")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")

	return cmd
}

func runScenarios(opts *RunOptions, names []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	cfg := opts.Config
	cfg.Strict = opts.Strict

	scenarios, err := loadScenarios(names, opts.Files)
	if err != nil {
		return out.Fail(ExitCommandError, CodeScenario, "failed to load scenarios", err)
	}

	iss, err := token.NewIssuer(cfg.Secret)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to create token issuer", err)
	}

	plans := make([]*harness.Plan, 0, len(scenarios))
	minting := false
	for _, s := range scenarios {
		plan, err := harness.Compile(s, cfg, iss)
		if err != nil {
			return out.Fail(ExitCommandError, CodeScenario, "failed to compile scenario", err)
		}
		minting = minting || len(plan.Minted) > 0
		plans = append(plans, plan)
	}
	if minting {
		opts.warnDevSecret()
	}

	var st *store.Store
	if opts.Database != "" {
		opts.Logger.Debug("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			return out.Fail(ExitCommandError, CodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				opts.Logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	prober := opts.Prober
	if prober == nil {
		p := probe.New(probe.WithLogger(opts.Logger))
		defer p.Close()
		prober = p
	}

	var (
		reporter harness.Reporter = harness.NopReporter{}
		text     *harness.TextReporter
	)
	if !out.JSON() {
		text = harness.NewTextReporter(cmd.OutOrStdout())
		reporter = text
	}
	runner := harness.NewRunner(prober,
		harness.WithTimeout(cfg.Timeout),
		harness.WithReporter(reporter),
		harness.WithLogger(opts.Logger),
	)

	report := RunReport{Scenarios: make([]ScenarioReport, 0, len(plans))}
	for _, plan := range plans {
		result := runner.RunPlan(cmd.Context(), plan)
		if text != nil && text.Err() != nil {
			return out.Fail(ExitCommandError, CodeOutput, "failed to write report", text.Err())
		}
		sr := scenarioReport(result)

		if st != nil {
			run, err := st.RecordRun(cmd.Context(), store.NewRun(cfg.BaseURL, result))
			if err != nil {
				return out.Fail(ExitCommandError, CodeStore, "failed to record run", err)
			}
			sr.RunID = run.ID
			opts.Logger.Info("run recorded", "scenario", plan.Name, "run", run.ID)
		}

		report.Summary.Add(sr.Summary)
		report.Scenarios = append(report.Scenarios, sr)
	}

	if err := out.Success(report, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "=== total: %d scenarios, %s\n", len(report.Scenarios), report.Summary)
		return err
	}); err != nil {
		return err
	}

	if cfg.Strict && report.Summary.Failed > 0 {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d of %d attempted steps failed", report.Summary.Failed, report.Summary.Attempted))
	}
	return nil
}

// loadScenarios resolves built-in names and files, in that order. With
// neither, every built-in scenario is returned.
func loadScenarios(names, files []string) ([]*harness.Scenario, error) {
	if len(names) == 0 && len(files) == 0 {
		names = harness.Builtins()
	}

	seen := make(map[string]string, len(names)+len(files))
	scenarios := make([]*harness.Scenario, 0, len(names)+len(files))
	add := func(s *harness.Scenario, source string) error {
		if prev, dup := seen[s.Name]; dup {
			return fmt.Errorf("scenario %q from %s already loaded from %s", s.Name, source, prev)
		}
		seen[s.Name] = source
		scenarios = append(scenarios, s)
		return nil
	}

	for _, name := range names {
		s, err := harness.Builtin(name)
		if err != nil {
			return nil, err
		}
		if err := add(s, "built-ins"); err != nil {
			return nil, err
		}
	}
	for _, path := range files {
		s, err := harness.LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := add(s, path); err != nil {
			return nil, err
		}
	}

	return scenarios, nil
}

func scenarioReport(result *harness.Result) ScenarioReport {
	sr := ScenarioReport{
		Name:    result.Scenario,
		Steps:   make([]StepReport, len(result.Steps)),
		Summary: result.Summary(),
	}
	for i, s := range result.Steps {
		step := StepReport{
			Name:   s.Name,
			Status: s.Status,
			Reason: s.Reason,
			Note:   s.Note,
		}
		if s.Request != nil {
			step.Method = s.Request.Method
			step.URL = s.Request.URL
		}
		if o := s.Outcome; o != nil {
			step.Kind = o.Kind
			step.StatusCode = o.StatusCode
			step.Body = result.Redact(o.Body.String())
			step.Message = result.Redact(o.Message)
			step.ElapsedMS = o.Elapsed.Milliseconds()
		}
		sr.Steps[i] = step
	}
	return sr
}
