package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/tutorprobe/internal/probe"
)

// Prober sends one request and classifies the result.
// *probe.Prober implements it; tests substitute fakes.
type Prober interface {
	Probe(ctx context.Context, req probe.Request, timeout time.Duration) probe.Outcome
}

// Step is one unit of a scenario.
type Step struct {
	Name string

	// Build constructs the request from the results so far. Returning an
	// error from Skip marks the step skipped; any other error fails it
	// without sending anything.
	Build func(*Result) (probe.Request, error)

	// Capture is the dotted JSON path of a bearer token in a successful
	// response body. Empty means the step yields no token.
	Capture string

	// Expect is the expected-status hint. Zero means none.
	Expect int
}

// Plan is a compiled scenario ready to run.
type Plan struct {
	Name        string
	Description string

	// Minted holds tokens issued locally before the first step.
	Minted []MintedToken

	Steps []Step
}

// MintedToken is a locally issued token made available to steps by name.
type MintedToken struct {
	Name   string
	Expiry string
	Token  string
}

// Runner executes scenarios one step at a time.
type Runner struct {
	prober   Prober
	timeout  time.Duration
	reporter Reporter
	logger   *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithReporter sets where progress is rendered.
func WithReporter(rep Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = rep
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a runner. Without options it uses probe.DefaultTimeout,
// reports nothing, and discards logs.
func NewRunner(p Prober, opts ...RunnerOption) *Runner {
	r := &Runner{
		prober:   p,
		timeout:  probe.DefaultTimeout,
		reporter: NopReporter{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes steps in order and returns their results.
func (r *Runner) Run(ctx context.Context, name string, steps []Step) *Result {
	return r.RunPlan(ctx, &Plan{Name: name, Steps: steps})
}

// RunPlan executes a compiled plan. It always returns a complete result:
// every step ends up succeeded, failed or skipped.
func (r *Runner) RunPlan(ctx context.Context, plan *Plan) *Result {
	result := NewResult(plan.Name)
	r.reporter.Start(plan.Name, plan.Description)

	for _, m := range plan.Minted {
		result.setToken(m.Name, m.Token)
		r.reporter.Minted(m)
	}

	for i, step := range plan.Steps {
		res := r.runStep(ctx, step, result)
		result.Steps = append(result.Steps, res)

		r.logger.Debug("step finished",
			"scenario", plan.Name,
			"step", i,
			"name", step.Name,
			"status", res.Status,
		)
	}

	r.reporter.Finish(result)
	return result
}

// runStep builds, sends and classifies a single step. Step N is only built
// once step N-1's outcome is recorded in result.
func (r *Runner) runStep(ctx context.Context, step Step, result *Result) StepResult {
	res := StepResult{Name: step.Name}

	req, err := r.build(step, result)
	if err != nil {
		if skip, ok := IsSkip(err); ok {
			res.Status = StatusSkipped
			res.Reason = skip.Reason
			r.reporter.Skipped(res)
			return res
		}
		out := probe.UnknownFailure(fmt.Sprintf("build request: %v", err))
		res.Status = StatusFailed
		res.Outcome = &out
		r.reporter.Probed(step, res)
		return res
	}

	out := r.prober.Probe(ctx, req, r.timeout)
	res.Request = &req
	res.Outcome = &out

	if out.OK() {
		res.Status = StatusSucceeded
		if step.Capture != "" {
			res.Note = r.capture(step, out, result)
		}
	} else {
		res.Status = StatusFailed
	}

	r.reporter.Probed(step, res)
	return res
}

// build calls step.Build, converting a panic into a failure so one broken
// step cannot abort the run.
func (r *Runner) build(step Step, result *Result) (req probe.Request, err error) {
	if step.Build == nil {
		return probe.Request{}, fmt.Errorf("step %q has no request builder", step.Name)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("step %q: %v", step.Name, p)
		}
	}()
	return step.Build(result)
}

// capture stores the token found at step.Capture. It returns a note when
// the response carried none or the lookup panicked.
func (r *Runner) capture(step Step, out probe.Outcome, result *Result) (note string) {
	defer func() {
		if p := recover(); p != nil {
			note = fmt.Sprintf("capture %q: %v", step.Capture, p)
		}
	}()
	v, ok := out.Body.Lookup(step.Capture)
	if !ok {
		return fmt.Sprintf("no token at %q in response", step.Capture)
	}
	tok, ok := v.(string)
	if !ok || tok == "" {
		return fmt.Sprintf("value at %q is not a token", step.Capture)
	}
	if !result.setToken(step.Name, tok) {
		r.logger.Warn("token already captured, keeping the first", "step", step.Name)
	}
	return ""
}
