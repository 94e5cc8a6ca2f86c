package harness

import (
	"fmt"
	"io"

	"github.com/roach88/tutorprobe/internal/probe"
)

// Reporter receives run progress as it happens.
type Reporter interface {
	Start(scenario, description string)
	Minted(tok MintedToken)
	Probed(step Step, res StepResult)
	Skipped(res StepResult)
	Finish(result *Result)
}

// NopReporter discards all progress.
type NopReporter struct{}

func (NopReporter) Start(string, string) {}
func (NopReporter) Minted(MintedToken) {}
func (NopReporter) Probed(Step, StepResult) {}
func (NopReporter) Skipped(StepResult) {}
func (NopReporter) Finish(*Result) {}

// TextReporter prints the line-oriented report read by people at a terminal.
// Each outcome is written as soon as it is known. After the first write
// error nothing more is written; Err returns that error.
type TextReporter struct {
	w   io.Writer
	err error
}

// NewTextReporter returns a reporter writing to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

// Err returns the first error hit while writing the report.
func (t *TextReporter) Err() error {
	return t.err
}

func (t *TextReporter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *TextReporter) Start(scenario, description string) {
	if description != "" {
		t.printf("=== %s: %s\n", scenario, description)
		return
	}
	t.printf("=== %s\n", scenario)
}

func (t *TextReporter) Minted(tok MintedToken) {
	t.printf("• token %s: minted locally, expires in %s\n", tok.Name, tok.Expiry)
}

func (t *TextReporter) Probed(step Step, res StepResult) {
	if t.err != nil {
		return
	}
	var req probe.Request
	if res.Request != nil {
		req = *res.Request
	}
	var out probe.Outcome
	if res.Outcome != nil {
		out = *res.Outcome
	}
	t.err = probe.WriteReport(t.w, probe.Report{
		Step:    res.Name,
		Request: req,
		Outcome: out,
		Expect:  step.Expect,
	})
	if res.Note != "" {
		t.printf("  note: %s\n", res.Note)
	}
}

func (t *TextReporter) Skipped(res StepResult) {
	t.printf("- %s: skipped (%s)\n", res.Name, res.Reason)
}

func (t *TextReporter) Finish(result *Result) {
	t.printf("--- %s: %s\n", result.Scenario, result.Summary())
}
