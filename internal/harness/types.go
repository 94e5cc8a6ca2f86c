package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tutorprobe/internal/canon"
	"github.com/roach88/tutorprobe/internal/probe"
)

// Redacted replaces token values in anything that leaves the process.
const Redacted = "[redacted]"

// StepStatus is the scenario-level verdict for one step.
type StepStatus string

// Step statuses.
const (
	StatusSucceeded StepStatus = "succeeded"
	StatusFailed    StepStatus = "failed"
	StatusSkipped   StepStatus = "skipped"
)

// SkipError tells the runner not to attempt a step.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// Skip returns a SkipError with a formatted reason.
func Skip(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// IsSkip reports whether err asks for the step to be skipped.
func IsSkip(err error) (*SkipError, bool) {
	var skip *SkipError
	if errors.As(err, &skip) {
		return skip, true
	}
	return nil, false
}

// StepResult records what happened to one step.
type StepResult struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`

	// Request is nil for skipped steps.
	Request *probe.Request `json:"request,omitempty"`

	// Outcome is nil for skipped steps.
	Outcome *probe.Outcome `json:"outcome,omitempty"`

	// Reason explains a skip.
	Reason string `json:"reason,omitempty"`

	// Note carries a non-fatal remark, such as a missing token in an
	// otherwise successful response.
	Note string `json:"note,omitempty"`
}

// Result is the outcome of one scenario run.
type Result struct {
	Scenario string       `json:"scenario"`
	Steps    []StepResult `json:"steps"`

	tokens map[string]string
}

// NewResult creates an empty result for the named scenario.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Steps:    []StepResult{},
		tokens:   make(map[string]string),
	}
}

// Step returns the result of the named step, if it has run.
func (r *Result) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Token returns the token stored under key.
func (r *Result) Token(key string) (string, bool) {
	tok, ok := r.tokens[key]
	return tok, ok
}

// setToken stores a token. The first write wins: a token, once obtained,
// is reused verbatim for the rest of the run.
func (r *Result) setToken(key, tok string) bool {
	if _, exists := r.tokens[key]; exists {
		return false
	}
	r.tokens[key] = tok
	return true
}

// Redact replaces every token captured or minted during the run with
// Redacted.
func (r *Result) Redact(s string) string {
	for _, key := range canon.SortedKeys(r.tokens) {
		if tok := r.tokens[key]; tok != "" {
			s = strings.ReplaceAll(s, tok, Redacted)
		}
	}
	return s
}

// Outcomes returns the outcomes of attempted steps, in order.
func (r *Result) Outcomes() []probe.Outcome {
	outs := make([]probe.Outcome, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s.Outcome != nil {
			outs = append(outs, *s.Outcome)
		}
	}
	return outs
}

// Summary counts step results by status.
func (r *Result) Summary() Summary {
	var s Summary
	for _, step := range r.Steps {
		s.Total++
		switch step.Status {
		case StatusSucceeded:
			s.Attempted++
			s.Succeeded++
		case StatusFailed:
			s.Attempted++
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// Failed reports whether any attempted step failed.
func (r *Result) Failed() bool {
	return r.Summary().Failed > 0
}

// Summary is the per-status tally of a run.
type Summary struct {
	Total     int `json:"total"`
	Attempted int `json:"attempted"`
	Skipped   int `json:"skipped"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Add accumulates another summary into s.
func (s *Summary) Add(o Summary) {
	s.Total += o.Total
	s.Attempted += o.Attempted
	s.Skipped += o.Skipped
	s.Succeeded += o.Succeeded
	s.Failed += o.Failed
}

func (s Summary) String() string {
	return fmt.Sprintf("%d steps: %d attempted, %d skipped, %d succeeded, %d failed",
		s.Total, s.Attempted, s.Skipped, s.Succeeded, s.Failed)
}

// RequireSuccess returns a SkipError unless the named step succeeded.
func RequireSuccess(r *Result, step string) error {
	prev, ok := r.Step(step)
	if !ok {
		return Skip("%q has not run", step)
	}
	switch prev.Status {
	case StatusFailed:
		return Skip("%q failed", step)
	case StatusSkipped:
		return Skip("%q was skipped", step)
	}
	return nil
}

// RequireToken returns the token stored under key, or a SkipError saying
// why there is none.
func RequireToken(r *Result, key string) (string, error) {
	if tok, ok := r.Token(key); ok {
		return tok, nil
	}
	if err := RequireSuccess(r, key); err != nil {
		return "", err
	}
	return "", Skip("%q produced no token", key)
}
