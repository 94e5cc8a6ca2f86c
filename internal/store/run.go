package store

import (
	"time"

	"github.com/roach88/tutorprobe/internal/harness"
	"github.com/roach88/tutorprobe/internal/probe"
)

// Run is one recorded scenario run.
type Run struct {
	ID        string          `json:"id"`
	Scenario  string          `json:"scenario"`
	BaseURL   string          `json:"base_url"`
	StartedAt time.Time       `json:"started_at"`
	Seq       int64           `json:"seq"`
	Summary   harness.Summary `json:"summary"`

	// Outcomes is populated by ReadRun and left nil by ListRuns.
	Outcomes []Outcome `json:"outcomes,omitempty"`
}

// Outcome is the recorded result of one step.
type Outcome struct {
	StepIndex  int                `json:"step_index"`
	StepName   string             `json:"step_name"`
	Status     harness.StepStatus `json:"status"`
	Kind       probe.Kind         `json:"kind,omitempty"`
	StatusCode int                `json:"status_code,omitempty"`
	Body       string             `json:"body,omitempty"`
	Message    string             `json:"message,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	ElapsedMS  int64              `json:"elapsed_ms"`
}

// NewRun converts a finished result into a record ready for RecordRun.
// Bodies keep their canonical JSON form and every token the run knew
// about is redacted.
func NewRun(baseURL string, result *harness.Result) Run {
	run := Run{
		Scenario: result.Scenario,
		BaseURL:  baseURL,
		Summary:  result.Summary(),
		Outcomes: make([]Outcome, len(result.Steps)),
	}
	for i, step := range result.Steps {
		o := Outcome{
			StepIndex: i,
			StepName:  step.Name,
			Status:    step.Status,
			Reason:    step.Reason,
		}
		if out := step.Outcome; out != nil {
			o.Kind = out.Kind
			o.StatusCode = out.StatusCode
			o.Body = result.Redact(out.Body.String())
			o.Message = result.Redact(out.Message)
			o.ElapsedMS = out.Elapsed.Milliseconds()
		}
		run.Outcomes[i] = o
	}
	return run
}
