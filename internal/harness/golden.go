package harness

import (
	"net/url"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tutorprobe/internal/canon"
)

// Snapshot renders a result as canonical JSON for golden comparison.
// Hosts, ports, tokens and timings vary between runs and are left out.
func Snapshot(result *Result) ([]byte, error) {
	steps := make([]any, len(result.Steps))
	for i, s := range result.Steps {
		step := map[string]any{
			"name":   s.Name,
			"status": string(s.Status),
		}
		if s.Request != nil {
			step["method"] = s.Request.Method
			if u, err := url.Parse(s.Request.URL); err == nil {
				step["path"] = u.Path
			}
			step["authorized"] = s.Request.Header("Authorization") != ""
		}
		if s.Outcome != nil {
			step["kind"] = string(s.Outcome.Kind)
			if s.Outcome.StatusCode != 0 {
				step["status_code"] = s.Outcome.StatusCode
			}
			if body := s.Outcome.Body.String(); body != "" {
				step["body"] = body
			}
			if s.Outcome.Message != "" {
				step["message"] = s.Outcome.Message
			}
		}
		if s.Reason != "" {
			step["reason"] = s.Reason
		}
		if s.Note != "" {
			step["note"] = s.Note
		}
		steps[i] = step
	}

	return canon.Marshal(map[string]any{
		"scenario": result.Scenario,
		"steps":    steps,
	})
}

// AssertGolden compares a result snapshot against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
