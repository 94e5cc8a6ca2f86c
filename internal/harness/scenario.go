package harness

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tutorprobe/internal/token"
)

// Scenario is the declarative form of a probe scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description says what the scenario exercises.
	Description string `yaml:"description"`

	// Mint declares tokens issued locally before the first step, keyed by
	// the name steps use in "auth".
	Mint map[string]MintSpec `yaml:"mint,omitempty"`

	// Steps run in order.
	Steps []StepSpec `yaml:"steps"`
}

// MintSpec describes a locally issued token.
type MintSpec struct {
	Claims map[string]any `yaml:"claims"`

	// Expiry such as "7d" or "30d". Empty means token.DefaultExpiry.
	Expiry string `yaml:"expiry,omitempty"`
}

// StepSpec is one declared probe.
type StepSpec struct {
	Name string `yaml:"name"`

	// Method defaults to GET.
	Method string `yaml:"method,omitempty"`

	// Path is joined onto the configured base URL; it must start with "/".
	Path string `yaml:"path"`

	Headers map[string]string `yaml:"headers,omitempty"`

	// Body is sent as JSON.
	Body map[string]any `yaml:"body,omitempty"`

	// Auth names the earlier step or minted token whose value is sent as
	// "Authorization: Bearer <token>".
	Auth string `yaml:"auth,omitempty"`

	// Requires lists earlier steps that must have succeeded.
	Requires []string `yaml:"requires,omitempty"`

	// Capture is the dotted JSON path of a token in the response body.
	Capture string `yaml:"capture,omitempty"`

	// Expect is the expected-status hint.
	Expect int `yaml:"expect,omitempty"`
}

var validMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks required fields and that every reference points
// backwards to something that exists.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for name, m := range s.Mint {
		if name == "" {
			return fmt.Errorf("mint: token name is required")
		}
		if len(m.Claims) == 0 {
			return fmt.Errorf("mint[%s]: claims are required", name)
		}
		if m.Expiry != "" {
			if _, err := token.ParseExpiry(m.Expiry); err != nil {
				return fmt.Errorf("mint[%s]: %w", name, err)
			}
		}
	}

	// capturing[name] is true for earlier steps that capture a token
	capturing := make(map[string]bool, len(s.Steps))
	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i], s.Mint, capturing); err != nil {
			return err
		}
		capturing[s.Steps[i].Name] = s.Steps[i].Capture != ""
	}

	return nil
}

// validateStep validates step i against the steps declared before it.
func validateStep(i int, step *StepSpec, mint map[string]MintSpec, earlier map[string]bool) error {
	if step.Name == "" {
		return fmt.Errorf("steps[%d]: name is required", i)
	}
	if _, dup := earlier[step.Name]; dup {
		return fmt.Errorf("steps[%d]: duplicate step name %q", i, step.Name)
	}
	if _, clash := mint[step.Name]; clash {
		return fmt.Errorf("steps[%d]: step name %q collides with a minted token", i, step.Name)
	}

	if step.Path == "" {
		return fmt.Errorf("steps[%d]: path is required", i)
	}
	if !strings.HasPrefix(step.Path, "/") {
		return fmt.Errorf("steps[%d]: path %q must start with /", i, step.Path)
	}

	if step.Method != "" && !validMethods[strings.ToUpper(step.Method)] {
		return fmt.Errorf("steps[%d]: unknown method %q", i, step.Method)
	}

	if step.Auth != "" {
		_, minted := mint[step.Auth]
		captures, declared := earlier[step.Auth]
		switch {
		case minted:
		case !declared:
			return fmt.Errorf("steps[%d]: auth %q is not an earlier step or minted token", i, step.Auth)
		case !captures:
			return fmt.Errorf("steps[%d]: auth %q refers to a step that captures no token", i, step.Auth)
		}
	}

	for _, dep := range step.Requires {
		if _, ok := earlier[dep]; !ok {
			return fmt.Errorf("steps[%d]: requires %q, which is not an earlier step", i, dep)
		}
	}

	if step.Expect != 0 && (step.Expect < 100 || step.Expect > 599) {
		return fmt.Errorf("steps[%d]: expect %d is not an HTTP status", i, step.Expect)
	}

	return nil
}
