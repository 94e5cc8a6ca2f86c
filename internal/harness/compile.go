package harness

import (
	"fmt"

	"github.com/roach88/tutorprobe/internal/canon"
	"github.com/roach88/tutorprobe/internal/config"
	"github.com/roach88/tutorprobe/internal/probe"
	"github.com/roach88/tutorprobe/internal/token"
)

// Compile turns a validated scenario into a runnable plan. Declared tokens
// are minted here with iss, which may be nil when the scenario mints none.
func Compile(s *Scenario, cfg config.Config, iss *token.Issuer) (*Plan, error) {
	plan := &Plan{
		Name:        s.Name,
		Description: s.Description,
		Steps:       make([]Step, 0, len(s.Steps)),
	}

	if len(s.Mint) > 0 && iss == nil {
		return nil, fmt.Errorf("scenario %s: minting tokens requires an issuer", s.Name)
	}
	for _, name := range canon.SortedKeys(s.Mint) {
		m := s.Mint[name]
		expiry := m.Expiry
		if expiry == "" {
			expiry = token.DefaultExpiry
		}
		tok, err := iss.Issue(token.Claims(m.Claims), expiry)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: mint %s: %w", s.Name, name, err)
		}
		plan.Minted = append(plan.Minted, MintedToken{Name: name, Expiry: expiry, Token: tok})
	}

	for _, spec := range s.Steps {
		plan.Steps = append(plan.Steps, Step{
			Name:    spec.Name,
			Build:   requestBuilder(spec, cfg),
			Capture: spec.Capture,
			Expect:  spec.Expect,
		})
	}

	return plan, nil
}

// requestBuilder returns the Build function for a declared step.
// Prerequisites are checked before anything is constructed so a skipped
// step never produces a request.
func requestBuilder(spec StepSpec, cfg config.Config) func(*Result) (probe.Request, error) {
	return func(res *Result) (probe.Request, error) {
		for _, dep := range spec.Requires {
			if err := RequireSuccess(res, dep); err != nil {
				return probe.Request{}, err
			}
		}

		var bearer string
		if spec.Auth != "" {
			tok, err := RequireToken(res, spec.Auth)
			if err != nil {
				return probe.Request{}, err
			}
			bearer = tok
		}

		req := probe.NewRequest(spec.Method, cfg.URL(spec.Path))
		for _, k := range canon.SortedKeys(spec.Headers) {
			req = req.WithHeader(k, spec.Headers[k])
		}
		if spec.Body != nil {
			req = req.WithBody(spec.Body)
		}
		if bearer != "" {
			req = req.WithBearer(bearer)
		}
		return req, nil
	}
}
