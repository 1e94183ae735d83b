package verdict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

// Step outcomes.
const (
	OutcomePass = "pass"
	OutcomeFail = "fail"
	OutcomeSkip = "skip"
)

// Step records what one rule concluded about a proof.
type Step struct {
	Step       int                       `json:"step"`
	Rule       string                    `json:"rule"`
	Outcome    string                    `json:"outcome"`
	Violations []contracts.ViolationCode `json:"violations,omitempty"`
	Decisive   bool                      `json:"decisive,omitempty"`
}

type Explanation struct {
	Steps []Step `json:"steps"`
}

// Explain evaluates every applicable rule on its own, so the trace shows
// all failures rather than only the first. The step that decides the
// pipeline's verdict is marked decisive.
func (e *Engine) Explain(p *contracts.Proof) Explanation {
	if p == nil {
		p = &contracts.Proof{}
	}
	steps := make([]Step, 0, len(e.rules))
	decided := false
	for i, r := range e.rules {
		s := Step{Step: i + 1, Rule: r.Name, Outcome: OutcomeSkip}
		if r.applies(p) {
			d := r.Eval(e, p)
			s.Outcome = OutcomePass
			if d != nil {
				if d.Status != contracts.StatusValid {
					s.Outcome = OutcomeFail
				}
				s.Violations = d.Violations
				s.Decisive = !decided
				decided = true
			}
		}
		steps = append(steps, s)
	}
	return Explanation{Steps: steps}
}

// Explained is a detailed verdict together with its rule trace. It
// serializes as the verdict object with an added "explanation" member.
type Explained struct {
	Verdict     contracts.DetailedVerdict
	Explanation Explanation
}

func (x Explained) MarshalJSON() ([]byte, error) {
	v, err := json.Marshal(x.Verdict)
	if err != nil {
		return nil, err
	}
	exp, err := json.Marshal(x.Explanation)
	if err != nil {
		return nil, err
	}
	v = bytes.TrimSpace(v)
	if len(v) < 2 || v[len(v)-1] != '}' {
		return nil, fmt.Errorf("verdict: unexpected verdict encoding")
	}
	out := make([]byte, 0, len(v)+len(exp)+16)
	out = append(out, v[:len(v)-1]...)
	out = append(out, `,"explanation":`...)
	out = append(out, exp...)
	out = append(out, '}')
	return out, nil
}

// VerifyExplained returns the detailed verdict and its trace.
func (e *Engine) VerifyExplained(ctx context.Context, p *contracts.Proof, opts VerifyOptions) Explained {
	return Explained{
		Verdict:     e.VerifyWithDetails(ctx, p, opts),
		Explanation: e.Explain(p),
	}
}
