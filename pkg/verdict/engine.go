// Package verdict turns a Proof into a Verdict. A single ordered rule list
// decides the base status; an optional policy stage may then downgrade a
// VALID verdict. The engine is pure: it never blocks except to load the
// violation registry for detailed verdicts.
package verdict

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
	"github.com/Mindburn-Labs/immuva/pkg/policy"
	"github.com/Mindburn-Labs/immuva/pkg/policysig"
	"github.com/Mindburn-Labs/immuva/pkg/receipts"
	"github.com/Mindburn-Labs/immuva/pkg/registry"
)

// SpecRootEnv names the spec checkout used to resolve registries when no
// provider or spec root is configured.
const SpecRootEnv = "IMMUVA_SPEC_ROOT"

// Engine evaluates proofs against the rule pipeline.
type Engine struct {
	rules           []Rule
	receipts        receipts.Validator
	provider        registry.Provider
	cell            *registry.Cell
	specRoot        string
	registryVersion string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRankedReceiptKinds admits any well-formed R<n> receipt kind.
func WithRankedReceiptKinds() Option {
	return func(e *Engine) { e.receipts.AllowRankedKinds = true }
}

// WithRegistry resolves violation severities through p.
func WithRegistry(p registry.Provider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithSpecRoot resolves violation severities from a spec checkout.
func WithSpecRoot(root string) Option {
	return func(e *Engine) { e.specRoot = root }
}

// WithRegistryVersion selects the registry version; the default is v1.
func WithRegistryVersion(version string) Option {
	return func(e *Engine) { e.registryVersion = version }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		rules:           Pipeline,
		registryVersion: registry.DefaultVersion,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.provider != nil {
		e.cell = registry.NewCell(e.provider, e.registryVersion)
	}
	return e
}

var defaultEngine = New()

// SignedPolicy is a policy document that must verify against a trusted
// key before it can constrain a verdict.
type SignedPolicy struct {
	Document      any
	Envelope      *policysig.Envelope
	TrustedKeyHex string
}

// VerifyOptions configures the policy stage of one verification.
type VerifyOptions struct {
	Offline                bool                    `json:"offline,omitempty"`
	ProofLevels            bool                    `json:"proof_levels,omitempty"`
	MinProofLevel          contracts.ProofLevel    `json:"min_proof_level,omitempty"`
	RequireKeyBound        bool                    `json:"require_key_bound,omitempty"`
	RequireTimeAnchor      bool                    `json:"require_time_anchor,omitempty"`
	RequireTransparencyLog bool                    `json:"require_transparency_log,omitempty"`
	Policy                 *policy.EffectivePolicy `json:"policy,omitempty"`
	SignedPolicy           *SignedPolicy           `json:"-"`
	// PolicyRejections are envelope failures from policies loaded outside
	// the engine. Any entry makes the verdict INVALID.
	PolicyRejections []contracts.ViolationCode `json:"-"`
}

// ComputeStatus runs the pipeline and returns the first decision.
func (e *Engine) ComputeStatus(p *contracts.Proof) Decision {
	if p == nil {
		p = &contracts.Proof{}
	}
	for _, r := range e.rules {
		if !r.applies(p) {
			continue
		}
		if d := r.Eval(e, p); d != nil {
			return *d
		}
	}
	return Decision{Status: contracts.StatusInvalid}
}

// Verify computes the verdict for p, including the policy stage.
func (e *Engine) Verify(p *contracts.Proof, opts VerifyOptions) contracts.Verdict {
	if p == nil {
		p = &contracts.Proof{}
	}

	if len(opts.PolicyRejections) > 0 {
		return override(opts.PolicyRejections...)
	}

	eff := policy.EffectivePolicy{}
	if opts.Policy != nil {
		eff = *opts.Policy
	}
	if opts.SignedPolicy != nil {
		signed, d := resolveSignedPolicy(opts.SignedPolicy)
		if d != nil {
			return override(d.Violations...)
		}
		eff = eff.Merge(signed)
	}

	d := e.ComputeStatus(p)
	v := contracts.Verdict{
		Status:     d.Status,
		Evidence:   p.Evidence,
		Outcome:    p.Outcome,
		Pointers:   p.Pointers,
		Violations: d.Violations,
	}
	if opts.Offline {
		v.Mode = contracts.ModeOffline
	}
	if v.Status != contracts.StatusValid {
		return v
	}
	return applyPolicy(v, p, opts, eff)
}

// applyPolicy is the post-VALID stage. A configured minimum level is
// checked first and alone; require flags are then collected together.
func applyPolicy(v contracts.Verdict, p *contracts.Proof, opts VerifyOptions, eff policy.EffectivePolicy) contracts.Verdict {
	minLevel := policy.Max(opts.MinProofLevel, eff.MinProofLevel)
	require := eff.Require.Or(policy.Requirements{
		KeyBound:        opts.RequireKeyBound,
		TimeAnchor:      opts.RequireTimeAnchor,
		TransparencyLog: opts.RequireTransparencyLog,
	})

	if opts.ProofLevels || minLevel != "" {
		achieved := policy.ComputeProofLevel(p)
		if opts.ProofLevels {
			v.ProofLevel = achieved
		}
		if minLevel != "" && !policy.Meets(achieved, minLevel) {
			return override(contracts.ViolationMinProofLevelNotMet)
		}
	}

	var vs []contracts.ViolationCode
	if require.KeyBound && p.KeyBinding == nil {
		vs = append(vs, contracts.ViolationKeyBindingRequired)
	}
	if require.TimeAnchor && !p.HasTimeAnchor() {
		vs = append(vs, contracts.ViolationTimeAnchorRequired)
	}
	if require.TransparencyLog && !p.HasTransparencyLog() {
		vs = append(vs, contracts.ViolationTransparencyLogRequired)
	}
	if len(vs) > 0 {
		return override(vs...)
	}
	return v
}

// override replaces a verdict outright: only status and the ranked
// violations survive.
func override(codes ...contracts.ViolationCode) contracts.Verdict {
	return contracts.Verdict{
		Status:     contracts.StatusInvalid,
		Violations: policy.SortViolations(codes),
	}
}

func resolveSignedPolicy(sp *SignedPolicy) (policy.EffectivePolicy, *Decision) {
	res := policysig.Verify(sp.Document, sp.Envelope, sp.TrustedKeyHex)
	if !res.OK {
		return policy.EffectivePolicy{}, invalid(res.Code)
	}
	raw, err := json.Marshal(sp.Document)
	if err != nil {
		return policy.EffectivePolicy{}, invalid(contracts.ViolationPolicyCanonicalMismatch)
	}
	var rp policy.RawPolicy
	if err := json.Unmarshal(raw, &rp); err != nil {
		return policy.EffectivePolicy{}, invalid(contracts.ViolationPolicyCanonicalMismatch)
	}
	return policy.Compose(rp), nil
}

// VerifyWithDetails is Verify with each violation graded by the violation
// registry. The registry comes from the injected provider, then the spec
// root, then $IMMUVA_SPEC_ROOT. If none resolves, the verdict is INVALID
// with REGISTRY_UNAVAILABLE.
func (e *Engine) VerifyWithDetails(ctx context.Context, p *contracts.Proof, opts VerifyOptions) contracts.DetailedVerdict {
	reg, err := e.violationRegistry(ctx)
	if err != nil {
		out := contracts.DetailedVerdict{
			Status: contracts.StatusInvalid,
			Violations: []contracts.DetailedViolation{
				{Code: contracts.ViolationRegistryUnavailable, Severity: contracts.SeverityInvalid},
			},
		}
		if opts.Offline {
			out.Mode = contracts.ModeOffline
		}
		return out
	}

	v := e.Verify(p, opts)
	return contracts.DetailedVerdict{
		Mode:       v.Mode,
		Status:     v.Status,
		Evidence:   v.Evidence,
		Outcome:    v.Outcome,
		Pointers:   v.Pointers,
		ProofLevel: v.ProofLevel,
		Violations: reg.Detail(v.Violations),
	}
}

// ErrRegistryUnconfigured means no provider, spec root or environment
// variable names a registry.
var ErrRegistryUnconfigured = errors.New("verdict: no registry provider configured")

func (e *Engine) violationRegistry(ctx context.Context) (*registry.ViolationRegistry, error) {
	switch {
	case e.cell != nil:
		return e.cell.Get(ctx)
	case e.specRoot != "":
		return registry.Process(e.specRoot, e.registryVersion).Get(ctx)
	}
	if root := os.Getenv(SpecRootEnv); root != "" {
		return registry.Process(root, e.registryVersion).Get(ctx)
	}
	return nil, ErrRegistryUnconfigured
}

// ComputeStatus runs the default engine's pipeline.
func ComputeStatus(p *contracts.Proof) Decision {
	return defaultEngine.ComputeStatus(p)
}

// Verify runs the default engine.
func Verify(p *contracts.Proof, opts VerifyOptions) contracts.Verdict {
	return defaultEngine.Verify(p, opts)
}
