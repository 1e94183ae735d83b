package sdk

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/immuva/pkg/config"
	"github.com/Mindburn-Labs/immuva/pkg/contracts"
	"github.com/Mindburn-Labs/immuva/pkg/crypto"
	"github.com/Mindburn-Labs/immuva/pkg/policy"
	"github.com/Mindburn-Labs/immuva/pkg/policysig"
	"github.com/Mindburn-Labs/immuva/pkg/verdict"
)

// VerifyOptions are the caller-facing verify options. A nil Offline means
// the client default.
type VerifyOptions struct {
	Offline                *bool
	MinProofLevel          contracts.ProofLevel
	RequireKeyBound        bool
	RequireTimeAnchor      bool
	RequireTransparencyLog bool
	Policy                 *policy.EffectivePolicy
	SignedPolicy           *verdict.SignedPolicy
	// PolicyRejections carries the codes of policies that failed envelope
	// verification. Verify returns INVALID while any are present.
	PolicyRejections []contracts.ViolationCode
}

// OptionsFromProfile turns a verification profile into verify options.
// A profile naming a policy directory also needs a trusted key file. Every
// policy must verify against that key: an unsigned policy contributes
// POLICY_SIGNATURE_REQUIRED and a failed envelope its own code, and Verify
// fails closed on either.
func OptionsFromProfile(p *config.Profile) (VerifyOptions, error) {
	opts := VerifyOptions{
		Offline:                p.Offline,
		MinProofLevel:          p.MinLevel(),
		RequireKeyBound:        p.Require.KeyBound,
		RequireTimeAnchor:      p.Require.TimeAnchor,
		RequireTransparencyLog: p.Require.TransparencyLog,
	}
	if p.PolicyDir == "" {
		return opts, nil
	}
	if p.TrustedKeyFile == "" {
		return VerifyOptions{}, fmt.Errorf("sdk: profile %q: policy_dir without trusted_key_file", p.Name)
	}
	key, err := policysig.LoadTrustedKey(p.TrustedKeyFile)
	if err != nil {
		return VerifyOptions{}, fmt.Errorf("sdk: profile %q: %w", p.Name, err)
	}
	loader := policy.NewLoader(p.PolicyDir)
	if err := loader.LoadAll(); err != nil {
		return VerifyOptions{}, fmt.Errorf("sdk: profile %q: %w", p.Name, err)
	}
	eff, rejected := loader.Effective(key)
	opts.Policy = &eff
	for _, res := range rejected {
		opts.PolicyRejections = append(opts.PolicyRejections, res.Code)
	}
	opts.PolicyRejections = policy.SortViolations(opts.PolicyRejections)
	return opts, nil
}

// Verify checks a v2 signed proof. Anything else fails closed with
// SIGNATURE_INVALID before the engine runs. proof_level is always
// reported on VALID verdicts.
func (c *Client) Verify(ctx context.Context, p *contracts.Proof, opts VerifyOptions) contracts.DetailedVerdict {
	ctx, done := c.obs.TrackOperation(ctx, "immuva.verify", spanAttrs(p)...)
	defer done(nil)

	offline := c.offline
	if opts.Offline != nil {
		offline = *opts.Offline
	}

	if !isV2Signed(p) {
		out := contracts.DetailedVerdict{
			Status: contracts.StatusInvalid,
			Violations: []contracts.DetailedViolation{
				{Code: contracts.ViolationSignatureInvalid, Severity: contracts.SeverityInvalid},
			},
		}
		c.logger.WarnContext(ctx, "proof is not v2 signed")
		c.record(ctx, out)
		return out
	}

	out := c.engine.VerifyWithDetails(ctx, p, verdict.VerifyOptions{
		Offline:                offline,
		ProofLevels:            true,
		MinProofLevel:          opts.MinProofLevel,
		RequireKeyBound:        opts.RequireKeyBound,
		RequireTimeAnchor:      opts.RequireTimeAnchor,
		RequireTransparencyLog: opts.RequireTransparencyLog,
		Policy:                 opts.Policy,
		SignedPolicy:           opts.SignedPolicy,
		PolicyRejections:       opts.PolicyRejections,
	})
	if len(out.Violations) == 1 && out.Violations[0].Code == contracts.ViolationRegistryUnavailable {
		c.logger.WarnContext(ctx, "violation registry unavailable")
	}
	c.record(ctx, out)
	return out
}

func (c *Client) record(ctx context.Context, v contracts.DetailedVerdict) {
	codes := make([]contracts.ViolationCode, len(v.Violations))
	for i, d := range v.Violations {
		codes[i] = d.Code
	}
	c.obs.RecordVerdict(ctx, contracts.Verdict{Status: v.Status, Violations: codes})
	c.logger.DebugContext(ctx, "verdict",
		"status", v.Status,
		"violations", codes,
		"proof_level", v.ProofLevel,
	)
}

func isV2Signed(p *contracts.Proof) bool {
	return p != nil && p.Signing != nil &&
		p.Signing.CryptoSuite == crypto.SuiteV2Ed25519SHA256 &&
		p.Signing.PublicKey != "" &&
		p.Signing.Signature != ""
}
