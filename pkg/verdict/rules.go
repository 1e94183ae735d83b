package verdict

import (
	"errors"

	"github.com/Mindburn-Labs/immuva/pkg/canonicalize"
	"github.com/Mindburn-Labs/immuva/pkg/contracts"
	"github.com/Mindburn-Labs/immuva/pkg/crypto"
	"github.com/Mindburn-Labs/immuva/pkg/equivocation"
	"github.com/Mindburn-Labs/immuva/pkg/receipts"
)

// Decision is a rule's terminal judgement. A rule that passes returns no
// decision and the pipeline moves on.
type Decision struct {
	Status     contracts.VerdictStatus
	Violations []contracts.ViolationCode
}

func invalid(code contracts.ViolationCode) *Decision {
	return &Decision{Status: contracts.StatusInvalid, Violations: []contracts.ViolationCode{code}}
}

// Rule is one step of the verification pipeline. Applies gates the rule;
// a nil Applies means always. Eval returns nil to pass.
type Rule struct {
	Name    string
	Applies func(p *contracts.Proof) bool
	Eval    func(e *Engine, p *contracts.Proof) *Decision
}

func (r Rule) applies(p *contracts.Proof) bool {
	return r.Applies == nil || r.Applies(p)
}

// Pipeline is the fixed rule order. The first rule to return a decision
// ends verification.
var Pipeline = []Rule{
	{Name: "crypto_suite", Applies: hasDeclaredSuite, Eval: checkCryptoSuite},
	{Name: "receipt_kind", Eval: checkReceiptKinds},
	{Name: "receipt_ordering", Eval: checkReceiptOrdering},
	{Name: "outcome_basis", Eval: checkOutcomeBasis},
	{Name: "signature", Applies: hasSigning, Eval: checkSignature},
	{Name: "key_binding", Applies: hasSigning, Eval: checkKeyBinding},
	{Name: "non_equivocation", Applies: hasCanonicalEvents, Eval: checkNonEquivocation},
	{Name: "resultset_gate", Eval: checkResultset},
	{Name: "evidence_present", Applies: hasResultset, Eval: checkEvidencePresent},
	{Name: "outcome_basis_conflict", Applies: hasEvidenceAndOutcome, Eval: checkBasisConflict},
	{Name: "evidence_rank", Applies: hasEvidence, Eval: evaluateEvidence},
}

func hasDeclaredSuite(p *contracts.Proof) bool {
	return p.Signing != nil && p.Signing.CryptoSuite != ""
}

func hasSigning(p *contracts.Proof) bool { return p.Signing != nil }

func hasCanonicalEvents(p *contracts.Proof) bool { return len(p.CanonicalEvents) > 0 }

func hasResultset(p *contracts.Proof) bool { return p.ResultsetPresent }

func hasEvidence(p *contracts.Proof) bool { return p.ResultsetPresent && p.Evidence != nil }

func hasEvidenceAndOutcome(p *contracts.Proof) bool { return hasEvidence(p) && p.Outcome != nil }

func isV2(p *contracts.Proof) bool {
	return p.Signing != nil && p.Signing.CryptoSuite == crypto.SuiteV2Ed25519SHA256
}

func checkCryptoSuite(_ *Engine, p *contracts.Proof) *Decision {
	_, err := crypto.ResolveSuite(p.Signing)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, crypto.ErrPublicKeyRequired):
		return invalid(contracts.ViolationPublicKeyRequired)
	case errors.Is(err, crypto.ErrPublicKeyNotPermitted):
		return invalid(contracts.ViolationSignatureInvalid)
	default:
		return invalid(contracts.ViolationCryptoSuiteUnknown)
	}
}

func checkReceiptKinds(e *Engine, p *contracts.Proof) *Decision {
	if vs := e.receipts.CheckKinds(p.Receipts); len(vs) > 0 {
		return &Decision{Status: contracts.StatusInvalid, Violations: vs}
	}
	return nil
}

func checkReceiptOrdering(_ *Engine, p *contracts.Proof) *Decision {
	if vs := receipts.CheckOrdering(p.Receipts); len(vs) > 0 {
		return &Decision{Status: contracts.StatusInvalid, Violations: vs}
	}
	return nil
}

func checkOutcomeBasis(_ *Engine, p *contracts.Proof) *Decision {
	if vs := receipts.CheckOutcomeBasis(p.Outcome); len(vs) > 0 {
		return &Decision{Status: contracts.StatusInvalid, Violations: vs}
	}
	return nil
}

func checkSignature(_ *Engine, p *contracts.Proof) *Decision {
	if isV2(p) && p.Signing.PublicKey == "" {
		return invalid(contracts.ViolationPublicKeyRequired)
	}
	if !crypto.VerifyEventSignature(p.CanonicalEvent, p.Signing) {
		return invalid(contracts.ViolationSignatureInvalid)
	}
	return nil
}

func checkKeyBinding(_ *Engine, p *contracts.Proof) *Decision {
	kb := p.KeyBinding
	if kb != nil && p.Signing.PublicKey != kb.PublicKey {
		return invalid(contracts.ViolationKeyBindingMismatch)
	}
	if !isV2(p) {
		return nil
	}
	if p.Signing.PublicKey == "" {
		return invalid(contracts.ViolationPublicKeyRequired)
	}
	if kb == nil || kb.KeyID == "" {
		return invalid(contracts.ViolationKeyIDRequired)
	}
	if kb.KeyID != canonicalize.SHA256Hex(p.CanonicalEvent) {
		return invalid(contracts.ViolationKeyIDMismatch)
	}
	if kb.KeyStatus == contracts.KeyStatusRevoked {
		return invalid(contracts.ViolationKeyRevoked)
	}
	return nil
}

func checkNonEquivocation(_ *Engine, p *contracts.Proof) *Decision {
	if vs := equivocation.Check(p.CanonicalEvents); len(vs) > 0 {
		return &Decision{Status: contracts.StatusInvalid, Violations: vs}
	}
	return nil
}

// checkResultset holds proofs without a resultset as PENDING unless they
// try to conclude anyway.
func checkResultset(_ *Engine, p *contracts.Proof) *Decision {
	if p.ResultsetPresent {
		return nil
	}
	if p.TerminalPresent || p.Outcome != nil {
		return invalid(contracts.ViolationResultsetMissingButTerminal)
	}
	return &Decision{Status: contracts.StatusPending}
}

func checkEvidencePresent(_ *Engine, p *contracts.Proof) *Decision {
	if p.Evidence == nil {
		return invalid(contracts.ViolationEvidenceMissing)
	}
	return nil
}

func checkBasisConflict(_ *Engine, p *contracts.Proof) *Decision {
	if p.Outcome.Basis != p.Evidence.Effective {
		return &Decision{
			Status:     contracts.StatusContested,
			Violations: []contracts.ViolationCode{contracts.ViolationOutcomeBasisConflict},
		}
	}
	return nil
}

// evaluateEvidence always decides: VALID, a degraded status, or INVALID
// for unparsable ranks.
func evaluateEvidence(_ *Engine, p *contracts.Proof) *Decision {
	ev := p.Evidence
	eff, okEff := receipts.Rank(ev.Effective)
	req, okReq := receipts.Rank(ev.Required)
	if !okEff || !okReq {
		return invalid(contracts.ViolationEvidenceRequiredNotMet)
	}

	degraded := contracts.StatusAwaitingEvidence
	if receipts.HasNonClosableSignal(p.Receipts) {
		degraded = contracts.StatusNonClosable
	}
	if !ev.Qualified {
		return &Decision{Status: degraded, Violations: []contracts.ViolationCode{contracts.ViolationEvidenceNotQualified}}
	}
	if eff < req {
		return &Decision{Status: degraded, Violations: []contracts.ViolationCode{contracts.ViolationEvidenceRequiredNotMet}}
	}
	return &Decision{Status: contracts.StatusValid}
}
