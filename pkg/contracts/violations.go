package contracts

// ViolationCode is a stable, versioned identifier for a rule breach.
type ViolationCode string

// Structural and evidentiary codes emitted by the verdict pipeline.
const (
	ViolationCryptoSuiteUnknown          ViolationCode = "CRYPTO_SUITE_UNKNOWN"
	ViolationPublicKeyRequired           ViolationCode = "PUBLIC_KEY_REQUIRED"
	ViolationReceiptKindNotAllowed       ViolationCode = "RECEIPT_KIND_NOT_ALLOWED"
	ViolationReceiptLateAfterNonClosable ViolationCode = "RECEIPT_LATE_AFTER_NON_CLOSABLE"
	ViolationOutcomeBasisNotAllowed      ViolationCode = "OUTCOME_BASIS_NOT_ALLOWED"
	ViolationSignatureInvalid            ViolationCode = "SIGNATURE_INVALID"
	ViolationKeyBindingMismatch          ViolationCode = "KEY_BINDING_MISMATCH"
	ViolationKeyIDRequired               ViolationCode = "KEY_ID_REQUIRED"
	ViolationKeyIDMismatch               ViolationCode = "KEY_ID_MISMATCH"
	ViolationKeyRevoked                  ViolationCode = "KEY_REVOKED"
	ViolationNonEquivocation             ViolationCode = "NON_EQUIVOCATION_VIOLATION"
	ViolationResultsetMissingButTerminal ViolationCode = "RESULTSET_MISSING_BUT_TERMINAL"
	ViolationEvidenceMissing             ViolationCode = "EVIDENCE_MISSING"
	ViolationOutcomeBasisConflict        ViolationCode = "OUTCOME_BASIS_CONFLICT"
	ViolationEvidenceRequiredNotMet      ViolationCode = "EVIDENCE_REQUIRED_NOT_MET"
	ViolationEvidenceNotQualified        ViolationCode = "EVIDENCE_NOT_QUALIFIED"
	ViolationRegistryUnavailable         ViolationCode = "REGISTRY_UNAVAILABLE"
)

// Policy-stage codes. Their relative order is fixed by the policy
// violation priority table.
const (
	ViolationPolicyRevoked                ViolationCode = "POLICY_REVOKED"
	ViolationPolicySignatureRequired      ViolationCode = "POLICY_SIGNATURE_REQUIRED"
	ViolationPolicySignatureInvalid       ViolationCode = "POLICY_SIGNATURE_INVALID"
	ViolationPolicyTrustKeyMismatch       ViolationCode = "POLICY_TRUST_KEY_MISMATCH"
	ViolationPolicyCanonicalMismatch      ViolationCode = "POLICY_CANONICAL_MISMATCH"
	ViolationPolicyCanonicalHashMismatch  ViolationCode = "POLICY_CANONICAL_HASH_MISMATCH"
	ViolationPolicyRevocationListRequired ViolationCode = "POLICY_REVOCATION_LIST_REQUIRED"
	ViolationPolicyRevocationListInvalid  ViolationCode = "POLICY_REVOCATION_LIST_INVALID"
	ViolationMinProofLevelNotMet          ViolationCode = "MIN_PROOF_LEVEL_NOT_MET"
	ViolationKeyBindingRequired           ViolationCode = "KEY_BINDING_REQUIRED"
	ViolationTimeAnchorRequired           ViolationCode = "TIME_ANCHOR_REQUIRED"
	ViolationTransparencyLogRequired      ViolationCode = "TRANSPARENCY_LOG_REQUIRED"
)

// Lifecycle FSM codes.
const (
	FSMCrossActionID        ViolationCode = "FSM_CROSS_ACTION_ID"
	FSMInvalidOrder         ViolationCode = "FSM_INVALID_ORDER"
	FSMDoubleFinish         ViolationCode = "FSM_DOUBLE_FINISH"
	FSMEventMissingActionID ViolationCode = "FSM_EVENT_MISSING_ACTION_ID"
	FSMNoInput              ViolationCode = "FSM_NO_INPUT"
	FSMInternalError        ViolationCode = "FSM_INTERNAL_ERROR"
)
