package sdk

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Mindburn-Labs/immuva/pkg/canonicalize"
	"github.com/Mindburn-Labs/immuva/pkg/config"
	"github.com/Mindburn-Labs/immuva/pkg/contracts"
	"github.com/Mindburn-Labs/immuva/pkg/crypto"
	"github.com/Mindburn-Labs/immuva/pkg/merkle"
	"github.com/Mindburn-Labs/immuva/pkg/observability"
	"github.com/Mindburn-Labs/immuva/pkg/policy"
	"github.com/Mindburn-Labs/immuva/pkg/policysig"
	"github.com/Mindburn-Labs/immuva/pkg/registry"
	"github.com/Mindburn-Labs/immuva/pkg/tlog"
	"github.com/Mindburn-Labs/immuva/pkg/verdict"
)

const violationCodes = `{"items":[
  {"code":"SIGNATURE_INVALID","severity":"invalid"},
  {"code":"KEY_BINDING_REQUIRED","severity":"invalid"},
  {"code":"EVIDENCE_NOT_QUALIFIED","severity":"awaiting_evidence"}
]}`

func testKeys(t *testing.T) crypto.Keypair {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	seed[31] = 9
	kp, err := crypto.KeypairFromSeed(seed)
	require.NoError(t, err)
	return kp
}

func newClient(opts ...Option) *Client {
	reg := registry.NewStatic().Put(registry.ViolationRegistryName, registry.DefaultVersion, []byte(violationCodes))
	return New(append([]Option{WithEngineOptions(verdict.WithRegistry(reg))}, opts...)...)
}

func proveRequest(kp crypto.Keypair) ProveRequest {
	return ProveRequest{
		Event:            map[string]any{"amount": 10, "action": "pay"},
		PrivateKeyHex:    kp.PrivateKeyHex,
		PublicKeyHex:     kp.PublicKeyHex,
		ResultsetPresent: true,
		Evidence:         &contracts.Evidence{Effective: "R2", Required: "R2", Qualified: true},
		Pointers:         &contracts.Pointers{ActionID: "act-1"},
	}
}

func TestProve(t *testing.T) {
	kp := testKeys(t)
	p, err := newClient().Prove(context.Background(), proveRequest(kp))
	require.NoError(t, err)

	assert.Equal(t, `{"action":"pay","amount":10}`, p.CanonicalEvent)
	require.NotNil(t, p.Signing)
	assert.Equal(t, crypto.SuiteV2Ed25519SHA256, p.Signing.CryptoSuite)
	assert.Equal(t, kp.PublicKeyHex, p.Signing.PublicKey)
	assert.True(t, crypto.VerifyEventSignature(p.CanonicalEvent, p.Signing))

	require.NotNil(t, p.KeyBinding)
	assert.Equal(t, canonicalize.SHA256Hex(p.CanonicalEvent), p.KeyBinding.KeyID)
	assert.Equal(t, contracts.KeyStatusActive, p.KeyBinding.KeyStatus)
	assert.Equal(t, "act-1", p.Pointers.ActionID)
	assert.False(t, p.HasTransparencyLog())
	assert.Equal(t, p.KeyBinding.KeyID, ProofID(p))
}

func TestProve_Errors(t *testing.T) {
	kp := testKeys(t)
	c := newClient()
	ctx := context.Background()

	other, err := GenerateKeypair()
	require.NoError(t, err)
	req := proveRequest(kp)
	req.PublicKeyHex = other.PublicKeyHex
	_, err = c.Prove(ctx, req)
	assert.ErrorIs(t, err, ErrPublicKeyMismatch)

	req = proveRequest(kp)
	req.PrivateKeyHex = "zz"
	_, err = c.Prove(ctx, req)
	assert.ErrorIs(t, err, crypto.ErrInvalidKeyMaterial)

	req = proveRequest(kp)
	req.Event = map[string]any{"f": math.Inf(1)}
	_, err = c.Prove(ctx, req)
	assert.ErrorIs(t, err, canonicalize.ErrNonCanonicalValue)
}

func TestProveThenVerify(t *testing.T) {
	kp := testKeys(t)
	c := newClient()
	ctx := context.Background()

	p, err := c.Prove(ctx, proveRequest(kp))
	require.NoError(t, err)

	v := c.Verify(ctx, p, VerifyOptions{})
	assert.Equal(t, contracts.StatusValid, v.Status)
	assert.Equal(t, contracts.ModeOffline, v.Mode)
	assert.Equal(t, contracts.ProofLevelKeyBound, v.ProofLevel)
	assert.Empty(t, v.Violations)

	online := false
	v = c.Verify(ctx, p, VerifyOptions{Offline: &online})
	assert.Empty(t, v.Mode)

	v = c.Verify(ctx, p, VerifyOptions{RequireTimeAnchor: true})
	assert.Equal(t, contracts.StatusInvalid, v.Status)
	require.Len(t, v.Violations, 1)
	assert.Equal(t, contracts.ViolationTimeAnchorRequired, v.Violations[0].Code)
}

func TestVerify_FailsClosedWithoutV2Signature(t *testing.T) {
	kp := testKeys(t)
	c := newClient()
	ctx := context.Background()

	p, err := c.Prove(ctx, proveRequest(kp))
	require.NoError(t, err)

	cases := map[string]func(p *contracts.Proof){
		"no signing":    func(p *contracts.Proof) { p.Signing = nil },
		"legacy suite":  func(p *contracts.Proof) { p.Signing.CryptoSuite = crypto.SuiteV1SHA256 },
		"no public key": func(p *contracts.Proof) { p.Signing.PublicKey = "" },
		"no signature":  func(p *contracts.Proof) { p.Signing.Signature = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cp := *p
			sb := *p.Signing
			cp.Signing = &sb
			mutate(&cp)
			v := c.Verify(ctx, &cp, VerifyOptions{})
			assert.Equal(t, contracts.DetailedVerdict{
				Status:     contracts.StatusInvalid,
				Violations: []contracts.DetailedViolation{{Code: contracts.ViolationSignatureInvalid, Severity: contracts.SeverityInvalid}},
			}, v)
		})
	}
	assert.Equal(t, contracts.StatusInvalid, c.Verify(ctx, nil, VerifyOptions{}).Status)
}

func TestVerify_TamperedEvent(t *testing.T) {
	kp := testKeys(t)
	c := newClient()
	ctx := context.Background()

	p, err := c.Prove(ctx, proveRequest(kp))
	require.NoError(t, err)
	p.CanonicalEvent = `{"action":"pay","amount":11}`

	v := c.Verify(ctx, p, VerifyOptions{})
	assert.Equal(t, contracts.StatusInvalid, v.Status)
	require.Len(t, v.Violations, 1)
	assert.Equal(t, contracts.ViolationSignatureInvalid, v.Violations[0].Code)
}

func TestVerify_RegistryUnavailable(t *testing.T) {
	t.Setenv(verdict.SpecRootEnv, "")
	kp := testKeys(t)
	c := New()
	ctx := context.Background()

	p, err := c.Prove(ctx, proveRequest(kp))
	require.NoError(t, err)
	v := c.Verify(ctx, p, VerifyOptions{})
	assert.Equal(t, contracts.StatusInvalid, v.Status)
	assert.Equal(t, contracts.ViolationRegistryUnavailable, v.Violations[0].Code)
}

func TestProve_TransparencyLog(t *testing.T) {
	kp := testKeys(t)
	log := tlog.New(tlog.NewMemoryStore())
	c := newClient(WithTransparencyLog(log))
	ctx := context.Background()

	var last *contracts.Proof
	for i := 0; i < 3; i++ {
		req := proveRequest(kp)
		req.Event = map[string]any{"action": "pay", "seq": i}
		p, err := c.Prove(ctx, req)
		require.NoError(t, err)
		require.True(t, p.HasTransparencyLog())
		require.NoError(t, verdict.VerifyTransparencyAttachment(p))
		last = p
	}

	var incl contracts.TLInclusionProof
	require.NoError(t, json.Unmarshal(last.TransparencyLog, &incl))
	assert.Equal(t, 2, incl.LeafIndex)
	assert.Equal(t, 3, incl.TreeSize)
	assert.True(t, merkle.VerifyInclusion(incl))

	v := c.Verify(ctx, last, VerifyOptions{RequireTransparencyLog: true})
	assert.Equal(t, contracts.StatusValid, v.Status)
	assert.Equal(t, contracts.ProofLevelTransparencyLogged, v.ProofLevel)
	assert.Same(t, log, c.TransparencyLog())
}

func TestVerify_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	obs, err := observability.NewWithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), nil)
	require.NoError(t, err)

	kp := testKeys(t)
	c := newClient(WithObservability(obs))
	ctx := context.Background()
	p, err := c.Prove(ctx, proveRequest(kp))
	require.NoError(t, err)
	c.Verify(ctx, p, VerifyOptions{})
	c.Verify(ctx, &contracts.Proof{}, VerifyOptions{})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["immuva.verdicts.total"])
	assert.True(t, names["immuva.violations.total"])
	assert.True(t, names["immuva.proofs.total"])
	assert.True(t, names["immuva.operation.duration"])
	require.NoError(t, c.Close(ctx))
}

func writeSignedPolicy(t *testing.T, dir, name string, data, seed []byte) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	doc, err := policy.ParseDocument(data, filepath.Ext(name))
	require.NoError(t, err)
	env, err := policysig.Sign(doc.Raw, seed)
	require.NoError(t, err)
	b, err := policysig.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path+policy.EnvelopeSuffix, b, 0o600))
}

// policyProfile returns a profile over a fresh policy directory and the
// seed whose public key the profile trusts.
func policyProfile(t *testing.T) (prof *config.Profile, policies string, seed []byte) {
	t.Helper()
	dir := t.TempDir()
	seed = make([]byte, ed25519.SeedSize)
	seed[0] = 3
	pub := hex.EncodeToString(ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey))

	policies = filepath.Join(dir, "policies")
	require.NoError(t, os.Mkdir(policies, 0o755))
	keyFile := filepath.Join(dir, "policy.pub")
	require.NoError(t, os.WriteFile(keyFile, []byte(pub), 0o600))

	prof, err := config.ParseProfile([]byte("name: strict\nrequire:\n  key_bound: true\npolicy_dir: " + policies + "\ntrusted_key_file: " + keyFile + "\n"))
	require.NoError(t, err)
	return prof, policies, seed
}

func TestOptionsFromProfile(t *testing.T) {
	prof, policies, seed := policyProfile(t)
	writeSignedPolicy(t, policies, "p1.json", []byte(`{"policy_id":"p1","min_proof_level":"TIME_ANCHORED"}`), seed)

	opts, err := OptionsFromProfile(prof)
	require.NoError(t, err)
	assert.True(t, opts.RequireKeyBound)
	assert.Empty(t, opts.PolicyRejections)
	require.NotNil(t, opts.Policy)
	assert.Equal(t, contracts.ProofLevelTimeAnchored, opts.Policy.MinProofLevel)

	kp := testKeys(t)
	c := newClient()
	p, err := c.Prove(context.Background(), proveRequest(kp))
	require.NoError(t, err)
	v := c.Verify(context.Background(), p, opts)
	assert.Equal(t, contracts.StatusInvalid, v.Status)
	assert.Equal(t, contracts.ViolationMinProofLevelNotMet, v.Violations[0].Code)

	prof.TrustedKeyFile = ""
	_, err = OptionsFromProfile(prof)
	assert.Error(t, err)
}

func TestOptionsFromProfile_ProofLevelAlwaysReported(t *testing.T) {
	prof, err := config.ParseProfile([]byte("name: lax\nproof_levels: false\n"))
	require.NoError(t, err)
	opts, err := OptionsFromProfile(prof)
	require.NoError(t, err)

	c := newClient()
	p, err := c.Prove(context.Background(), proveRequest(testKeys(t)))
	require.NoError(t, err)
	v := c.Verify(context.Background(), p, opts)
	assert.Equal(t, contracts.StatusValid, v.Status)
	assert.Equal(t, contracts.ProofLevelKeyBound, v.ProofLevel)
}

func TestOptionsFromProfile_TamperedAndUnsignedPoliciesFailClosed(t *testing.T) {
	prof, policies, seed := policyProfile(t)
	writeSignedPolicy(t, policies, "p1.json", []byte(`{"policy_id":"p1","min_proof_level":"TRANSPARENCY_LOGGED"}`), seed)
	// Weaken the signed policy on disk after signing.
	require.NoError(t, os.WriteFile(filepath.Join(policies, "p1.json"), []byte(`{"policy_id":"p1","min_proof_level":"BASIC"}`), 0o600))
	// No envelope at all.
	require.NoError(t, os.WriteFile(filepath.Join(policies, "p2.json"), []byte(`{"policy_id":"p2","require":{"time_anchor":true}}`), 0o600))

	opts, err := OptionsFromProfile(prof)
	require.NoError(t, err)
	assert.Equal(t, []contracts.ViolationCode{
		contracts.ViolationPolicySignatureRequired,
		contracts.ViolationPolicyCanonicalMismatch,
	}, opts.PolicyRejections)

	c := newClient()
	ctx := context.Background()
	p, err := c.Prove(ctx, proveRequest(testKeys(t)))
	require.NoError(t, err)

	v := c.Verify(ctx, p, opts)
	assert.Equal(t, contracts.DetailedVerdict{
		Status: contracts.StatusInvalid,
		Violations: []contracts.DetailedViolation{
			{Code: contracts.ViolationPolicySignatureRequired, Severity: contracts.SeverityInvalid},
			{Code: contracts.ViolationPolicyCanonicalMismatch, Severity: contracts.SeverityInvalid},
		},
	}, v)

	// Only the unsigned policy left: still closed.
	require.NoError(t, os.Remove(filepath.Join(policies, "p1.json")))
	require.NoError(t, os.Remove(filepath.Join(policies, "p1.json"+policy.EnvelopeSuffix)))
	opts, err = OptionsFromProfile(prof)
	require.NoError(t, err)
	v = c.Verify(ctx, p, opts)
	assert.Equal(t, contracts.StatusInvalid, v.Status)
	require.Len(t, v.Violations, 1)
	assert.Equal(t, contracts.ViolationPolicySignatureRequired, v.Violations[0].Code)
}

func TestNewFromConfig(t *testing.T) {
	specRoot := t.TempDir()
	regDir := filepath.Join(specRoot, "registries", "v1")
	require.NoError(t, os.MkdirAll(regDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(regDir, "violation_codes.json"), []byte(violationCodes), 0o600))

	t.Setenv("IMMUVA_SPEC_ROOT", specRoot)
	t.Setenv("IMMUVA_TLOG_DSN", "file:"+filepath.Join(t.TempDir(), "tlog.db"))
	cfg, err := config.Load()
	require.NoError(t, err)

	ctx := context.Background()
	c, err := NewFromConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(ctx) })
	require.NotNil(t, c.TransparencyLog())

	p, err := c.Prove(ctx, proveRequest(testKeys(t)))
	require.NoError(t, err)
	v := c.Verify(ctx, p, VerifyOptions{})
	assert.Equal(t, contracts.StatusValid, v.Status)
	assert.Equal(t, contracts.ProofLevelTransparencyLogged, v.ProofLevel)
	assert.NotNil(t, c.Engine())
}

func TestNewFromConfig_RequiresRegistry(t *testing.T) {
	_, err := NewFromConfig(context.Background(), &config.Config{RegistryBackend: "fs"})
	assert.Error(t, err)

	_, err = NewFromConfig(context.Background(), &config.Config{RegistryBackend: "ftp", SpecRoot: t.TempDir()})
	assert.Error(t, err)
}
