package registry

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

const sampleRegistry = `{"items":[
  {"code":"SIGNATURE_INVALID","severity":"invalid","description":"bad signature"},
  {"code":"OUTCOME_BASIS_CONFLICT","severity":"contested","description":"conflict"},
  {"code":"EVIDENCE_NOT_QUALIFIED","severity":"awaiting_evidence","description":""}
]}`

func writeRegistry(t *testing.T, root, version, name, body string) {
	t.Helper()
	dir := filepath.Join(root, "registries", version)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o600))
}

func TestFSProvider(t *testing.T) {
	root := t.TempDir()
	writeRegistry(t, root, "v1", ViolationRegistryName, `{"items":[]}`)
	writeRegistry(t, root, "v1.4.0", ViolationRegistryName, `{"items":[{"code":"A","severity":"pending"}]}`)
	writeRegistry(t, root, "v2.1.0", ViolationRegistryName, `{"items":[{"code":"B","severity":"invalid"}]}`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "registries", "drafts"), 0o750))

	p := NewFSProvider(root)
	ctx := context.Background()

	b, err := p.LoadJSON(ctx, ViolationRegistryName, "v1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(b))

	b, err = p.LoadJSON(ctx, ViolationRegistryName, "^1")
	require.NoError(t, err)
	assert.Contains(t, string(b), `"A"`)

	b, err = p.LoadJSON(ctx, ViolationRegistryName, ">=2")
	require.NoError(t, err)
	assert.Contains(t, string(b), `"B"`)

	versions, err := p.Versions()
	require.NoError(t, err)
	assert.Equal(t, []string{"v2.1.0", "v1.4.0", "v1"}, versions)

	_, err = p.LoadJSON(ctx, "missing", "v1")
	assert.ErrorIs(t, err, ErrRegistryNotFound)
	_, err = p.LoadJSON(ctx, ViolationRegistryName, ">=9")
	assert.ErrorIs(t, err, ErrRegistryNotFound)
	_, err = p.LoadJSON(ctx, ViolationRegistryName, "not a version!")
	assert.ErrorIs(t, err, ErrRegistryNotFound)
	_, err = NewFSProvider(filepath.Join(root, "nope")).LoadJSON(ctx, ViolationRegistryName, "^1")
	assert.ErrorIs(t, err, ErrRegistryNotFound)
}

func TestStatic(t *testing.T) {
	s := NewStatic().Put("x", "v1", []byte(`{}`))
	b, err := s.LoadJSON(context.Background(), "x", "v1")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
	_, err = s.LoadJSON(context.Background(), "x", "v2")
	assert.ErrorIs(t, err, ErrRegistryNotFound)
}

type fakeS3 struct {
	objects map[string]string
	err     error
	lastKey string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.lastKey = aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[f.lastKey]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Provider(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"spec/registries/v1/violation_codes.json": sampleRegistry}}
	p := NewS3ProviderWithClient(fake, "bucket", "spec/")

	reg, err := LoadViolationRegistry(context.Background(), p, "")
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, "spec/registries/v1/violation_codes.json", fake.lastKey)

	_, err = p.LoadJSON(context.Background(), "other", "v1")
	assert.ErrorIs(t, err, ErrRegistryNotFound)

	fake.err = errors.New("access denied")
	_, err = p.LoadJSON(context.Background(), ViolationRegistryName, "v1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRegistryNotFound)
}

type fakeRedis map[string]string

func (f fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestRedisProvider(t *testing.T) {
	p := NewRedisProviderWithClient(fakeRedis{RedisKey(ViolationRegistryName, "v1"): sampleRegistry})
	assert.Equal(t, "immuva:registry:v1:violation_codes", RedisKey(ViolationRegistryName, "v1"))

	b, err := p.LoadJSON(context.Background(), ViolationRegistryName, "v1")
	require.NoError(t, err)
	assert.JSONEq(t, sampleRegistry, string(b))

	_, err = p.LoadJSON(context.Background(), ViolationRegistryName, "v2")
	assert.ErrorIs(t, err, ErrRegistryNotFound)
}

func TestRateLimited(t *testing.T) {
	p := NewRateLimited(NewStatic().Put("x", "v1", []byte(`{}`)), 0, 0)
	for i := 0; i < 5; i++ {
		_, err := p.LoadJSON(context.Background(), "x", "v1")
		require.NoError(t, err)
	}

	slow := NewRateLimited(NewStatic().Put("x", "v1", []byte(`{}`)), 0.001, 1)
	_, err := slow.LoadJSON(context.Background(), "x", "v1")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = slow.LoadJSON(ctx, "x", "v1")
	assert.Error(t, err)
}

func TestNewProviderFromConfig(t *testing.T) {
	ctx := context.Background()

	p, err := NewProviderFromConfig(ctx, ProviderConfig{SpecRoot: "/spec"})
	require.NoError(t, err)
	assert.IsType(t, &FSProvider{}, p)

	_, err = NewProviderFromConfig(ctx, ProviderConfig{Backend: BackendFS})
	assert.Error(t, err)

	_, err = NewProviderFromConfig(ctx, ProviderConfig{Backend: BackendRedis})
	assert.Error(t, err)

	p, err = NewProviderFromConfig(ctx, ProviderConfig{Backend: BackendRedis, RedisAddr: "localhost:6379", RateLimit: 5, Burst: 2})
	require.NoError(t, err)
	assert.IsType(t, &RateLimited{}, p)

	_, err = NewProviderFromConfig(ctx, ProviderConfig{Backend: BackendS3})
	assert.Error(t, err, "bucket required")

	_, err = NewProviderFromConfig(ctx, ProviderConfig{Backend: "ftp"})
	assert.Error(t, err)
}

func TestViolationRegistry(t *testing.T) {
	reg, err := ParseViolationRegistry([]byte(sampleRegistry))
	require.NoError(t, err)

	assert.Equal(t, contracts.SeverityContested, reg.Severity(contracts.ViolationOutcomeBasisConflict))
	assert.Equal(t, contracts.SeverityInvalid, reg.Severity("NEVER_REGISTERED"))
	e, ok := reg.Lookup(contracts.ViolationSignatureInvalid)
	require.True(t, ok)
	assert.Equal(t, "bad signature", e.Description)

	got := reg.Detail([]contracts.ViolationCode{contracts.ViolationEvidenceNotQualified, "X"})
	assert.Equal(t, []contracts.DetailedViolation{
		{Code: contracts.ViolationEvidenceNotQualified, Severity: contracts.SeverityAwaitingEvidence},
		{Code: "X", Severity: contracts.SeverityInvalid},
	}, got)

	for _, bad := range []string{
		`{}`,
		`{"items":[{"code":"A","severity":"fatal"}]}`,
		`{"items":[{"severity":"invalid"}]}`,
		`not json`,
	} {
		_, err := ParseViolationRegistry([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestCell_MemoizesSuccessOnly(t *testing.T) {
	var calls atomic.Int32
	fail := true
	p := ProviderFunc(func(_ context.Context, _, _ string) ([]byte, error) {
		calls.Add(1)
		if fail {
			return nil, errors.New("unavailable")
		}
		return []byte(sampleRegistry), nil
	})
	c := NewCell(p, "v1")

	_, err := c.Get(context.Background())
	require.Error(t, err)
	fail = false

	var wg sync.WaitGroup
	regs := make([]*ViolationRegistry, 8)
	for i := range regs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.Get(context.Background())
			assert.NoError(t, err)
			regs[i] = r
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(2), calls.Load())
	for _, r := range regs {
		assert.Same(t, regs[0], r)
	}
}

func TestProcessCell(t *testing.T) {
	root := t.TempDir()
	writeRegistry(t, root, "v1", ViolationRegistryName, sampleRegistry)
	a := Process(root, "")
	b := Process(root, DefaultVersion)
	assert.Same(t, a, b)
	reg, err := a.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())
}

func TestValidateManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "manifests"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{}`), 0o600))
	manifest := `{"manifest_version":"1","created_at":"2026-01-01T00:00:00Z","spec_version":"1.0.0","registries_version":"v1","files":[
	  {"path":"a.json","sha256":"44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a"},
	  {"path":"b.json","sha256":"00"}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifests", "registry-manifest.json"), []byte(manifest), 0o600))

	problems, err := ValidateManifest(dir)
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "b.json")

	_, err = ValidateManifest(t.TempDir())
	assert.Error(t, err)
}
