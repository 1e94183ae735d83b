package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/immuva/pkg/canonicalize"
	"github.com/Mindburn-Labs/immuva/pkg/policysig"
	"github.com/Mindburn-Labs/immuva/pkg/schema"
)

// EnvelopeSuffix is appended to a policy path to find its signature.
const EnvelopeSuffix = ".sig"

var documentSchema = schema.MustCompile("policy", `{
  "type": "object",
  "required": ["policy_id"],
  "properties": {
    "policy_id": {"type": "string", "minLength": 1},
    "issuer": {"type": "string"},
    "issued_at": {"type": ["string", "null"]},
    "min_proof_level": {"enum": ["BASIC", "KEY_BOUND", "TIME_ANCHORED", "TRANSPARENCY_LOGGED"]},
    "require": {
      "type": "object",
      "properties": {
        "key_bound": {"type": "boolean"},
        "time_anchor": {"type": "boolean"},
        "transparency_log": {"type": "boolean"}
      }
    }
  }
}`)

// Document is a loaded policy. Raw keeps the document in the JSON data
// model so it can be re-canonicalized against its envelope; unknown fields
// survive in Raw and are covered by the signature.
type Document struct {
	Source   string
	Raw      any
	Policy   RawPolicy
	Envelope *policysig.Envelope
}

// Verify checks the document's envelope against a trusted key.
func (d *Document) Verify(trustedKeyHex string) policysig.Result {
	return policysig.Verify(d.Raw, d.Envelope, trustedKeyHex)
}

// ParseDocument decodes a JSON or YAML policy. format is the file extension
// (".json", ".yaml", ".yml"); anything else is treated as JSON.
func ParseDocument(data []byte, format string) (*Document, error) {
	var generic any
	switch strings.ToLower(format) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("policy: parse yaml: %w", err)
		}
		// Route YAML through canonical JSON so both formats share one model.
		canonical, err := canonicalize.JCS(generic)
		if err != nil {
			return nil, fmt.Errorf("policy: normalize yaml: %w", err)
		}
		data = canonical
	}

	raw, err := schema.ValidateJSON(documentSchema, data)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}

	var p RawPolicy
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("policy: decode: %w", err)
	}
	return &Document{Raw: raw, Policy: p}, nil
}

// LoadDocument reads a policy file and, when present, its sibling
// "<path>.sig" envelope.
func LoadDocument(path string) (*Document, error) {
	//nolint:gosec // G304: caller-selected policy path
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	doc, err := ParseDocument(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	doc.Source = path

	sigPath := path + EnvelopeSuffix
	if _, err := os.Stat(sigPath); err == nil {
		env, err := policysig.LoadEnvelope(sigPath)
		if err != nil {
			return nil, err
		}
		doc.Envelope = env
	}
	return doc, nil
}

// Loader loads and manages policy documents from a directory.
type Loader struct {
	mu       sync.RWMutex
	docs     map[string]*Document // policy_id -> document
	dir      string
	onReload func(doc *Document)
}

// NewLoader creates a loader for the given directory.
func NewLoader(dir string) *Loader {
	return &Loader{
		docs: make(map[string]*Document),
		dir:  dir,
	}
}

// OnReload registers a callback invoked whenever a document is loaded.
func (l *Loader) OnReload(fn func(doc *Document)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReload = fn
}

// LoadAll loads every .json, .yaml and .yml policy in the directory.
func (l *Loader) LoadAll() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("policy: read dir %s: %w", l.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		if err := l.LoadFile(filepath.Join(l.dir, entry.Name())); err != nil {
			return fmt.Errorf("policy: load %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// LoadFile loads one policy document, replacing any with the same id.
func (l *Loader) LoadFile(path string) error {
	doc, err := LoadDocument(path)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.docs[doc.Policy.PolicyID] = doc
	callback := l.onReload
	l.mu.Unlock()

	if callback != nil {
		callback(doc)
	}
	return nil
}

// Get returns a loaded document by policy id.
func (l *Loader) Get(policyID string) (*Document, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.docs[policyID]
	return d, ok
}

// Documents returns all loaded documents sorted by policy id.
func (l *Loader) Documents() []*Document {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Document, 0, len(l.docs))
	for _, d := range l.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Policy.PolicyID < out[j].Policy.PolicyID })
	return out
}

// Effective composes every document whose envelope verifies against the
// trusted key. Documents that fail are returned with their codes.
func (l *Loader) Effective(trustedKeyHex string) (EffectivePolicy, map[string]policysig.Result) {
	var accepted []RawPolicy
	rejected := make(map[string]policysig.Result)
	for _, d := range l.Documents() {
		if res := d.Verify(trustedKeyHex); !res.OK {
			rejected[d.Policy.PolicyID] = res
			continue
		}
		accepted = append(accepted, d.Policy)
	}
	return Compose(accepted...), rejected
}
