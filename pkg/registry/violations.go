package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
	"github.com/Mindburn-Labs/immuva/pkg/schema"
)

const (
	ViolationRegistryName = "violation_codes"
	DefaultVersion        = "v1"
)

var violationSchema = schema.MustCompile("violation-registry", `{
  "type": "object",
  "required": ["items"],
  "properties": {
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["code", "severity"],
        "properties": {
          "code": {"type": "string", "minLength": 1},
          "severity": {"enum": ["invalid", "pending", "awaiting_evidence", "contested", "non_closable"]},
          "description": {"type": "string"}
        }
      }
    }
  }
}`)

// Entry describes one violation code.
type Entry struct {
	Code        contracts.ViolationCode `json:"code"`
	Severity    contracts.Severity      `json:"severity"`
	Description string                  `json:"description"`
}

// ViolationRegistry maps violation codes to severities. It is immutable
// once parsed.
type ViolationRegistry struct {
	entries map[contracts.ViolationCode]Entry
}

// ParseViolationRegistry validates and indexes a {"items":[...]} document.
// Later duplicates of a code win.
func ParseViolationRegistry(data []byte) (*ViolationRegistry, error) {
	if _, err := schema.ValidateJSON(violationSchema, data); err != nil {
		return nil, fmt.Errorf("registry: violation codes: %w", err)
	}
	var doc struct {
		Items []Entry `json:"items"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: violation codes: %w", err)
	}
	r := &ViolationRegistry{entries: make(map[contracts.ViolationCode]Entry, len(doc.Items))}
	for _, e := range doc.Items {
		r.entries[e.Code] = e
	}
	return r, nil
}

// LoadViolationRegistry fetches and parses the violation registry.
func LoadViolationRegistry(ctx context.Context, p Provider, version string) (*ViolationRegistry, error) {
	if version == "" {
		version = DefaultVersion
	}
	data, err := p.LoadJSON(ctx, ViolationRegistryName, version)
	if err != nil {
		return nil, err
	}
	return ParseViolationRegistry(data)
}

func (r *ViolationRegistry) Lookup(code contracts.ViolationCode) (Entry, bool) {
	e, ok := r.entries[code]
	return e, ok
}

// Severity returns the registered severity, or invalid for unknown codes.
func (r *ViolationRegistry) Severity(code contracts.ViolationCode) contracts.Severity {
	if e, ok := r.entries[code]; ok {
		return e.Severity
	}
	return contracts.SeverityInvalid
}

func (r *ViolationRegistry) Len() int { return len(r.entries) }

// Detail maps codes to {code, severity} pairs in order.
func (r *ViolationRegistry) Detail(codes []contracts.ViolationCode) []contracts.DetailedViolation {
	out := make([]contracts.DetailedViolation, len(codes))
	for i, c := range codes {
		out[i] = contracts.DetailedViolation{Code: c, Severity: r.Severity(c)}
	}
	return out
}
