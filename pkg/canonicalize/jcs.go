// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization, the basis for every hash and signature in the protocol.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/gowebpki/jcs"
)

// ErrNonCanonicalValue is returned for values outside the JSON data model:
// NaN or infinite numbers, channels, functions, complex numbers, byte
// slices, maps with non-string keys, and invalid UTF-8 strings.
var ErrNonCanonicalValue = errors.New("canonicalize: non-canonical value")

// Result is a canonical JSON text together with its SHA-256 fingerprint.
type Result struct {
	Canonical string
	SHA256    string
}

// Canonicalize returns the canonical JSON text of v and the lowercase hex
// SHA-256 of its UTF-8 bytes.
func Canonicalize(v any) (Result, error) {
	b, err := JCS(v)
	if err != nil {
		return Result{}, err
	}
	return Result{Canonical: string(b), SHA256: HashBytes(b)}, nil
}

// CanonicalizeJSON parses raw JSON text and canonicalizes the decoded value.
// Number literals keep their full precision until the final RFC 8785
// formatting step.
func CanonicalizeJSON(data []byte) (Result, error) {
	v, err := decode(data)
	if err != nil {
		return Result{}, err
	}
	return Canonicalize(v)
}

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// Key features:
// 1. Object keys are sorted by UTF-16 code units, as RFC 8785 mandates.
// 2. No insignificant whitespace and no HTML escaping.
// 3. Numbers use the ECMAScript shortest round-trip form.
func JCS(v any) ([]byte, error) {
	normalized, err := normalize(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]any{normalized}); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrNonCanonicalValue, err)
	}

	// jcs.Transform only accepts a structured top-level value, so scalars
	// travel inside a one-element array that is stripped afterwards.
	out, err := jcs.Transform(bytes.TrimSpace(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonCanonicalValue, err)
	}
	return out[1 : len(out)-1], nil
}

// JCSString returns the JCS canonical form as a string.
func JCSString(v any) (string, error) {
	data, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON
// representation of v.
func CanonicalHash(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 of raw bytes and returns lowercase hex.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// SHA256Hex hashes the UTF-8 bytes of s.
func SHA256Hex(s string) string {
	return HashBytes([]byte(s))
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canonicalize: decode: %w", err)
	}
	if dec.More() {
		return nil, errors.New("canonicalize: decode: trailing data after JSON value")
	}
	return v, nil
}

var (
	jsonNumberType = reflect.TypeOf(json.Number(""))
	marshalerType  = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// normalize walks v and rebuilds it from the JSON data model only, failing
// on anything that has no JSON representation.
func normalize(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	if v.Type() == jsonNumberType {
		return checkNumber(json.Number(v.String()))
	}
	if v.Type().Implements(marshalerType) && v.Kind() != reflect.Interface {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return nil, nil
		}
		return viaMarshal(v.Interface())
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return normalize(v.Elem())
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return json.Number(strconv.FormatInt(v.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return json.Number(strconv.FormatUint(v.Uint(), 10)), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite number", ErrNonCanonicalValue)
		}
		return f, nil
	case reflect.String:
		s := v.String()
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("%w: invalid UTF-8 string", ErrNonCanonicalValue)
		}
		return s, nil
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil, fmt.Errorf("%w: byte slice", ErrNonCanonicalValue)
		}
		return normalizeList(v)
	case reflect.Array:
		return normalizeList(v)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key type %s", ErrNonCanonicalValue, v.Type().Key())
		}
		if v.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			if !utf8.ValidString(k) {
				return nil, fmt.Errorf("%w: invalid UTF-8 key", ErrNonCanonicalValue)
			}
			elem, err := normalize(iter.Value())
			if err != nil {
				return nil, err
			}
			out[k] = elem
		}
		return out, nil
	case reflect.Struct:
		return viaMarshal(v.Interface())
	default:
		return nil, fmt.Errorf("%w: unsupported type %s", ErrNonCanonicalValue, v.Type())
	}
}

func normalizeList(v reflect.Value) (any, error) {
	out := make([]any, v.Len())
	for i := range out {
		elem, err := normalize(v.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = elem
	}
	return out, nil
}

// viaMarshal honours json tags and custom marshalers, then re-checks the
// decoded result.
func viaMarshal(v any) (any, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonCanonicalValue, err)
	}
	generic, err := decode(intermediate)
	if err != nil {
		return nil, err
	}
	return normalize(reflect.ValueOf(generic))
}

func checkNumber(n json.Number) (any, error) {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("%w: number %q", ErrNonCanonicalValue, string(n))
	}
	return n, nil
}
