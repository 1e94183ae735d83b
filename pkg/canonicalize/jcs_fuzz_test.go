package canonicalize

import (
	"testing"
)

func FuzzCanonicalizeJSON(f *testing.F) {
	f.Add([]byte(`{"a":1,"b":2}`))
	f.Add([]byte(`{"z":{"y":"foo","x":"bar"},"a":1}`))
	f.Add([]byte(`{"html":"<script>alert('xss')</script> &"}`))
	f.Add([]byte(`{"num":123.456,"bool":true,"null":null}`))
	f.Add([]byte(`{"arr":[3,1,2],"nested":{"deep":{"key":"val"}}}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"":"empty_key","a":""}`))
	f.Add([]byte(`{"unicode":"こんにちは","emoji":"🚀"}`))
	f.Add([]byte(`{"escape":"line1\nline2\ttab"}`))
	f.Add([]byte(`[1e308, -0, 0.1, 100000000000000000000000]`))
	f.Add([]byte(`"scalar"`))

	f.Fuzz(func(t *testing.T, data []byte) {
		first, err := CanonicalizeJSON(data)
		if err != nil {
			return
		}

		second, err := CanonicalizeJSON(data)
		if err != nil {
			t.Fatal("CanonicalizeJSON returned error on second call but not first")
		}
		if first != second {
			t.Errorf("non-deterministic:\n  first:  %s\n  second: %s", first.Canonical, second.Canonical)
		}

		// Idempotence: canonical text re-canonicalizes to itself.
		again, err := CanonicalizeJSON([]byte(first.Canonical))
		if err != nil {
			t.Fatalf("canonical output does not re-parse: %s: %v", first.Canonical, err)
		}
		if again.Canonical != first.Canonical {
			t.Errorf("not idempotent:\n  once:  %s\n  twice: %s", first.Canonical, again.Canonical)
		}
		if again.SHA256 != first.SHA256 {
			t.Errorf("hash drift: %s != %s", first.SHA256, again.SHA256)
		}
	})
}
