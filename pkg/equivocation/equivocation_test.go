package equivocation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
	"github.com/Mindburn-Labs/immuva/pkg/equivocation"
)

var violation = []contracts.ViolationCode{contracts.ViolationNonEquivocation}

func TestCheck_SameEventDifferentKeyOrder(t *testing.T) {
	a := `{"action_id":"a1","amount":10}`
	b := `{ "amount": 10, "action_id": "a1" }`
	assert.Empty(t, equivocation.Check([]string{a, b}))
}

func TestCheck_Conflict(t *testing.T) {
	a := `{"action_id":"a1","amount":10}`
	b := `{"action_id":"a1","amount":11}`
	assert.Equal(t, violation, equivocation.Check([]string{a, b}))
}

func TestCheck_FailsClosedOnParseError(t *testing.T) {
	assert.Equal(t, violation, equivocation.Check([]string{`{"a":1}`, `{"a":`}))
	assert.Equal(t, violation, equivocation.Check([]string{`not json`}))
}

func TestCheck_EmptyAndSingle(t *testing.T) {
	assert.Empty(t, equivocation.Check(nil))
	assert.Empty(t, equivocation.Check([]string{`{"x":[1,2]}`}))
}

func TestNormalize(t *testing.T) {
	got, err := equivocation.Normalize([]string{`{"b":1.0,"a":[true]}`, `"s"`})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":[true],"b":1}`, `"s"`}, got)

	_, err = equivocation.Normalize([]string{`{"a":1} trailing`})
	assert.Error(t, err)
}

func TestIsNonEquivocating(t *testing.T) {
	assert.True(t, equivocation.IsNonEquivocating(nil))
	assert.True(t, equivocation.IsNonEquivocating([]string{"x", "x"}))
	assert.False(t, equivocation.IsNonEquivocating([]string{"x", "y", "x"}))
}
