package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tokenhold/pkg/domain-errors"
)

func TestAmount_Arithmetic(t *testing.T) {
	t.Run("sub refuses to underflow", func(t *testing.T) {
		_, err := NewAmount(1).Sub(NewAmount(2))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("add refuses to overflow 256 bits", func(t *testing.T) {
		max, err := ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
		require.NoError(t, err)
		_, err = max.Add(NewAmount(1))
		require.Error(t, err)
	})

	t.Run("zero value behaves as zero", func(t *testing.T) {
		var a Amount
		assert.True(t, a.IsZero())
		assert.Equal(t, "0", a.String())
		sum, err := a.Add(NewAmount(5))
		require.NoError(t, err)
		assert.True(t, sum.Equal(NewAmount(5)))
	})

	t.Run("granularity", func(t *testing.T) {
		assert.True(t, NewAmount(600).IsMultipleOf(NewAmount(100)))
		assert.False(t, NewAmount(650).IsMultipleOf(NewAmount(100)))
		assert.False(t, NewAmount(600).IsMultipleOf(ZeroAmount))
	})

	t.Run("results do not alias operands", func(t *testing.T) {
		a := NewAmount(10)
		b, err := a.Add(NewAmount(1))
		require.NoError(t, err)
		assert.Equal(t, "10", a.String())
		assert.Equal(t, "11", b.String())
	})
}

func TestAmount_JSON(t *testing.T) {
	var payload struct {
		Value Amount `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"value":"600"}`), &payload))
	assert.Equal(t, "600", payload.Value.String())

	require.NoError(t, json.Unmarshal([]byte(`{"value":42}`), &payload))
	assert.Equal(t, "42", payload.Value.String())

	require.Error(t, json.Unmarshal([]byte(`{"value":"-3"}`), &payload))

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"42"}`, string(out))
}
