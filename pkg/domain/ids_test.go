package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "testament/pkg/domain-errors"
)

// TestParseTestamentID_Invariants validates the parsing invariant:
// "testament IDs must be valid, non-empty, non-nil UUIDs"
func TestParseTestamentID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseTestamentID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseTestamentID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseTestamentID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		parsed, err := ParseTestamentID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, TestamentID(valid), parsed)
	})
}

// TestParseAccountID_NullIdentity documents that the null identity parses: it
// is the service, not the parser, that decides it is not a valid beneficiary.
func TestParseAccountID_NullIdentity(t *testing.T) {
	account, err := ParseAccountID(uuid.Nil.String())
	require.NoError(t, err)
	assert.True(t, account.IsNil())

	account, err = ParseAccountID(uuid.New().String())
	require.NoError(t, err)
	assert.False(t, account.IsNil())
}

// TestParseID_SecurityInvariants validates that parsing rejects attack vectors at
// API entry points.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE bequests;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400\u200B-e29b-41d4-a716-446655440000", true},
		{"Empty string", "", true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAccountID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAccountID_TextRoundTrip(t *testing.T) {
	account := AccountID(uuid.New())
	text, err := account.MarshalText()
	require.NoError(t, err)

	var decoded AccountID
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, account, decoded)
}

func TestAmount(t *testing.T) {
	t.Run("rejects negative values", func(t *testing.T) {
		_, err := NewAmount(-1)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeValidation, ReasonNegativeAmount))
	})

	t.Run("accepts zero", func(t *testing.T) {
		a, err := NewAmount(0)
		require.NoError(t, err)
		assert.True(t, a.IsZero())
	})

	t.Run("add refuses to overflow", func(t *testing.T) {
		big := Amount(1<<63 - 1)
		_, err := big.Add(1)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeValidation, ReasonAmountOverflow))

		sum, err := Amount(1000).Add(250)
		require.NoError(t, err)
		assert.Equal(t, Amount(1250), sum)
	})

	t.Run("sub refuses to go negative", func(t *testing.T) {
		_, err := Amount(10).Sub(11)
		require.Error(t, err)

		rest, err := Amount(10).Sub(10)
		require.NoError(t, err)
		assert.True(t, rest.IsZero())
	})
}
