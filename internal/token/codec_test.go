package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests stretch the key with few iterations to keep the suite fast; the
// derivation parameters do not change the codec's behavior.
func newTestCodec(t *testing.T, key, salt string) *Codec {
	t.Helper()
	c, err := NewCodec(key, salt, WithIterations(10))
	require.NoError(t, err)
	return c
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t, "test-key", "test-salt")

	plaintexts := []string{
		"/v1/checkouts/8ac7a4a1787d3777/payment",
		"",
		"with spaces and ?query=1&other=2",
		strings.Repeat("long", 500),
	}
	for _, plaintext := range plaintexts {
		token, err := c.Encode(plaintext)
		require.NoError(t, err)

		decoded, err := c.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decoded)
	}
}

func TestCodec_EncodeIsNonDeterministic(t *testing.T) {
	c := newTestCodec(t, "test-key", "test-salt")

	first, err := c.Encode("/v1/checkouts/abc/payment")
	require.NoError(t, err)
	second, err := c.Encode("/v1/checkouts/abc/payment")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	// Both still decode to the same plaintext.
	p1, err := c.Decode(first)
	require.NoError(t, err)
	p2, err := c.Decode(second)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestCodec_TokenIsURLSafe(t *testing.T) {
	c := newTestCodec(t, "test-key", "test-salt")
	token, err := c.Encode("/v1/checkouts/abc/payment")
	require.NoError(t, err)
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "=")
}

func TestCodec_DecodeRejectsTampering(t *testing.T) {
	c := newTestCodec(t, "test-key", "test-salt")
	token, err := c.Encode("/v1/checkouts/abc/payment")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "not base64!!!"},
		{"truncated", token[:8]},
		{"empty", ""},
		{"flipped nonce byte", flipFirstChar(token)},
		{"appended data", token + "AAAA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.token)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestCodec_DecodeRejectsWrongKeyOrSalt(t *testing.T) {
	c := newTestCodec(t, "test-key", "test-salt")
	token, err := c.Encode("/v1/checkouts/abc/payment")
	require.NoError(t, err)

	wrongKey := newTestCodec(t, "other-key", "test-salt")
	_, err = wrongKey.Decode(token)
	assert.ErrorIs(t, err, ErrDecode)

	wrongSalt := newTestCodec(t, "test-key", "other-salt")
	_, err = wrongSalt.Decode(token)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestNewCodec_RequiresKeyAndSalt(t *testing.T) {
	_, err := NewCodec("", "salt")
	assert.Error(t, err)
	_, err = NewCodec("key", "")
	assert.Error(t, err)
}

func flipFirstChar(token string) string {
	replacement := byte('A')
	if token[0] == 'A' {
		replacement = 'B'
	}
	return string(replacement) + token[1:]
}
