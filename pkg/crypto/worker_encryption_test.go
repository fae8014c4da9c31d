package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor([]byte("short secret"))
	require.NoError(t, err)

	sealed, err := enc.Encrypt("refresh-token-value")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "refresh-token-value")

	again, err := enc.Encrypt("refresh-token-value")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")

	plain, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token-value", plain)
}

func TestEncryptor_Errors(t *testing.T) {
	_, err := NewEncryptor(nil)
	assert.ErrorIs(t, err, ErrEmptyKey)

	enc, err := NewEncryptor([]byte("k1"))
	require.NoError(t, err)
	other, err := NewEncryptor([]byte("k2"))
	require.NoError(t, err)

	sealed, err := enc.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = enc.Decrypt("AAAA")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	empty, err := enc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEncryptor_JSON(t *testing.T) {
	enc, err := NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	type token struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	sealed, err := enc.SealJSON(token{Access: "a", Refresh: "r"})
	require.NoError(t, err)

	var got token
	require.NoError(t, enc.OpenJSON(sealed, &got))
	assert.Equal(t, token{Access: "a", Refresh: "r"}, got)
}
