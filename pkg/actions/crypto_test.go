package actions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *SecretCipher {
	t.Helper()
	cipher, err := NewSecretCipher("test-passphrase", []byte("0123456789abcdef"))
	require.NoError(t, err)
	return cipher
}

func TestSecretCipher_RoundTrip(t *testing.T) {
	cipher := newTestCipher(t)

	encrypted, err := cipher.Encrypt("sk-abc123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encrypted, "enc:"))
	assert.NotContains(t, encrypted, "sk-abc123")

	decrypted, err := cipher.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc123", decrypted)
}

func TestSecretCipher_PlaintextPassthrough(t *testing.T) {
	cipher := newTestCipher(t)

	// Legacy records stored before encryption was enabled have no prefix.
	value, err := cipher.Decrypt("plain-api-key")
	require.NoError(t, err)
	assert.Equal(t, "plain-api-key", value)

	value, err = cipher.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestSecretCipher_CorruptCiphertext(t *testing.T) {
	cipher := newTestCipher(t)

	_, err := cipher.Decrypt("enc:not-base64!!!")
	assert.Error(t, err)

	_, err = cipher.Decrypt("enc:AAAA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ciphertext too short")

	encrypted, err := cipher.Encrypt("secret")
	require.NoError(t, err)

	other, err := NewSecretCipher("different-passphrase", []byte("0123456789abcdef"))
	require.NoError(t, err)
	_, err = other.Decrypt(encrypted)
	assert.Error(t, err)
}

func TestNewSecretCipher_Validation(t *testing.T) {
	_, err := NewSecretCipher("", []byte("0123456789abcdef"))
	assert.Error(t, err)

	_, err = NewSecretCipher("passphrase", []byte("short"))
	assert.Error(t, err)
}

func TestSecretCipher_DecryptMetadata(t *testing.T) {
	cipher := newTestCipher(t)

	apiKey, err := cipher.Encrypt("sk-live-key")
	require.NoError(t, err)
	clientSecret, err := cipher.Encrypt("oauth-secret")
	require.NoError(t, err)

	meta := Metadata{
		Domain:            "api.example.com",
		RawSpec:           `{"openapi":"3.0.0"}`,
		AuthType:          AuthTypeAPIKey,
		APIKey:            apiKey,
		OAuthClientID:     "public-client-id",
		OAuthClientSecret: clientSecret,
	}

	plain, err := cipher.DecryptMetadata(meta)
	require.NoError(t, err)
	assert.Equal(t, "sk-live-key", plain.APIKey)
	assert.Equal(t, "public-client-id", plain.OAuthClientID)
	assert.Equal(t, "oauth-secret", plain.OAuthClientSecret)
	assert.Equal(t, meta.Domain, plain.Domain)
	assert.Equal(t, meta.RawSpec, plain.RawSpec)

	// The stored record is not mutated.
	assert.Equal(t, apiKey, meta.APIKey)
}

func TestSecretCipher_DecryptMetadataFailure(t *testing.T) {
	cipher := newTestCipher(t)

	other, err := NewSecretCipher("wrong-passphrase", []byte("0123456789abcdef"))
	require.NoError(t, err)
	apiKey, err := other.Encrypt("sk-live-key")
	require.NoError(t, err)

	_, err = cipher.DecryptMetadata(Metadata{APIKey: apiKey})
	assert.Error(t, err)
}
