package actions

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const encPrefix = "enc:"

// Decryptor turns stored action-set metadata into its plaintext form.
// Decryption failures are fatal to the caller: an action set whose
// credentials cannot be recovered must not be compiled.
type Decryptor interface {
	DecryptMetadata(meta Metadata) (Metadata, error)
}

// SecretCipher encrypts and decrypts credential fields with AES-256-GCM.
// The key is derived from a passphrase via Argon2id with a caller-supplied
// salt and held only in memory.
type SecretCipher struct {
	key []byte
}

// NewSecretCipher derives a cipher key from a passphrase and salt.
func NewSecretCipher(passphrase string, salt []byte) (*SecretCipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	if len(salt) < 8 {
		return nil, fmt.Errorf("salt must be at least 8 bytes")
	}
	key := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
	return &SecretCipher{key: key}, nil
}

// Encrypt encrypts plaintext and returns "enc:" + base64(nonce + ciphertext).
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decrypts a value produced by Encrypt. Values without the "enc:"
// prefix are returned as-is so unencrypted legacy records keep working.
func (c *SecretCipher) Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encPrefix) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt secret: %w", err)
	}

	return string(plaintext), nil
}

// DecryptMetadata decrypts the credential fields of stored metadata,
// leaving the spec and domain untouched.
func (c *SecretCipher) DecryptMetadata(meta Metadata) (Metadata, error) {
	out := meta

	apiKey, err := c.Decrypt(meta.APIKey)
	if err != nil {
		return Metadata{}, fmt.Errorf("decrypt api key: %w", err)
	}
	out.APIKey = apiKey

	clientID, err := c.Decrypt(meta.OAuthClientID)
	if err != nil {
		return Metadata{}, fmt.Errorf("decrypt oauth client id: %w", err)
	}
	out.OAuthClientID = clientID

	clientSecret, err := c.Decrypt(meta.OAuthClientSecret)
	if err != nil {
		return Metadata{}, fmt.Errorf("decrypt oauth client secret: %w", err)
	}
	out.OAuthClientSecret = clientSecret

	return out, nil
}

func (c *SecretCipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
