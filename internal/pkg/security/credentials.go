package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
)

// Gateway credential bundles are stored encrypted at rest. The bundle
// is serialized to JSON, sealed with AES-256-GCM and base64 encoded.
// The key is derived from the configured application secret.

var ErrInvalidCiphertext = errors.New("invalid credentials ciphertext")

func deriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// EncryptCredentials seals a credential bundle with the given secret.
func EncryptCredentials(credentials map[string]string, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required for credential encryption")
	}
	plaintext, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawStdEncoding.EncodeToString(sealed), nil
}

// DecryptCredentials opens a sealed credential bundle.
func DecryptCredentials(encoded, secret string) (map[string]string, error) {
	if secret == "" {
		return nil, errors.New("secret is required for credential decryption")
	}
	if encoded == "" {
		return map[string]string{}, nil
	}

	sealed, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, ErrInvalidCiphertext
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	var credentials map[string]string
	if err := json.Unmarshal(plaintext, &credentials); err != nil {
		return nil, ErrInvalidCiphertext
	}
	return credentials, nil
}
