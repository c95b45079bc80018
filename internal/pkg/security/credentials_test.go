package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptCredentialsRoundtrip(t *testing.T) {
	bundle := map[string]string{
		"secret_key":      "sk_test_abc123",
		"publishable_key": "pk_test_abc123",
		"webhook_secret":  "whsec_xyz",
	}

	enc, err := EncryptCredentials(bundle, "app-secret")
	require.NoError(t, err)
	require.NotEmpty(t, enc)

	dec, err := DecryptCredentials(enc, "app-secret")
	require.NoError(t, err)
	assert.Equal(t, bundle, dec)
}

func TestDecryptCredentialsWrongSecret(t *testing.T) {
	enc, err := EncryptCredentials(map[string]string{"secret_key": "sk"}, "right-secret")
	require.NoError(t, err)

	_, err = DecryptCredentials(enc, "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDecryptCredentialsEmptyInput(t *testing.T) {
	dec, err := DecryptCredentials("", "secret")
	require.NoError(t, err)
	assert.Empty(t, dec)
}

func TestEncryptCredentialsRequiresSecret(t *testing.T) {
	_, err := EncryptCredentials(map[string]string{"k": "v"}, "")
	assert.Error(t, err)
}

func TestEncryptCredentialsNonDeterministic(t *testing.T) {
	bundle := map[string]string{"secret_key": "sk"}
	a, err := EncryptCredentials(bundle, "s")
	require.NoError(t, err)
	b, err := EncryptCredentials(bundle, "s")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
