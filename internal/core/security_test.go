// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	valid, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	first, err := HashPassword("same password")
	require.NoError(t, err)
	second, err := HashPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	_, err := VerifyPassword("anything", "not-a-phc-string")
	assert.Error(t, err)
}

func TestVerifyPasswordTimingSafeMissingHash(t *testing.T) {
	valid, err := VerifyPasswordTimingSafe("anything", nil)
	require.NoError(t, err)
	assert.False(t, valid)

	empty := ""
	valid, err = VerifyPasswordTimingSafe("anything", &empty)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestOneTimeSecretAndHash(t *testing.T) {
	secret, err := GenerateOneTimeSecret()
	require.NoError(t, err)
	assert.NotEmpty(t, secret)

	other, err := GenerateOneTimeSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)

	digest := HashToken(secret)
	assert.Len(t, digest, 64)
	assert.True(t, CompareTokenHash(secret, digest))
	assert.False(t, CompareTokenHash(other, digest))
}
