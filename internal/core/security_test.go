// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomString(t *testing.T) {
	seen := make(map[string]bool)

	for range 50 {
		s, err := RandomString(8, SlugAlphabet)
		require.NoError(t, err)
		require.Len(t, s, 8)

		for _, r := range s {
			assert.True(t, strings.ContainsRune(SlugAlphabet, r))
		}
		seen[s] = true
	}

	assert.Greater(t, len(seen), 45)
}

func TestRandomStringCodeAlphabetAvoidsLookalikes(t *testing.T) {
	s, err := RandomString(256, CodeAlphabet)
	require.NoError(t, err)
	assert.NotContains(t, s, "0")
	assert.NotContains(t, s, "O")
	assert.NotContains(t, s, "1")
	assert.NotContains(t, s, "I")
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := VerifyPassword("correct horse battery", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenHash(t *testing.T) {
	token, err := GenerateRefreshToken()
	require.NoError(t, err)

	hash := HashToken(token)
	assert.True(t, CompareTokenHash(token, hash))
	assert.False(t, CompareTokenHash(token+"x", hash))
}

func TestVerifyPasswordWithRehashUpgradesOutdatedParams(t *testing.T) {
	weak := currentParams
	weak.memory = 8 * 1024
	old, err := hashWith("correct horse battery", weak)
	require.NoError(t, err)

	ok, upgraded, err := VerifyPasswordWithRehash("correct horse battery", old)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotEmpty(t, upgraded)
	assert.Contains(t, upgraded, "m=65536,")

	ok, again, err := VerifyPasswordWithRehash("correct horse battery", upgraded)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, again)

	ok, again, err = VerifyPasswordWithRehash("wrong", old)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, again)
}

func TestVerifyPasswordTimingSafe(t *testing.T) {
	ok, _, err := VerifyPasswordTimingSafe("anything", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)

	ok, _, err = VerifyPasswordTimingSafe("correct horse battery", &hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	for _, hash := range []string{"", "plain", "$bcrypt$v=19$m=1,t=1,p=1$AA$AA", "$argon2id$v=19$m=x$AA$AA"} {
		_, err := VerifyPassword("pw", hash)
		assert.ErrorIs(t, err, errMalformedHash, hash)
	}
}
