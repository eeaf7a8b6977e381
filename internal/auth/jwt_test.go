// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
	"github.com/rzkfyn/ujikom-app-be/internal/core"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestJWT(t, 15*time.Minute)

	token, err := m.CreateAccessToken(AccessTokenClaims{UserID: "u1", Role: "admin", TokenVersion: 3})
	require.NoError(t, err)

	claims, err := m.VerifyAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt, 5*time.Second)
}

func TestVerifyAccessTokenRejects(t *testing.T) {
	m := newTestJWT(t, 15*time.Minute)
	other := newTestJWT(t, 15*time.Minute)
	expired := newTestJWT(t, -time.Minute)

	foreign, err := other.CreateAccessToken(AccessTokenClaims{UserID: "u1", Role: "user"})
	require.NoError(t, err)
	_, err = m.VerifyAccessToken(context.Background(), foreign)
	require.ErrorIs(t, err, core.ErrTokenInvalid)

	_, err = m.VerifyAccessToken(context.Background(), "not.a.token")
	require.ErrorIs(t, err, core.ErrTokenInvalid)

	stale, err := expired.CreateAccessToken(AccessTokenClaims{UserID: "u1", Role: "user"})
	require.NoError(t, err)
	_, err = expired.VerifyAccessToken(context.Background(), stale)
	require.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestRefreshTokenHash(t *testing.T) {
	m := newTestJWT(t, time.Minute)

	data, err := m.CreateRefreshToken("u1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, data.FamilyID)
	assert.True(t, m.VerifyRefreshTokenHash(data.Token, data.Hash))
	assert.False(t, m.VerifyRefreshTokenHash(data.Token+"x", data.Hash))

	next, err := m.CreateRefreshToken("u1", data.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, data.FamilyID, next.FamilyID)
}

func TestJWKSHandler(t *testing.T) {
	m := newTestJWT(t, time.Minute)

	rec := httptest.NewRecorder()
	m.GetJWKSHandler()(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var set struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
	require.Len(t, set.Keys, 1)
	assert.Equal(t, m.GetKeyID(), set.Keys[0]["kid"])
	assert.NotContains(t, set.Keys[0], "d")
}

func TestKeyIDIsStableAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	cfg := config.JWTConfig{
		PrivateKeyPath:    priv,
		PublicKeyPath:     pub,
		AccessTokenExpire: time.Minute,
		Issuer:            "test-issuer",
		Audience:          "test-audience",
	}
	a, err := NewJWTManager(cfg)
	require.NoError(t, err)
	b, err := NewJWTManager(cfg)
	require.NoError(t, err)

	assert.NotEmpty(t, a.GetKeyID())
	assert.Equal(t, a.GetKeyID(), b.GetKeyID())

	token, err := a.CreateAccessToken(AccessTokenClaims{UserID: "u1", Role: "user"})
	require.NoError(t, err)
	_, err = b.VerifyAccessToken(context.Background(), token)
	require.NoError(t, err)
}

func TestRetiredKeyStillVerifies(t *testing.T) {
	dir := t.TempDir()
	oldPriv, oldPub := filepath.Join(dir, "old.pem"), filepath.Join(dir, "old.pub.pem")
	newPriv, newPub := filepath.Join(dir, "new.pem"), filepath.Join(dir, "new.pub.pem")
	require.NoError(t, GenerateKeyPair(oldPriv, oldPub))
	require.NoError(t, GenerateKeyPair(newPriv, newPub))

	cfg := config.JWTConfig{
		PrivateKeyPath:    oldPriv,
		PublicKeyPath:     oldPub,
		AccessTokenExpire: time.Minute,
		Issuer:            "test-issuer",
		Audience:          "test-audience",
	}
	before, err := NewJWTManager(cfg)
	require.NoError(t, err)

	issued, err := before.CreateAccessToken(AccessTokenClaims{UserID: "u1", Role: "user", TokenVersion: 2})
	require.NoError(t, err)

	cfg.PrivateKeyPath, cfg.PublicKeyPath = newPriv, newPub
	cfg.RetiredPublicKeyPaths = []string{oldPub, newPub}
	after, err := NewJWTManager(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, before.GetKeyID(), after.GetKeyID())

	claims, err := after.VerifyAccessToken(context.Background(), issued)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, 2, claims.TokenVersion)

	rec := httptest.NewRecorder()
	after.GetJWKSHandler()(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	var set struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
	require.Len(t, set.Keys, 2, "a retired key listed twice is published once")
	assert.Equal(t, after.GetKeyID(), set.Keys[0]["kid"])
	assert.Equal(t, before.GetKeyID(), set.Keys[1]["kid"])

	cfg.RetiredPublicKeyPaths = nil
	strict, err := NewJWTManager(cfg)
	require.NoError(t, err)
	_, err = strict.VerifyAccessToken(context.Background(), issued)
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyAccessTokenRequiresAccessType(t *testing.T) {
	m := newTestJWT(t, time.Minute)

	token, err := jwt.NewBuilder().
		JwtID("j1").
		Issuer("test-issuer").
		Audience([]string{"test-audience"}).
		Subject("u1").
		Expiration(time.Now().Add(time.Minute)).
		Claim(claimRole, "user").
		Claim(claimTokenVersion, 0).
		Claim(claimType, "refresh").
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.signer))
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(context.Background(), string(signed))
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}
