// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
	"github.com/rzkfyn/ujikom-app-be/internal/core"
	"github.com/rzkfyn/ujikom-app-be/internal/middleware"
)

const (
	claimRole         = "role"
	claimTokenVersion = "token_version"
	claimType         = "type"
	accessTokenType   = "access"
)

// JWTManager signs access tokens with the current key and accepts tokens
// signed by any key in its verification set, so a rotated key pair keeps
// already issued tokens valid until they expire.
type JWTManager struct {
	signer    jwk.Key
	verifiers jwk.Set
	config    config.JWTConfig
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	signer, err := readKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}

	current, err := signer.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	verifiers := jwk.NewSet()
	if err := addVerifier(verifiers, current); err != nil {
		return nil, err
	}

	for _, path := range cfg.RetiredPublicKeyPaths {
		retired, err := readKey(path)
		if err != nil {
			return nil, fmt.Errorf("retired key %s: %w", path, err)
		}
		if err := addVerifier(verifiers, retired); err != nil {
			return nil, err
		}
	}

	return &JWTManager{
		signer:    signer,
		verifiers: verifiers,
		config:    cfg,
	}, nil
}

// readKey loads a PEM encoded ES256 key and names it by its thumbprint, so
// every replica sharing the pair derives the same kid.
func readKey(path string) (jwk.Key, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	key, err := jwk.ParseKey(raw, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	if err := key.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return nil, fmt.Errorf("set algorithm: %w", err)
	}
	if err := jwk.AssignKeyID(key); err != nil {
		return nil, fmt.Errorf("assign key id: %w", err)
	}

	return key, nil
}

func addVerifier(set jwk.Set, key jwk.Key) error {
	if kid, ok := key.KeyID(); ok {
		if _, dup := set.LookupKeyID(kid); dup {
			return nil
		}
	}

	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return fmt.Errorf("set key usage: %w", err)
	}
	if err := set.AddKey(key); err != nil {
		return fmt.Errorf("add verification key: %w", err)
	}
	return nil
}

// GenerateKeyPair writes a fresh P-256 pair in PEM form. The private key is
// readable by the owner only.
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	private, err := jwk.Import(raw)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}

	privatePEM, err := jwk.Pem(private)
	if err != nil {
		return fmt.Errorf("encode private key: %w", err)
	}
	if err := os.WriteFile(privateKeyPath, privatePEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	public, err := private.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	publicPEM, err := jwk.Pem(public)
	if err != nil {
		return fmt.Errorf("encode public key: %w", err)
	}

	//nolint:gosec // G306: public key is meant to be world-readable
	if err := os.WriteFile(publicKeyPath, publicPEM, 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	return nil
}

type AccessTokenClaims struct {
	UserID       string `json:"sub"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
}

func (m *JWTManager) CreateAccessToken(
	claims AccessTokenClaims,
) (string, error) {
	now := time.Now()

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		Expiration(now.Add(m.config.AccessTokenExpire)).
		NotBefore(now).
		Claim(claimRole, claims.Role).
		Claim(claimTokenVersion, claims.TokenVersion).
		Claim(claimType, accessTokenType).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.signer))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

var accessTokenShape = jwt.ValidatorFunc(func(_ context.Context, t jwt.Token) error {
	var kind string
	if err := t.Get(claimType, &kind); err != nil || kind != accessTokenType {
		return errors.New("not an access token")
	}
	if sub, ok := t.Subject(); !ok || sub == "" {
		return errors.New("missing subject")
	}
	if jti, ok := t.JwtID(); !ok || jti == "" {
		return errors.New("missing jti")
	}
	return nil
})

// VerifyAccessToken checks the signature against the kid named in the
// header and validates the registered and application claims.
func (m *JWTManager) VerifyAccessToken(
	ctx context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(m.verifiers),
		jwt.WithContext(ctx),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithRequiredClaim(claimRole),
		jwt.WithRequiredClaim(claimTokenVersion),
		jwt.WithValidator(accessTokenShape),
	)
	if err != nil {
		if errors.Is(err, jwt.TokenExpiredError()) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	claims := &middleware.AccessTokenClaims{}
	claims.UserID, _ = token.Subject()
	claims.ID, _ = token.JwtID()
	claims.ExpiresAt, _ = token.Expiration()

	var version float64
	if err := token.Get(claimRole, &claims.Role); err != nil {
		return nil, fmt.Errorf("verify token: role claim: %w", core.ErrTokenInvalid)
	}
	if err := token.Get(claimTokenVersion, &version); err != nil {
		return nil, fmt.Errorf("verify token: token_version claim: %w", core.ErrTokenInvalid)
	}
	claims.TokenVersion = int(version)

	return claims, nil
}

// GetJWKSHandler publishes every verification key, retired ones included.
func (m *JWTManager) GetJWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		if err := json.NewEncoder(w).Encode(m.verifiers); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.config.AccessTokenExpire
}

// GetKeyID names the key new tokens are signed with.
func (m *JWTManager) GetKeyID() string {
	kid, _ := m.signer.KeyID()
	return kid
}

type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

// CreateRefreshToken mints an opaque token. An empty familyID starts a new
// rotation family.
func (m *JWTManager) CreateRefreshToken(
	userID, familyID string,
) (*RefreshTokenData, error) {
	token, err := core.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("refresh token for %s: %w", userID, err)
	}

	if familyID == "" {
		familyID = uuid.New().String()
	}

	return &RefreshTokenData{
		Token:     token,
		Hash:      core.HashToken(token),
		ExpiresAt: time.Now().Add(m.config.RefreshTokenExpire),
		FamilyID:  familyID,
	}, nil
}

func (m *JWTManager) VerifyRefreshTokenHash(token, storedHash string) bool {
	return core.CompareTokenHash(token, storedHash)
}
