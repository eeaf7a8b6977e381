// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength         = 16
	refreshTokenLength = 32
)

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// currentParams is what new hashes are produced with. Stored hashes with
// any other parameters are upgraded on the next successful login.
var currentParams = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

var errMalformedHash = errors.New("malformed password hash")

func (p argonParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

func HashPassword(password string) (string, error) {
	return hashWith(password, currentParams)
}

func hashWith(password string, p argonParams) (string, error) {
	salt, err := randomBytes(saltLength)
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memory,
		p.time,
		p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(p.derive(password, salt)),
	), nil
}

func VerifyPassword(password, encodedHash string) (bool, error) {
	p, salt, want, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(want, p.derive(password, salt)) == 1, nil
}

// VerifyPasswordWithRehash also returns a replacement hash when the stored
// one was produced with outdated parameters. The replacement is empty
// when no upgrade is due or it could not be computed.
func VerifyPasswordWithRehash(
	password, encodedHash string,
) (bool, string, error) {
	valid, err := VerifyPassword(password, encodedHash)
	if err != nil || !valid {
		return false, "", err
	}

	p, _, _, err := decodeHash(encodedHash)
	if err == nil && p == currentParams {
		return true, "", nil
	}

	upgraded, err := HashPassword(password)
	if err != nil {
		//nolint:nilerr // the password matched; a failed upgrade is retried next login
		return true, "", nil
	}
	return true, upgraded, nil
}

var placeholderHash = sync.OnceValue(func() string {
	hash, err := HashPassword("placeholder password for unknown accounts")
	if err != nil {
		panic(fmt.Sprintf("security: placeholder hash: %v", err))
	}
	return hash
})

// VerifyPasswordTimingSafe spends the same argon2 work whether or not the
// account exists, so login latency does not reveal registered emails.
func VerifyPasswordTimingSafe(
	password string,
	encodedHash *string,
) (bool, string, error) {
	if encodedHash == nil || *encodedHash == "" {
		//nolint:errcheck // result is discarded
		_, _ = VerifyPassword(password, placeholderHash())
		return false, "", nil
	}

	return VerifyPasswordWithRehash(password, *encodedHash)
}

func decodeHash(encodedHash string) (argonParams, []byte, []byte, error) {
	var p argonParams

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("%w: version: %w", errMalformedHash, err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("incompatible argon2 version: %d", version)
	}

	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads)
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: params: %w", errMalformedHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt: %w", errMalformedHash, err)
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: hash: %w", errMalformedHash, err)
	}

	//nolint:gosec // G115: argon2 key lengths are tiny
	p.keyLen = uint32(len(hash))

	return p, salt, hash, nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func GenerateRefreshToken() (string, error) {
	b, err := randomBytes(refreshTokenLength)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HashToken is used for refresh tokens and one-time codes; only the digest
// is persisted.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func CompareTokenHash(token, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(hash)) == 1
}

const (
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	SlugAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// RandomString returns n characters drawn uniformly from alphabet.
func RandomString(n int, alphabet string) (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate random string: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
