package httpserver

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// Argon2Params defines parameters for Argon2id password hashing.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultArgon2Params are used by blogctl hash-password.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 2,
	SaltLen:     16,
	KeyLen:      32,
}

var errMalformedHash = errors.New("malformed argon2id hash")

// HashPassword encodes password as argon2id$iterations$memory$parallelism$salt$hash
// with base64 (raw std) salt and hash.
func HashPassword(password string, params Argon2Params) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: empty password", domain.ErrInvalidArgument)
	}
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLen)
	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		params.Iterations,
		params.Memory,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

type decodedHash struct {
	params Argon2Params
	salt   []byte
	hash   []byte
}

func decodeHash(encoded string) (decodedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return decodedHash{}, errMalformedHash
	}
	iters, err1 := parseUint32(parts[1])
	mem, err2 := parseUint32(parts[2])
	par, err3 := parseUint32(parts[3])
	if err1 != nil || err2 != nil || err3 != nil || iters == 0 || par == 0 || par > math.MaxUint8 {
		return decodedHash{}, errMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return decodedHash{}, errMalformedHash
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return decodedHash{}, errMalformedHash
	}
	return decodedHash{
		params: Argon2Params{Memory: mem, Iterations: iters, Parallelism: uint8(par), SaltLen: uint32(len(salt)), KeyLen: uint32(len(hash))},
		salt:   salt,
		hash:   hash,
	}, nil
}

// VerifyPassword reports whether password matches the encoded argon2id hash.
// The key length is taken from the stored hash.
func VerifyPassword(password, encodedHash string) bool {
	d, err := decodeHash(encodedHash)
	if err != nil {
		return false
	}
	p := d.params
	actual := argon2.IDKey([]byte(password), d.salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLen)
	return subtle.ConstantTimeCompare(actual, d.hash) == 1
}

// ValidHash reports whether encoded parses as an argon2id hash.
func ValidHash(encoded string) bool {
	_, err := decodeHash(encoded)
	return err == nil
}

// BasicAuth guards admin routes with HTTP Basic credentials checked against
// the configured username and argon2id password hash.
func BasicAuth(username, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			// always hash so timing does not reveal whether the user matched
			passOK := VerifyPassword(pass, passwordHash)
			if !ok || !userOK || !passOK || username == "" {
				LoggerFrom(r).Warn("admin auth rejected", "path", r.URL.Path, "user_supplied", ok)
				writeError(w, r, fmt.Errorf("%w: admin credentials required", domain.ErrUnauthorized), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CronAuth accepts requests carrying "Authorization: Bearer <secret>".
func CronAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || secret == "" || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(secret)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="cron"`)
				writeError(w, r, fmt.Errorf("%w: invalid cron secret", domain.ErrUnauthorized), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
