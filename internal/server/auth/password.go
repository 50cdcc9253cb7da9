package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// bcrypt silently ignores input past this length, so longer passwords are refused.
const bcryptMaxPasswordLen = 72

var (
	ErrEmptyPassword    = errors.New("password must not be empty")
	ErrPasswordTooLong  = errors.New("password exceeds 72 bytes")
	ErrUnknownAlgorithm = errors.New("unknown password hashing algorithm")
	ErrMalformedHash    = errors.New("malformed password hash")
	ErrIncompatibleHash = errors.New("incompatible argon2 version")
)

// Argon2Params are the argon2id cost parameters. The defaults match the
// passlib defaults, so hashes written by earlier deployments still verify.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var DefaultArgon2Params = Argon2Params{Time: 3, Memory: 64 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}

// PasswordHasher hashes new passwords with one algorithm and verifies hashes
// produced by any supported algorithm (argon2id PHC strings, bcrypt $2a/$2b/$2y).
type PasswordHasher struct {
	algorithm  string
	argon      Argon2Params
	bcryptCost int
}

type HasherOption func(*PasswordHasher)

func WithArgon2Params(p Argon2Params) HasherOption {
	return func(h *PasswordHasher) { h.argon = p }
}

func WithBcryptCost(cost int) HasherOption {
	return func(h *PasswordHasher) { h.bcryptCost = cost }
}

func NewPasswordHasher(algorithm string, opts ...HasherOption) (*PasswordHasher, error) {
	switch algorithm {
	case AlgorithmArgon2id, AlgorithmBcrypt:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}

	h := &PasswordHasher{
		algorithm:  algorithm,
		argon:      DefaultArgon2Params,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *PasswordHasher) Algorithm() string { return h.algorithm }

// Hash returns an encoded, salted hash of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	if h.algorithm == AlgorithmBcrypt {
		if len(password) > bcryptMaxPasswordLen {
			return "", ErrPasswordTooLong
		}
		b, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt: %w", err)
		}
		return string(b), nil
	}

	salt := make([]byte, h.argon.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.argon.Time, h.argon.Memory, h.argon.Threads, h.argon.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.argon.Memory, h.argon.Time, h.argon.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. A mismatch is (false, nil);
// an error means encoded could not be interpreted at all.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2id(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	default:
		return false, ErrMalformedHash
	}
}

// verifyArgon2id checks a "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
func verifyArgon2id(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}
	if version != argon2.Version {
		return false, ErrIncompatibleHash
	}

	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}
	if len(want) == 0 || p.Threads == 0 {
		return false, ErrMalformedHash
	}

	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
