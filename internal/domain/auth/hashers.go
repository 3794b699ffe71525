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

// ErrMalformedHash means a stored value looked like a hash but could not be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// PasswordHasher handles one stored hash format.
type PasswordHasher interface {
	Name() string
	Recognizes(stored string) bool
	Hash(password string) (string, error)
	Verify(password, stored string) (bool, error)
}

// BcryptHasher handles $2a$, $2b$ and $2y$ hashes.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Name() string { return "bcrypt" }

func (h BcryptHasher) Recognizes(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = 12
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hashed), nil
}

func (h BcryptHasher) Verify(password, stored string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// Argon2idParams are the cost factors used for new argon2id hashes.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Argon2idHasher handles PHC strings of the form
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>.
type Argon2idHasher struct {
	Params Argon2idParams
}

func (h Argon2idHasher) Name() string { return "argon2id" }

func (h Argon2idHasher) Recognizes(stored string) bool {
	return strings.HasPrefix(stored, "$argon2id$")
}

func (h Argon2idHasher) Hash(password string) (string, error) {
	p := h.Params
	if p.KeyLength == 0 {
		p = DefaultArgon2idParams
	}
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("crypto/rand failed: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h Argon2idHasher) Verify(password, stored string) (bool, error) {
	p, salt, key, err := decodeArgon2id(stored)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	other := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

func decodeArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	var p Argon2idParams
	vals := strings.Split(encoded, "$")
	if len(vals) != 6 {
		return p, nil, nil, errors.New("hash has wrong parts")
	}

	var version int
	if _, err := fmt.Sscanf(vals[2], "v=%d", &version); err != nil {
		return p, nil, nil, err
	}
	if version != argon2.Version {
		return p, nil, nil, errors.New("incompatible version")
	}
	if _, err := fmt.Sscanf(vals[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, err
	}
	if p.Iterations == 0 || p.Parallelism == 0 {
		return p, nil, nil, errors.New("zero cost parameter")
	}

	salt, err := base64.RawStdEncoding.DecodeString(vals[4])
	if err != nil {
		return p, nil, nil, err
	}
	key, err := base64.RawStdEncoding.DecodeString(vals[5])
	if err != nil {
		return p, nil, nil, err
	}
	if len(key) == 0 {
		return p, nil, nil, errors.New("empty key")
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	return p, salt, key, nil
}
