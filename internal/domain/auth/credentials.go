package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Verdict is the outcome of a portal password check.
type Verdict struct {
	OK bool
	// NeedsUpgrade is set when the stored value was legacy plaintext and matched.
	NeedsUpgrade bool
}

// VerifierConfig configures a CredentialVerifier.
type VerifierConfig struct {
	AdminSecret string
	BcryptCost  int
	// HashConcurrency bounds concurrent adaptive-hash computations.
	HashConcurrency int
	// Hashers recognised on verify. The first one hashes new passwords.
	// Defaults to bcrypt then argon2id.
	Hashers []PasswordHasher
}

// CredentialVerifier checks the admin secret and portal passwords.
type CredentialVerifier struct {
	adminDigest [sha256.Size]byte
	adminSet    bool
	hashers     []PasswordHasher
	sem         *semaphore.Weighted
}

func NewCredentialVerifier(cfg VerifierConfig) *CredentialVerifier {
	hashers := cfg.Hashers
	if len(hashers) == 0 {
		hashers = []PasswordHasher{
			BcryptHasher{Cost: cfg.BcryptCost},
			Argon2idHasher{Params: DefaultArgon2idParams},
		}
	}
	limit := cfg.HashConcurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	v := &CredentialVerifier{
		hashers: hashers,
		sem:     semaphore.NewWeighted(int64(limit)),
	}
	if cfg.AdminSecret != "" {
		v.adminDigest = sha256.Sum256([]byte(cfg.AdminSecret))
		v.adminSet = true
	}
	return v
}

// VerifyAdmin compares fixed-size digests in constant time, so neither the
// length nor the content of the configured secret leaks through timing.
// An unset admin secret never matches.
func (v *CredentialVerifier) VerifyAdmin(presented string) bool {
	if !v.adminSet {
		return false
	}
	digest := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(digest[:], v.adminDigest[:]) == 1
}

// isHash reports whether stored is in a recognised hash format.
func (v *CredentialVerifier) isHash(stored string) bool {
	return v.hasherFor(stored) != nil
}

func (v *CredentialVerifier) hasherFor(stored string) PasswordHasher {
	for _, h := range v.hashers {
		if h.Recognizes(stored) {
			return h
		}
	}
	return nil
}

// VerifyPortal checks presented against a stored hash or legacy plaintext.
// An empty stored value never matches.
func (v *CredentialVerifier) VerifyPortal(ctx context.Context, presented, stored string) (Verdict, error) {
	if stored == "" {
		return Verdict{}, nil
	}

	if h := v.hasherFor(stored); h != nil {
		if err := v.sem.Acquire(ctx, 1); err != nil {
			return Verdict{}, err
		}
		ok, err := h.Verify(presented, stored)
		v.sem.Release(1)
		if err != nil {
			return Verdict{}, err
		}
		return Verdict{OK: ok}, nil
	}

	a := sha256.Sum256([]byte(presented))
	b := sha256.Sum256([]byte(stored))
	if subtle.ConstantTimeCompare(a[:], b[:]) == 1 {
		return Verdict{OK: true, NeedsUpgrade: true}, nil
	}
	return Verdict{}, nil
}

// HashPassword hashes with the primary hasher.
func (v *CredentialVerifier) HashPassword(ctx context.Context, password string) (string, error) {
	if err := v.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer v.sem.Release(1)
	return v.hashers[0].Hash(password)
}
