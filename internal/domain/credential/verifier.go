package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// SaltBytes is the amount of randomness in a canonical salt.
const SaltBytes = 16

// Outcome is the transient result of a verification.
type Outcome struct {
	Matched bool
	Scheme  Scheme
}

// NeedsMigration reports whether a successful match came from a
// non-canonical record.
func (o Outcome) NeedsMigration() bool {
	return o.Matched && o.Scheme != Canonical
}

// Verify reports whether secret matches the stored hash/salt. It never fails:
// malformed or unrecognised records are a non-match, so callers cannot tell a
// corrupt record from a wrong password.
func Verify(secret, hash, salt string) Outcome {
	scheme := Detect(hash, salt)
	switch scheme {
	case StrongAdaptive:
		return Outcome{Matched: verifyAdaptive(secret, hash), Scheme: scheme}
	case SaltedDigest:
		return Outcome{Matched: verifySalted(secret, hash, salt), Scheme: scheme}
	case LegacyDigest:
		return Outcome{Matched: verifyLegacy(secret, hash), Scheme: scheme}
	case Unknown:
		return Outcome{Matched: false, Scheme: Unknown}
	}
	return Outcome{Matched: false, Scheme: Unknown}
}

func verifyAdaptive(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

func verifySalted(secret, hash, salt string) bool {
	if salt == "" {
		// missing salt
		return false
	}
	return digestEqual(SaltedHash(secret, salt), hash)
}

func verifyLegacy(secret, hash string) bool {
	return digestEqual(LegacyHash(secret), hash)
}

func digestEqual(computed, stored string) bool {
	stored = strings.ToLower(stored)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
}

// SaltedHash computes the canonical digest of secret with salt.
func SaltedHash(secret, salt string) string {
	sum := sha256.Sum256([]byte(secret + salt))
	return hex.EncodeToString(sum[:])
}

// LegacyHash computes the unsalted digest used by pre-migration records.
func LegacyHash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// NewSalt returns a fresh random hex salt.
func NewSalt() (string, error) {
	b := make([]byte, SaltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashCanonical hashes secret under the canonical scheme with a fresh salt.
func HashCanonical(secret string) (hash, salt string, err error) {
	salt, err = NewSalt()
	if err != nil {
		return "", "", err
	}
	return SaltedHash(secret, salt), salt, nil
}
