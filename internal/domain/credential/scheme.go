// Package credential classifies stored password records and verifies
// presented secrets against whichever of the supported schemes produced them.
package credential

import "strings"

// Scheme identifies how a stored credential was hashed.
type Scheme int

const (
	Unknown Scheme = iota
	// StrongAdaptive is bcrypt ("$2a$", "$2b$", "$2x$", "$2y$").
	StrongAdaptive
	// SaltedDigest is hex(SHA-256(secret || salt)) with a per-user salt.
	SaltedDigest
	// LegacyDigest is hex(SHA-256(secret)) with no salt.
	LegacyDigest
)

// Canonical is the scheme every stored record converges to.
const Canonical = SaltedDigest

// legacyDigestLen is the length of a hex-encoded SHA-256 digest.
const legacyDigestLen = 64

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2x$", "$2y$"}

// String returns the marker persisted next to the hash.
func (s Scheme) String() string {
	switch s {
	case StrongAdaptive:
		return "bcrypt"
	case SaltedDigest:
		return "sha256_salted"
	case LegacyDigest:
		return "sha256"
	default:
		return "unknown"
	}
}

// ParseScheme maps a persisted marker back to a Scheme.
func ParseScheme(marker string) Scheme {
	switch strings.ToLower(strings.TrimSpace(marker)) {
	case "bcrypt":
		return StrongAdaptive
	case "sha256_salted":
		return SaltedDigest
	case "sha256":
		return LegacyDigest
	default:
		return Unknown
	}
}

// Detect classifies a stored record from its shape alone. Rules apply in
// order: bcrypt prefix, then presence of a salt, then digest length.
func Detect(hash, salt string) Scheme {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(hash, p) {
			return StrongAdaptive
		}
	}
	if salt != "" {
		return SaltedDigest
	}
	if len(hash) == legacyDigestLen {
		return LegacyDigest
	}
	return Unknown
}
