package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func bcryptHash(t *testing.T, secret string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return string(b)
}

func TestDetect(t *testing.T) {
	legacy := LegacyHash("correcthorse1")
	tests := []struct {
		name string
		hash string
		salt string
		want Scheme
	}{
		{"bcrypt 2b", "$2b$10$abcdefghijklmnopqrstuu", "", StrongAdaptive},
		{"bcrypt 2a", "$2a$12$xyz", "", StrongAdaptive},
		{"bcrypt 2y wins over salt", "$2y$10$xyz", "somesalt", StrongAdaptive},
		{"salted", legacy, "abcd", SaltedDigest},
		{"salted short hash", "deadbeef", "abcd", SaltedDigest},
		{"legacy", legacy, "", LegacyDigest},
		{"wrong length", "deadbeef", "", Unknown},
		{"empty", "", "", Unknown},
		{"argon2 unsupported", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA", "", Unknown},
		{"almost bcrypt", "$2c$10$xyz", "", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.hash, tt.salt))
		})
	}
}

func TestSchemeMarkerRoundTrip(t *testing.T) {
	for _, s := range []Scheme{Unknown, StrongAdaptive, SaltedDigest, LegacyDigest} {
		assert.Equal(t, s, ParseScheme(s.String()))
	}
	assert.Equal(t, Unknown, ParseScheme("md5"))
	assert.Equal(t, SaltedDigest, ParseScheme(" SHA256_SALTED "))
}

func TestVerify_MatchesEveryScheme(t *testing.T) {
	secrets := []string{"correcthorse1", "p", "pässwörd ✓", strings.Repeat("x", 60), " leading space"}
	for _, secret := range secrets {
		hash, salt, err := HashCanonical(secret)
		require.NoError(t, err)

		out := Verify(secret, hash, salt)
		assert.Equal(t, Outcome{Matched: true, Scheme: SaltedDigest}, out, "salted %q", secret)
		assert.False(t, out.NeedsMigration())

		out = Verify(secret, LegacyHash(secret), "")
		assert.Equal(t, Outcome{Matched: true, Scheme: LegacyDigest}, out, "legacy %q", secret)
		assert.True(t, out.NeedsMigration())

		out = Verify(secret, bcryptHash(t, secret), "")
		assert.Equal(t, Outcome{Matched: true, Scheme: StrongAdaptive}, out, "bcrypt %q", secret)
		assert.True(t, out.NeedsMigration())
	}
}

func TestVerify_RejectsOneCharacterDifference(t *testing.T) {
	secret := "correcthorse1"
	variants := []string{"correcthorse2", "Correcthorse1", "correcthorse", "correcthorse1 ", ""}

	hash, salt, err := HashCanonical(secret)
	require.NoError(t, err)
	legacy := LegacyHash(secret)
	adaptive := bcryptHash(t, secret)

	for _, v := range variants {
		assert.False(t, Verify(v, hash, salt).Matched, "salted %q", v)
		assert.False(t, Verify(v, legacy, "").Matched, "legacy %q", v)
		assert.False(t, Verify(v, adaptive, "").Matched, "bcrypt %q", v)
	}
}

func TestVerify_LegacyScenario(t *testing.T) {
	stored := LegacyHash("correcthorse1")
	require.Len(t, stored, 64)

	out := Verify("correcthorse1", stored, "")
	assert.True(t, out.Matched)
	assert.Equal(t, LegacyDigest, out.Scheme)
}

func TestVerify_UppercaseHexStillMatches(t *testing.T) {
	stored := strings.ToUpper(LegacyHash("secret"))
	assert.True(t, Verify("secret", stored, "").Matched)
}

func TestVerify_MalformedRecordsAreNonMatches(t *testing.T) {
	assert.Equal(t, Outcome{Matched: false, Scheme: StrongAdaptive}, Verify("x", "$2b$garbage", ""))
	assert.Equal(t, Outcome{Matched: false, Scheme: Unknown}, Verify("x", "short", ""))
	assert.Equal(t, Outcome{Matched: false, Scheme: Unknown}, Verify("", "", ""))
	assert.False(t, verifySalted("x", SaltedHash("x", ""), ""))
}

func TestSaltedHashDependsOnSalt(t *testing.T) {
	a := SaltedHash("secret", "salt-a")
	b := SaltedHash("secret", "salt-b")
	assert.NotEqual(t, a, b)
	assert.False(t, Verify("secret", a, "salt-b").Matched)
}

func TestHashCanonical_FreshSalts(t *testing.T) {
	h1, s1, err := HashCanonical("same")
	require.NoError(t, err)
	h2, s2, err := HashCanonical("same")
	require.NoError(t, err)

	assert.Len(t, s1, SaltBytes*2)
	assert.NotEqual(t, s1, s2)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, Canonical, Detect(h1, s1))
}
