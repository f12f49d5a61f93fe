package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHasher() *Hasher {
	return NewHasher(WithArgon2Params(1, 8*1024, 1))
}

func TestHashIsSaltedPerCall(t *testing.T) {
	h := newTestHasher()

	d1, s1, err := h.Hash("Aa1!aaaaaa")
	require.NoError(t, err)
	d2, s2, err := h.Hash("Aa1!aaaaaa")
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
	assert.NotEqual(t, s1, s2)
	assert.True(t, strings.HasPrefix(d1, "$argon2id$v=19$m=8192,t=1,p=1$"), d1)
	assert.Len(t, s1, 2*argon2SaltLen)
}

func TestVerify(t *testing.T) {
	h := newTestHasher()
	digest, salt, err := h.Hash("Aa1!aaaaaa")
	require.NoError(t, err)

	assert.True(t, h.Verify("Aa1!aaaaaa", digest, salt))
	assert.False(t, h.Verify("Aa1!aaaaab", digest, salt))
	assert.False(t, h.Verify("", digest, salt))
}

func TestVerifyMalformedInput(t *testing.T) {
	h := newTestHasher()
	digest, salt, err := h.Hash("Aa1!aaaaaa")
	require.NoError(t, err)

	tests := []struct {
		name   string
		digest string
		salt   string
	}{
		{"non-hex digest", "zz", salt},
		{"short digest", digest[:len(digest)-2], salt},
		{"bare hex digest", digest[strings.LastIndex(digest, "$")+1:], salt},
		{"wrong algorithm", strings.Replace(digest, "argon2id", "argon2i", 1), salt},
		{"zero threads", strings.Replace(digest, "p=1", "p=0", 1), salt},
		{"huge memory", strings.Replace(digest, "m=8192", "m=99999999", 1), salt},
		{"non-hex salt", digest, "not hex"},
		{"empty salt", digest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, h.Verify("Aa1!aaaaaa", tt.digest, tt.salt))
		})
	}
}

func TestHashEmptyPassword(t *testing.T) {
	_, _, err := newTestHasher().Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerifySurvivesCostChange(t *testing.T) {
	digest, salt, err := newTestHasher().Hash("Aa1!aaaaaa")
	require.NoError(t, err)

	other := NewHasher(WithArgon2Params(2, 16*1024, 2))
	assert.True(t, other.Verify("Aa1!aaaaaa", digest, salt))
	assert.False(t, other.Verify("Aa1!aaaaab", digest, salt))

	fresh, _, err := other.Hash("Aa1!aaaaaa")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fresh, "$argon2id$v=19$m=16384,t=2,p=2$"), fresh)
}

func TestVerifyRejectsTamperedParams(t *testing.T) {
	h := newTestHasher()
	digest, salt, err := h.Hash("Aa1!aaaaaa")
	require.NoError(t, err)

	tampered := strings.Replace(digest, "t=1", "t=2", 1)
	assert.False(t, h.Verify("Aa1!aaaaaa", tampered, salt))
}

func TestDummyDigestNeverVerifies(t *testing.T) {
	h := newTestHasher()
	p, _, ok := decodeDigest(h.dummyDigest())
	require.True(t, ok)
	assert.Equal(t, *h, p)
	assert.False(t, h.Verify("Aa1!aaaaaa", h.dummyDigest(), dummySalt))
}
