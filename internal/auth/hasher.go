package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// Hasher hashes passwords with argon2id and a fresh per-call salt.
//
// The digest is stored in PHC form with the cost parameters it was made with,
// $argon2id$v=19$m=65536,t=1,p=4$<hex key>, and the hex salt is kept in its
// own column. Verify reads the parameters back from the digest, so changing
// the Hasher's cost only affects new hashes.
type Hasher struct {
	time    uint32
	memory  uint32
	threads uint8
}

// HasherOption configures a Hasher.
type HasherOption func(*Hasher)

// WithArgon2Params overrides the cost parameters. Tests use it to keep hashing cheap.
func WithArgon2Params(time, memoryKiB uint32, threads uint8) HasherOption {
	return func(h *Hasher) {
		h.time = time
		h.memory = memoryKiB
		h.threads = threads
	}
}

// NewHasher creates a new Hasher.
func NewHasher(opts ...HasherOption) *Hasher {
	h := &Hasher{
		time:    argon2Time,
		memory:  argon2Memory,
		threads: argon2Threads,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash returns the digest of password under a newly generated salt.
func (h *Hasher) Hash(password string) (digest, salt string, err error) {
	if password == "" {
		return "", "", ErrEmptyPassword
	}

	saltBytes := make([]byte, argon2SaltLen)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), saltBytes, h.time, h.memory, h.threads, argon2KeyLen)
	return h.encode(key), hex.EncodeToString(saltBytes), nil
}

// Verify recomputes the digest of password under salt, using the parameters
// recorded in digest, and compares it in constant time. Malformed digests or
// salts never verify.
func (h *Hasher) Verify(password, digest, salt string) bool {
	saltBytes, err := hex.DecodeString(salt)
	if err != nil || len(saltBytes) == 0 {
		return false
	}
	p, expected, ok := decodeDigest(digest)
	if !ok {
		return false
	}

	computed := argon2.IDKey([]byte(password), saltBytes, p.time, p.memory, p.threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// dummyDigest is a well-formed digest under the current parameters that no
// password matches.
func (h *Hasher) dummyDigest() string {
	return h.encode(make([]byte, argon2KeyLen))
}

func (h *Hasher) encode(key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		argon2.Version, h.memory, h.time, h.threads, hex.EncodeToString(key))
}

func decodeDigest(digest string) (Hasher, []byte, bool) {
	parts := strings.Split(digest, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != "argon2id" {
		return Hasher{}, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Hasher{}, nil, false
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return Hasher{}, nil, false
	}
	if time == 0 || threads == 0 || threads > 255 || memory == 0 || memory > 4*1024*1024 {
		return Hasher{}, nil, false
	}

	key, err := hex.DecodeString(parts[4])
	if err != nil || len(key) != argon2KeyLen {
		return Hasher{}, nil, false
	}
	return Hasher{time: time, memory: memory, threads: uint8(threads)}, key, true
}
