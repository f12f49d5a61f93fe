package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/picklepals/picklepals/internal/store"
)

// ErrInvalidCredentials is returned for a bad username and a bad password alike.
var ErrInvalidCredentials = errors.New("invalid username or password")

// dummySalt is verified against, with the hasher's dummy digest, when the
// username does not exist, so that both failure modes cost one hash computation.
const dummySalt = "00000000000000000000000000000000"

// Login verifies username/password against the store and issues a session pair.
func Login(ctx context.Context, users store.Store, hasher *Hasher, sessions *SessionRegistry, username, password string) (int64, TokenPair, error) {
	user, err := users.GetValidUserByName(ctx, username)
	if err != nil {
		return 0, TokenPair{}, fmt.Errorf("failed to look up user: %w", err)
	}

	digest, salt := hasher.dummyDigest(), dummySalt
	if user != nil && user.PasswordHash != nil && user.Salt != nil {
		digest, salt = *user.PasswordHash, *user.Salt
	}

	valid := hasher.Verify(password, digest, salt)
	if user == nil || !valid {
		return 0, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := sessions.Issue(user.ID)
	if err != nil {
		return 0, TokenPair{}, err
	}
	return user.ID, pair, nil
}

// SeedAdmin creates the administrator account with the given password if it does not exist.
func SeedAdmin(ctx context.Context, users store.Store, hasher *Hasher, password string) error {
	digest, salt, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	return users.EnsureAdmin(ctx, AdminName, digest, salt)
}
