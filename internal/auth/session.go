package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultSessionTimeout is how long an access token stays valid after issue.
	DefaultSessionTimeout = 30 * time.Minute

	sessionTokenBytes = 32
)

var (
	// ErrSessionExpired is returned when a known access token is past its expiration.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidRenewal is returned when a renewal pair is unknown or mismatched.
	ErrInvalidRenewal = errors.New("invalid renewal credentials")
)

// TokenPair is an access token and the renewal token that rotates it.
type TokenPair struct {
	AccessToken  string
	RenewalToken string
}

type accessEntry struct {
	userID    int64
	expiresAt time.Time
	renewal   string
}

// SessionRegistry keeps in-memory access and renewal tokens.
// Everything is lost on restart and users must log in again.
type SessionRegistry struct {
	mu      sync.Mutex
	timeout time.Duration
	now     func() time.Time
	random  func([]byte) (int, error)
	access  map[string]accessEntry
	renewal map[string]int64
}

// SessionOption configures a SessionRegistry.
type SessionOption func(*SessionRegistry)

// WithTimeout sets the access token lifetime.
func WithTimeout(d time.Duration) SessionOption {
	return func(r *SessionRegistry) {
		r.timeout = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(r *SessionRegistry) {
		r.now = now
	}
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(opts ...SessionOption) *SessionRegistry {
	r := &SessionRegistry{
		timeout: DefaultSessionTimeout,
		now:     time.Now,
		random:  rand.Read,
		access:  make(map[string]accessEntry),
		renewal: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Issue creates a fresh token pair for userID.
func (r *SessionRegistry) Issue(userID int64) (TokenPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.issueLocked(userID)
}

func (r *SessionRegistry) issueLocked(userID int64) (TokenPair, error) {
	access, err := r.uniqueToken(func(t string) bool {
		_, taken := r.access[t]
		return taken
	})
	if err != nil {
		return TokenPair{}, err
	}
	renewal, err := r.uniqueToken(func(t string) bool {
		_, taken := r.renewal[t]
		return taken
	})
	if err != nil {
		return TokenPair{}, err
	}

	r.access[access] = accessEntry{
		userID:    userID,
		expiresAt: r.now().Add(r.timeout),
		renewal:   renewal,
	}
	r.renewal[renewal] = userID

	return TokenPair{AccessToken: access, RenewalToken: renewal}, nil
}

// uniqueToken draws tokens until one is not taken.
func (r *SessionRegistry) uniqueToken(taken func(string) bool) (string, error) {
	b := make([]byte, sessionTokenBytes)
	for {
		if _, err := r.random(b); err != nil {
			return "", fmt.Errorf("failed to generate session token: %w", err)
		}
		token := hex.EncodeToString(b)
		if !taken(token) {
			return token, nil
		}
	}
}

// Validate resolves an access token to its user id. ok is false for unknown
// tokens; a known token past its expiration returns ErrSessionExpired.
// Expired entries are left in place.
func (r *SessionRegistry) Validate(accessToken string) (userID int64, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, found := r.access[accessToken]
	if !found {
		return 0, false, nil
	}
	if r.now().After(entry.expiresAt) {
		return 0, false, ErrSessionExpired
	}
	return entry.userID, true, nil
}

// Renew rotates a token pair. Both tokens must be registered and belong to the
// same user; the old pair is removed and a new one issued.
func (r *SessionRegistry) Renew(accessToken, renewalToken string) (TokenPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, found := r.access[accessToken]
	if !found {
		return TokenPair{}, ErrInvalidRenewal
	}
	userID, found := r.renewal[renewalToken]
	if !found || userID != entry.userID {
		return TokenPair{}, ErrInvalidRenewal
	}

	delete(r.access, accessToken)
	delete(r.renewal, renewalToken)
	if entry.renewal != renewalToken {
		delete(r.renewal, entry.renewal)
	}

	return r.issueLocked(userID)
}

// Revoke removes an access token and the renewal token issued with it.
func (r *SessionRegistry) Revoke(accessToken string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, found := r.access[accessToken]
	if !found {
		return false
	}
	delete(r.access, accessToken)
	delete(r.renewal, entry.renewal)
	return true
}

// RevokeUser removes every access and renewal token of userID and returns how
// many access tokens were dropped.
func (r *SessionRegistry) RevokeUser(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	revoked := 0
	for token, entry := range r.access {
		if entry.userID == userID {
			delete(r.access, token)
			revoked++
		}
	}
	for token, id := range r.renewal {
		if id == userID {
			delete(r.renewal, token)
		}
	}
	return revoked
}

// Len returns the number of registered access tokens, expired ones included.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.access)
}

// RenewalLen returns the number of registered renewal tokens.
func (r *SessionRegistry) RenewalLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.renewal)
}
