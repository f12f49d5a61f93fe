// Package access decides who may view or edit another user's data.
package access

import (
	"context"

	"github.com/picklepals/picklepals/internal/auth"
)

// Actor is the identity a request acts as. The zero value is anonymous.
type Actor struct {
	ID            int64
	Authenticated bool
}

// Anonymous is the actor of a request without a credential.
var Anonymous = Actor{}

// As returns an authenticated actor for userID.
func As(userID int64) Actor {
	return Actor{ID: userID, Authenticated: true}
}

// FriendChecker reports whether two users share a friendship edge.
type FriendChecker interface {
	AreFriends(ctx context.Context, userID, friendID int64) (bool, error)
}

// Policy evaluates view/edit permissions. With enforcement disabled every
// check passes.
type Policy struct {
	enforce bool
	friends FriendChecker
}

// NewPolicy creates a Policy backed by friends.
func NewPolicy(enforce bool, friends FriendChecker) *Policy {
	return &Policy{enforce: enforce, friends: friends}
}

// Enforced reports whether authorization is enabled.
func (p *Policy) Enforced() bool {
	return p.enforce
}

// CanView reports whether actor may read subject's data. Friends can view
// each other.
func (p *Policy) CanView(ctx context.Context, actor Actor, subject int64) (bool, error) {
	if !p.enforce {
		return true, nil
	}
	if !actor.Authenticated {
		return false, nil
	}
	if auth.IsAdmin(actor.ID) || actor.ID == subject {
		return true, nil
	}
	return p.friends.AreFriends(ctx, actor.ID, subject)
}

// CanEdit reports whether actor may modify subject's data. Friendship never
// grants edit rights.
func (p *Policy) CanEdit(_ context.Context, actor Actor, subject int64) (bool, error) {
	if !p.enforce {
		return true, nil
	}
	if !actor.Authenticated {
		return false, nil
	}
	return auth.IsAdmin(actor.ID) || actor.ID == subject, nil
}
