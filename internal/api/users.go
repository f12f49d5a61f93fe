package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/picklepals/picklepals/internal/auth"
	"github.com/picklepals/picklepals/internal/store"
	"github.com/picklepals/picklepals/internal/validate"
)

// Fields returned by user/getStats.
const (
	fieldUsername     = "username"
	fieldGamesPlayed  = "gamesPlayed"
	fieldGamesWon     = "gamesWon"
	fieldAverageScore = "averageScore"
)

var userFields = []string{fieldUsername, fieldGamesPlayed, fieldGamesWon, fieldAverageScore}

// loadSubject returns the active account userID or NotFound. The admin
// pseudo-identity is never a valid subject.
func loadSubject(ctx context.Context, tx store.Store, userID int64) (*store.User, error) {
	if auth.IsAdmin(userID) {
		return nil, NotFound("user %d not found", userID)
	}
	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Valid {
		return nil, NotFound("user %d not found", userID)
	}
	return user, nil
}

func requireView(ctx context.Context, req *Request, subject int64) error {
	ok, err := req.Policy.CanView(ctx, req.Actor, subject)
	if err != nil {
		return err
	}
	if !ok {
		return Forbidden("not allowed to view user %d", subject)
	}
	return nil
}

func requireEdit(ctx context.Context, req *Request, subject int64) error {
	ok, err := req.Policy.CanEdit(ctx, req.Actor, subject)
	if err != nil {
		return err
	}
	if !ok {
		return Forbidden("not allowed to modify user %d", subject)
	}
	return nil
}

func success() Result {
	return Result{"success": true}
}

func (d *Dispatcher) userAuth(ctx context.Context, req *Request) (Result, error) {
	username, err := req.Params.String("username")
	if err != nil {
		return nil, err
	}
	password, err := req.Params.String("password")
	if err != nil {
		return nil, err
	}

	userID, pair, err := auth.Login(ctx, req.Store, d.hasher, d.sessions, username, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return nil, Unauthorized("invalid username or password")
	}
	if err != nil {
		return nil, err
	}

	d.log.WithField("user_id", userID).Info("User logged in")
	return Result{
		"apiKey":     pair.AccessToken,
		"renewalKey": pair.RenewalToken,
		"user_id":    userID,
	}, nil
}

func (d *Dispatcher) userAuthRenew(ctx context.Context, req *Request) (Result, error) {
	renewal, err := req.Params.String("renewalKey")
	if err != nil {
		return nil, err
	}
	accessToken, err := req.Params.OptionalString("apiKey", req.Credential)
	if err != nil {
		return nil, err
	}
	if accessToken == "" {
		return nil, Unauthorized("missing credential")
	}

	pair, err := d.sessions.Renew(accessToken, renewal)
	if errors.Is(err, auth.ErrInvalidRenewal) {
		return nil, Unauthorized("invalid renewal credentials")
	}
	if err != nil {
		return nil, err
	}

	return Result{
		"apiKey":     pair.AccessToken,
		"renewalKey": pair.RenewalToken,
	}, nil
}

func (d *Dispatcher) userLogout(ctx context.Context, req *Request) (Result, error) {
	if req.Credential == "" || !d.sessions.Revoke(req.Credential) {
		return nil, Unauthorized("invalid credential")
	}
	return success(), nil
}

func (d *Dispatcher) userCreate(ctx context.Context, req *Request) (Result, error) {
	username, err := req.Params.String("username")
	if err != nil {
		return nil, err
	}
	password, err := req.Params.String("password")
	if err != nil {
		return nil, err
	}
	if err := validate.Username(username); err != nil {
		return nil, err
	}
	if err := validate.Password(password); err != nil {
		return nil, err
	}

	existing, err := req.Store.GetValidUserByName(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, Forbidden("username %q is already taken", username)
	}

	digest, salt, err := d.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	userID, err := req.Store.CreateUser(ctx, username, digest, salt)
	if err != nil {
		return nil, err
	}

	d.log.WithField("user_id", userID).Info("User created")
	return Result{"user_id": userID}, nil
}

func (d *Dispatcher) userGetID(ctx context.Context, req *Request) (Result, error) {
	username, err := req.Params.String("username")
	if err != nil {
		return nil, err
	}
	if auth.IsReservedName(username) {
		return nil, BadRequest("username %q is reserved", username)
	}

	user, err := req.Store.GetValidUserByName(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NotFound("user %q not found", username)
	}
	return Result{"user_id": user.ID}, nil
}

func (d *Dispatcher) userGetStats(ctx context.Context, req *Request) (Result, error) {
	ids, err := req.Params.IntList("user_id")
	if err != nil {
		return nil, err
	}
	fields, ok, err := req.Params.StringList("objects")
	if err != nil {
		return nil, err
	}
	if !ok || len(fields) == 0 {
		fields = userFields
	}
	for _, f := range fields {
		if !isUserField(f) {
			return nil, BadRequest("unknown field %q", f)
		}
	}

	out := Result{}
	for _, id := range ids {
		key := strconv.FormatInt(id, 10)

		if id == auth.UnknownID {
			out[key] = renderUser(&store.User{ID: id, Username: auth.UnknownName}, fields)
			continue
		}

		user, err := req.Store.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if user == nil || auth.IsAdmin(id) {
			return nil, NotFound("user %d not found", id)
		}
		// Tombstones only expose the sentinel name.
		if !user.Valid {
			out[key] = renderUser(user, fields)
			continue
		}

		if err := requireView(ctx, req, id); err != nil {
			return nil, err
		}
		out[key] = renderUser(user, fields)
	}
	return out, nil
}

func isUserField(name string) bool {
	for _, f := range userFields {
		if f == name {
			return true
		}
	}
	return false
}

func renderUser(u *store.User, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		switch f {
		case fieldUsername:
			out[f] = u.Username
		case fieldGamesPlayed:
			out[f] = intOrNil(u.GamesPlayed)
		case fieldGamesWon:
			out[f] = intOrNil(u.GamesWon)
		case fieldAverageScore:
			if u.AverageScore == nil {
				out[f] = nil
			} else {
				out[f] = *u.AverageScore
			}
		}
	}
	return out
}

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func (d *Dispatcher) userSetUsername(ctx context.Context, req *Request) (Result, error) {
	userID, err := req.Params.Int("user_id")
	if err != nil {
		return nil, err
	}
	username, err := req.Params.String("username")
	if err != nil {
		return nil, err
	}

	if _, err := loadSubject(ctx, req.Store, userID); err != nil {
		return nil, err
	}
	if err := requireEdit(ctx, req, userID); err != nil {
		return nil, err
	}
	if err := validate.Username(username); err != nil {
		return nil, err
	}

	existing, err := req.Store.GetValidUserByName(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.ID == userID {
			return success(), nil
		}
		return nil, Forbidden("username %q is already taken", username)
	}

	if err := req.Store.UpdateUsername(ctx, userID, username); err != nil {
		return nil, err
	}
	return success(), nil
}

func (d *Dispatcher) userSetPassword(ctx context.Context, req *Request) (Result, error) {
	userID, err := req.Params.Int("user_id")
	if err != nil {
		return nil, err
	}
	password, err := req.Params.String("password")
	if err != nil {
		return nil, err
	}

	if _, err := loadSubject(ctx, req.Store, userID); err != nil {
		return nil, err
	}
	if err := requireEdit(ctx, req, userID); err != nil {
		return nil, err
	}
	if err := validate.Password(password); err != nil {
		return nil, err
	}

	digest, salt, err := d.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	if err := req.Store.UpdatePassword(ctx, userID, digest, salt); err != nil {
		return nil, err
	}
	return success(), nil
}

func (d *Dispatcher) userDelete(ctx context.Context, req *Request) (Result, error) {
	userID, err := req.Params.Int("user_id")
	if err != nil {
		return nil, err
	}

	if _, err := loadSubject(ctx, req.Store, userID); err != nil {
		return nil, err
	}
	if err := requireEdit(ctx, req, userID); err != nil {
		return nil, err
	}

	if err := req.Store.DeleteFriendships(ctx, userID); err != nil {
		return nil, err
	}
	if err := req.Store.DeleteUserGameStats(ctx, userID); err != nil {
		return nil, err
	}
	if err := req.Store.InvalidateUser(ctx, userID, auth.DeletedName); err != nil {
		return nil, err
	}

	req.AfterCommit(func() {
		revoked := d.sessions.RevokeUser(userID)
		d.log.WithField("user_id", userID).WithField("sessions_revoked", revoked).Info("User deleted")
	})
	return success(), nil
}

func (d *Dispatcher) userGames(ctx context.Context, req *Request) (Result, error) {
	userID, err := req.Params.Int("user_id")
	if err != nil {
		return nil, err
	}

	if _, err := loadSubject(ctx, req.Store, userID); err != nil {
		return nil, err
	}
	if err := requireView(ctx, req, userID); err != nil {
		return nil, err
	}

	games, err := req.Store.ListUserGames(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.ID)
	}
	return Result{"games": ids}, nil
}
