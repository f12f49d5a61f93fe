// Package api implements the PicklePals endpoints behind a single
// Handle(uri, params, credential) entry point.
package api

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/picklepals/picklepals/internal/access"
	"github.com/picklepals/picklepals/internal/auth"
	"github.com/picklepals/picklepals/internal/coordinator"
	"github.com/picklepals/picklepals/internal/store"
	"github.com/sirupsen/logrus"
)

// DefaultNamespace is the leading path segment of every endpoint.
const DefaultNamespace = "pickle"

var errAborted = errors.New("request aborted")

// Result is the payload of a successful call.
type Result map[string]any

// Request carries everything a handler needs for one call.
type Request struct {
	Store      store.Store
	Policy     *access.Policy
	Params     Params
	Actor      access.Actor
	Credential string

	afterCommit []func()
}

// AfterCommit registers fn to run once the call's transaction has committed.
func (r *Request) AfterCommit(fn func()) {
	r.afterCommit = append(r.afterCommit, fn)
}

// HandlerFunc implements one endpoint.
type HandlerFunc func(ctx context.Context, req *Request) (Result, error)

// Config holds dispatcher configuration.
type Config struct {
	AuthEnabled bool
	Namespace   string
	// Now is used for default game timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher routes endpoint names to handlers and enforces authentication.
type Dispatcher struct {
	store       store.Store
	sessions    *auth.SessionRegistry
	hasher      *auth.Hasher
	coord       *coordinator.Coordinator
	log         logrus.FieldLogger
	authEnabled bool
	namespace   string
	now         func() time.Time

	handlers map[string]HandlerFunc
	public   map[string]bool
}

// NewDispatcher creates a dispatcher. The coordinator must be running for
// Handle to make progress.
func NewDispatcher(
	st store.Store,
	sessions *auth.SessionRegistry,
	hasher *auth.Hasher,
	coord *coordinator.Coordinator,
	log logrus.FieldLogger,
	cfg Config,
) *Dispatcher {
	d := &Dispatcher{
		store:       st,
		sessions:    sessions,
		hasher:      hasher,
		coord:       coord,
		log:         log,
		authEnabled: cfg.AuthEnabled,
		namespace:   cfg.Namespace,
		now:         cfg.Now,
	}
	if d.namespace == "" {
		d.namespace = DefaultNamespace
	}
	if d.now == nil {
		d.now = time.Now
	}

	d.handlers = map[string]HandlerFunc{
		"user_auth":          d.userAuth,
		"user_auth_renew":    d.userAuthRenew,
		"user_logout":        d.userLogout,
		"user_create":        d.userCreate,
		"user_getId":         d.userGetID,
		"user_getStats":      d.userGetStats,
		"user_setUsername":   d.userSetUsername,
		"user_setPassword":   d.userSetPassword,
		"user_delete":        d.userDelete,
		"user_games":         d.userGames,
		"user_friends":       d.userFriends,
		"user_addFriend":     d.userAddFriend,
		"user_removeFriend":  d.userRemoveFriend,
		"game_register":      d.gameRegister,
		"game_get":           d.gameGet,
		"game_registerStats": d.gameRegisterStats,
		"game_getStats":      d.gameGetStats,
		"coffee":             d.coffee,
	}
	d.public = map[string]bool{
		"user_auth":       true,
		"user_auth_renew": true,
		"user_create":     true,
		"coffee":          true,
	}

	return d
}

// Endpoints returns the registered handler names.
func (d *Dispatcher) Endpoints() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	return names
}

// HasEndpoint reports whether name is a registered handler.
func (d *Dispatcher) HasEndpoint(name string) bool {
	_, ok := d.handlers[name]
	return ok
}

// Route maps a request URI to a handler name.
func (d *Dispatcher) Route(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", NotFound("unknown endpoint")
	}
	namespace, rest, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
	if namespace != d.namespace || rest == "" {
		return "", NotFound("unknown endpoint")
	}
	return strings.ReplaceAll(rest, "/", "_"), nil
}

// Handle runs the endpoint addressed by uri. Errors are *Error values except
// for unexpected failures, which the transport reports as a server error.
// params is cleared on every error path. Once accepted, a call runs to
// completion even if ctx is cancelled.
func (d *Dispatcher) Handle(ctx context.Context, uri string, params map[string]any, credential string) (result Result, err error) {
	defer func() {
		if err != nil {
			clear(params)
		}
	}()
	if params == nil {
		params = map[string]any{}
	}

	name, err := d.Route(uri)
	if err != nil {
		return nil, err
	}

	err = errAborted
	if runErr := d.coord.Do(context.WithoutCancel(ctx), func(ctx context.Context) {
		result, err = d.dispatch(ctx, name, Params(params), credential)
	}); runErr != nil {
		return nil, runErr
	}

	if err != nil {
		err = translate(err)
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			d.log.WithField("endpoint", name).WithError(err).Error("Unexpected error handling request")
		}
		return nil, err
	}
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, params Params, credential string) (Result, error) {
	delete(params, SenderKey)

	var (
		result Result
		req    *Request
	)
	err := d.store.Atomic(ctx, func(tx store.Store) error {
		req = &Request{
			Store:      tx,
			Policy:     access.NewPolicy(d.authEnabled, tx),
			Params:     params,
			Credential: credential,
		}

		if d.authEnabled && !d.public[name] {
			actor, err := d.authenticate(ctx, tx, credential)
			if err != nil {
				return err
			}
			req.Actor = actor
			params[SenderKey] = actor.ID
		}

		handler, ok := d.handlers[name]
		if !ok {
			return NotFound("unknown endpoint")
		}
		res, err := handler(ctx, req)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, fn := range req.afterCommit {
		fn()
	}
	return result, nil
}

// authenticate resolves a credential to an actor. Accounts that have been
// invalidated since the token was issued are treated as unauthenticated.
func (d *Dispatcher) authenticate(ctx context.Context, tx store.Store, credential string) (access.Actor, error) {
	if credential == "" {
		return access.Anonymous, Unauthorized("missing credential")
	}

	userID, ok, err := d.sessions.Validate(credential)
	if errors.Is(err, auth.ErrSessionExpired) {
		return access.Anonymous, SessionExpired("session expired")
	}
	if err != nil {
		return access.Anonymous, err
	}
	if !ok {
		return access.Anonymous, Unauthorized("invalid credential")
	}

	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return access.Anonymous, err
	}
	if user == nil || !user.Valid {
		return access.Anonymous, Unauthorized("invalid credential")
	}
	return access.As(userID), nil
}

func (d *Dispatcher) coffee(context.Context, *Request) (Result, error) {
	return nil, Teapot("I'm a teapot")
}
