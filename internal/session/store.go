// Package session persists per-browser values such as the bearer token and
// the cached user profile.
//
// A browser is identified by an opaque cookie (see Cookies). Values live in a
// Store keyed by that id, so they survive page loads the same way
// origin-scoped browser storage would.
package session

import (
	"context"
	"errors"
)

const (
	// TokenKey holds the bearer token.
	TokenKey = "unfinial_token"
	// UserKey holds the JSON-serialized user profile.
	UserKey = "unfinial_user"
)

// ErrNoSession is returned by writes that have no session to write to.
var ErrNoSession = errors.New("no session")

// Store is a key/value store scoped by session id.
type Store interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, sessionID string, keys ...string) error
	Close() error
}
