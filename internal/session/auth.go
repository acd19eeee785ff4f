package session

import (
	"context"
	"log/slog"
)

// Auth reads and writes the authentication values of one browser session.
// Reads never fail: a missing session, a missing key or a store error all
// read as "absent".
type Auth struct {
	store  Store
	logger *slog.Logger
}

func NewAuth(store Store, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auth{store: store, logger: logger}
}

// Token returns the stored bearer token, if any.
func (a *Auth) Token(ctx context.Context, sessionID string) (string, bool) {
	return a.get(ctx, sessionID, TokenKey)
}

func (a *Auth) SetToken(ctx context.Context, sessionID, token string) error {
	return a.store.Set(ctx, sessionID, TokenKey, token)
}

// UserJSON returns the stored user profile as raw JSON, if any.
func (a *Auth) UserJSON(ctx context.Context, sessionID string) (string, bool) {
	return a.get(ctx, sessionID, UserKey)
}

func (a *Auth) SetUserJSON(ctx context.Context, sessionID, userJSON string) error {
	return a.store.Set(ctx, sessionID, UserKey, userJSON)
}

// ClearToken removes both the token and the user profile.
func (a *Auth) ClearToken(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return a.store.Delete(ctx, sessionID, TokenKey, UserKey)
}

func (a *Auth) get(ctx context.Context, sessionID, key string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	v, ok, err := a.store.Get(ctx, sessionID, key)
	if err != nil {
		a.logger.WarnContext(ctx, "Session read failed", "key", key, "error", err)
		return "", false
	}
	return v, ok
}
