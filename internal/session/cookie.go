package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CookieName is the cookie carrying the session id.
const CookieName = "unfinial_sid"

// Cookies issues and reads the session cookie.
type Cookies struct {
	Secure bool
	MaxAge time.Duration
}

// ID returns the session id carried by r, or "" when there is none.
func (c Cookies) ID(r *http.Request) string {
	ck, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(ck.Value); err != nil {
		return ""
	}
	return ck.Value
}

// Ensure returns the request's session id, issuing a fresh cookie on w when
// the request has none.
func (c Cookies) Ensure(w http.ResponseWriter, r *http.Request) string {
	if id := c.ID(r); id != "" {
		return id
	}
	id := uuid.NewString()
	ck := &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if c.MaxAge > 0 {
		ck.MaxAge = int(c.MaxAge.Seconds())
	}
	http.SetCookie(w, ck)
	// Later handlers in the same request read the id from the request.
	r.AddCookie(&http.Cookie{Name: CookieName, Value: id})
	return id
}
