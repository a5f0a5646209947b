// Package session keeps the last upload of each browser session.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"kindlecrm/internal/core"
)

const (
	CookieName = "kcrm_session"
	DefaultTTL = 2 * time.Hour
)

// Store keeps one Upload per session id. Get reports false for unknown or
// expired sessions; that is not an error.
type Store interface {
	Get(ctx context.Context, id string) (*core.Upload, bool, error)
	Put(ctx context.Context, id string, up *core.Upload) error
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh opaque session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like one of ours.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// FromRequest returns the session id carried by r, if any.
func FromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || !ValidID(c.Value) {
		return "", false
	}
	return c.Value, true
}

// Ensure returns the request's session id, issuing a new cookie when the
// request has none.
func Ensure(w http.ResponseWriter, r *http.Request, ttl time.Duration, secure bool) string {
	if id, ok := FromRequest(r); ok {
		return id
	}
	id := NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
