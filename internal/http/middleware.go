package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/fjod/go_storefront/internal/domain"
)

const (
	// UserIDHeader is set by the upstream identity provider for signed-in users.
	UserIDHeader      = "X-User-ID"
	SessionCookieName = "sf_session"
)

type contextKey int

const ownerKey contextKey = iota

// SessionMiddleware resolves the owner of the request. The guest session cookie is issued on
// the first request and kept for ttl, also for signed-in users, so sign-in can find the guest data.
func SessionMiddleware(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guestID := ""
			if c, err := r.Cookie(SessionCookieName); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					guestID = c.Value
				}
			}
			if guestID == "" {
				guestID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    guestID,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			owner := domain.Owner{UserID: r.Header.Get(UserIDHeader), GuestID: guestID}
			next.ServeHTTP(w, r.WithContext(withOwner(r.Context(), owner)))
		})
	}
}

// RequestIDMiddleware echoes chi's request id back to the caller.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBodyMiddleware caps request bodies at n bytes. n <= 0 disables the cap.
func MaxBodyMiddleware(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withOwner(ctx context.Context, owner domain.Owner) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

func ownerFromContext(ctx context.Context) domain.Owner {
	if owner, ok := ctx.Value(ownerKey).(domain.Owner); ok {
		return owner
	}
	return domain.Owner{}
}
