package auth

import (
	"context"
	"net/http"
	"strings"
)

const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-Role"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID string
	Role   string
}

type ctxKey int

const ctxKeyIdentity ctxKey = iota

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok && id.UserID != ""
}

// Middleware resolves the caller identity. With an enabled verifier a bearer
// token is mandatory; otherwise the X-User-Id / X-Role headers set by an
// upstream gateway are trusted. Requests without identity get 401.
func Middleware(v *Verifier, onError func(w http.ResponseWriter, status int, msg string)) func(http.Handler) http.Handler {
	if onError == nil {
		onError = func(w http.ResponseWriter, status int, msg string) { http.Error(w, msg, status) }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id Identity
			if v.Enabled() {
				token, ok := bearerToken(r.Header.Get("Authorization"))
				if !ok {
					onError(w, http.StatusUnauthorized, "missing bearer token")
					return
				}
				claims, err := v.Verify(token)
				if err != nil {
					onError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				id = Identity{UserID: claims.UserID(), Role: strings.ToLower(claims.Role)}
			} else {
				id = Identity{
					UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
					Role:   strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole))),
				}
			}
			if id.UserID == "" {
				onError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
