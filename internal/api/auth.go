package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/sadopc/greencampus/internal/session"
)

type ctxKey int

const identityKey ctxKey = iota

func identityFrom(ctx context.Context) (session.Identity, bool) {
	id, ok := ctx.Value(identityKey).(session.Identity)
	return id, ok
}

// authed requires a valid bearer token and stores the resolved identity in
// the request context.
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearer(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		id, err := s.tokens.Verify(raw)
		if err != nil {
			s.log.Debug("rejected token", "err", err)
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

// admin is authed plus an admin role check.
func (s *Server) admin(next http.HandlerFunc) http.Handler {
	return s.authed(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identityFrom(r.Context())
		if !id.IsAdmin() {
			writeError(w, http.StatusForbidden, "Unauthorized - Admin only")
			return
		}
		next(w, r)
	})
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
