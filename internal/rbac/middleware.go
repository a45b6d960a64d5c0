// Package rbac resolves the acting user from request headers and gates
// routes by role.
package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/waterops/waterops/internal/platform/httpx"
	"github.com/waterops/waterops/internal/shared"
)

// Header names carrying the actor identity set by the upstream gateway.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Middleware wires role authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Resolve stores the actor described by the request headers in the context.
// Requests without a parsable actor continue anonymously.
func (m Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := m.actorFromHeaders(r)
		if ok {
			r = r.WithContext(shared.ContextWithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures the current actor holds one of roles.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor headers required")
				return
			}
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "not allowed for your role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) actorFromHeaders(r *http.Request) (shared.Actor, bool) {
	rawID := strings.TrimSpace(r.Header.Get(HeaderActorID))
	role := strings.TrimSpace(strings.ToLower(r.Header.Get(HeaderActorRole)))
	if rawID == "" || role == "" {
		return shared.Actor{}, false
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		if m.Logger != nil {
			m.Logger.Warn("rbac parse actor id", slog.String("value", rawID))
		}
		return shared.Actor{}, false
	}
	return shared.Actor{ID: id, Role: role}, true
}

func normalizeRoles(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(strings.ToLower(r))
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}
