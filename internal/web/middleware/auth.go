package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/residents/internal/auth"
	"github.com/JonMunkholm/residents/internal/core"
	"github.com/JonMunkholm/residents/internal/logging"
)

type holderKey struct{}

// actorHolder carries the loaded actor back up to Logger.
type actorHolder struct {
	actor *core.Actor
}

func withActorHolder(ctx context.Context, h *actorHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

// ActorLookup loads the current state of a signed-in user.
type ActorLookup func(ctx context.Context, userID int64) (core.Actor, error)

// LoadActor turns verified session claims into a core.Actor. The user is
// looked up on every request so role changes and deactivation apply
// immediately. Requests without claims, or whose user is gone, continue
// anonymously.
func LoadActor(lookup ActorLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			actor, err := lookup(r.Context(), claims.UserID)
			if err != nil {
				if !errors.Is(err, core.ErrInvalidCredentials) {
					logging.FromContext(r.Context()).Warn("session: failed to load user",
						"user_id", claims.UserID,
						"error", err,
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			if h, ok := r.Context().Value(holderKey{}).(*actorHolder); ok {
				h.actor = &actor
			}
			next.ServeHTTP(w, r.WithContext(core.ContextWithActor(r.Context(), actor)))
		})
	}
}

// RequireRole rejects requests without a signed-in actor (401) or whose
// actor has none of roles (403). With no roles any signed-in actor passes.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := core.ActorFromContext(r.Context())
			if !ok {
				deny(w, r, http.StatusUnauthorized, core.ErrUnauthenticated)
				return
			}
			if len(roles) > 0 && !actor.HasRole(roles...) {
				deny(w, r, http.StatusForbidden, core.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := core.MapError(err)
	logging.FromContext(r.Context()).Warn("auth: request denied",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   msg.Message,
		"message": msg.Message,
		"action":  msg.Action,
		"code":    msg.Code,
	})
}
