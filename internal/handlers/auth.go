package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/slotline/schedcore/internal/lifecycle"
	"github.com/slotline/schedcore/libs/auth"
)

type actorKey struct{}

// RequireAuth verifies the bearer token and stores the actor in the
// request context. RS256 tokens are verified against the JWKS endpoint
// when a client is configured; everything else falls back to HS256.
func RequireAuth(next http.Handler, jwtSecret string, jwksClient *auth.JWKSClient) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		var claims *auth.Claims
		var err error

		if jwksClient != nil {
			header, headerErr := auth.ParseHeader(token)
			if headerErr != nil {
				http.Error(w, "invalid token header", http.StatusUnauthorized)
				return
			}
			if header.Alg == "RS256" && header.Kid != "" {
				pub, keyErr := jwksClient.Get(header.Kid)
				if keyErr != nil {
					http.Error(w, "invalid token key", http.StatusUnauthorized)
					return
				}
				claims, err = auth.VerifyRS256(token, pub)
			} else {
				claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
			}
		} else {
			claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
		}
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		actor := lifecycle.Actor{ID: claims.Sub, Role: lifecycle.Role(claims.Role)}
		if actor.ID == "" || !lifecycle.ValidRole(actor.Role) {
			http.Error(w, "token missing subject or role", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

// actorFrom returns the authenticated actor placed by RequireAuth.
func actorFrom(r *http.Request) (lifecycle.Actor, bool) {
	actor, ok := r.Context().Value(actorKey{}).(lifecycle.Actor)
	return actor, ok
}

// WithActor injects an actor directly; test helper and internal tooling.
func WithActor(r *http.Request, actor lifecycle.Actor) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), actorKey{}, actor))
}
