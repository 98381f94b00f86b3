package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/actor"
)

// ActorClaims is the token payload issued by the identity provider.
type ActorClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// ActorJWT validates HS256 bearer tokens and stores the caller in the request
// context. Requests without a valid token are rejected with 401.
func ActorJWT(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 {
				writeError(w, http.StatusServiceUnavailable, "auth_not_configured", "authentication is not configured")
				return
			}
			a, err := parseActor(r.Header.Get("Authorization"), key)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(actor.WithActor(r.Context(), a)))
		})
	}
}

// RequireAdmin rejects callers without the admin role. It must run after
// ActorJWT.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid token")
			return
		}
		if !a.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin_only", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseActor(header string, key []byte) (actor.Actor, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return actor.Actor{}, errors.New("missing bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return actor.Actor{}, errors.New("empty bearer token")
	}

	claims := &ActorClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return actor.Actor{}, fmt.Errorf("middleware: parse token: %w", err)
	}
	if claims.Subject == "" {
		return actor.Actor{}, errors.New("token has no subject")
	}

	role := actor.RoleClient
	if strings.EqualFold(claims.Role, string(actor.RoleAdmin)) {
		role = actor.RoleAdmin
	}
	return actor.Actor{
		ID:    claims.Subject,
		Role:  role,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
