package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dheysonavelleda/radiestesia-agendamento/internal/actor"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims ActorClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims(sub, role string) ActorClaims {
	return ActorClaims{
		Role:  role,
		Email: sub + "@example.com",
		Name:  "Maria",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func captureActor(got *actor.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, _ := actor.FromContext(r.Context())
		*got = a
		w.WriteHeader(http.StatusOK)
	})
}

func TestActorJWT(t *testing.T) {
	expired := validClaims("user-1", "CLIENT")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noSubject := validClaims("", "CLIENT")
	noExpiry := validClaims("user-1", "CLIENT")
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantRole actor.Role
	}{
		{name: "client", header: "Bearer " + signToken(t, testSecret, validClaims("user-1", "CLIENT")), wantCode: http.StatusOK, wantRole: actor.RoleClient},
		{name: "admin case insensitive", header: "Bearer " + signToken(t, testSecret, validClaims("joana", "admin")), wantCode: http.StatusOK, wantRole: actor.RoleAdmin},
		{name: "unknown role is client", header: "Bearer " + signToken(t, testSecret, validClaims("user-2", "owner")), wantCode: http.StatusOK, wantRole: actor.RoleClient},
		{name: "missing header", header: "", wantCode: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantCode: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other", validClaims("user-1", "CLIENT")), wantCode: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, testSecret, expired), wantCode: http.StatusUnauthorized},
		{name: "no expiry", header: "Bearer " + signToken(t, testSecret, noExpiry), wantCode: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + signToken(t, testSecret, noSubject), wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got actor.Actor
			req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			ActorJWT(testSecret)(captureActor(&got)).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantCode == http.StatusOK && got.Role != tt.wantRole {
				t.Fatalf("expected role %s, got %+v", tt.wantRole, got)
			}
		})
	}
}

func TestActorJWT_ClaimsMapped(t *testing.T) {
	var got actor.Actor
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims("user-9", "CLIENT")))
	rec := httptest.NewRecorder()
	ActorJWT(testSecret)(captureActor(&got)).ServeHTTP(rec, req)

	if got.ID != "user-9" || got.Email != "user-9@example.com" || got.Name != "Maria" {
		t.Fatalf("unexpected actor %+v", got)
	}
}

func TestActorJWT_NotConfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims("user-1", "CLIENT")))
	rec := httptest.NewRecorder()
	var got actor.Actor
	ActorJWT("")(captureActor(&got)).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a secret, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name string
		ctx  func(r *http.Request) *http.Request
		want int
	}{
		{name: "anonymous", ctx: func(r *http.Request) *http.Request { return r }, want: http.StatusUnauthorized},
		{name: "client", ctx: func(r *http.Request) *http.Request {
			return r.WithContext(actor.WithActor(r.Context(), actor.Actor{ID: "user-1", Role: actor.RoleClient}))
		}, want: http.StatusForbidden},
		{name: "admin", ctx: func(r *http.Request) *http.Request {
			return r.WithContext(actor.WithActor(r.Context(), actor.Actor{ID: "joana", Role: actor.RoleAdmin}))
		}, want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.ctx(httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
			rec := httptest.NewRecorder()
			RequireAdmin(ok).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
