package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cvlift/cvlift-api/internal/pkg/jwt"
)

type countingProvisioner struct {
	calls atomic.Int64
}

func (p *countingProvisioner) EnsureUser(context.Context, string, string) error {
	p.calls.Add(1)
	return nil
}

func newAuthedRequest(t *testing.T, svc *jwt.Service) *http.Request {
	t.Helper()
	token, err := svc.GenerateAccessToken("user-1", "u@test.com")
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAuthResolvesIdentity(t *testing.T) {
	svc := jwt.NewService("secret", time.Minute)

	var gotUserID, gotEmail string
	handler := Auth(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotEmail = GetEmail(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newAuthedRequest(t, svc))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotUserID != "user-1" || gotEmail != "u@test.com" {
		t.Fatalf("unexpected identity: %q %q", gotUserID, gotEmail)
	}
}

func TestAuthRejectsMissingOrBadHeader(t *testing.T) {
	svc := jwt.NewService("secret", time.Minute)
	handler := Auth(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	svc := jwt.NewService("secret", -time.Minute)
	handler := Auth(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newAuthedRequest(t, svc))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestAuthProvisionsOncePerIdentity(t *testing.T) {
	svc := jwt.NewService("secret", time.Minute)
	p := &countingProvisioner{}
	handler := Auth(svc, p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newAuthedRequest(t, svc))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	if got := p.calls.Load(); got != 1 {
		t.Fatalf("expected one provisioning call, got %d", got)
	}
}
