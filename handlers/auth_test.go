package handlers

import (
	"net/http"
	"testing"
)

func TestSignUpLoginAndMe(t *testing.T) {
	srv := newTestServer(t)

	token := srv.signUp(t, "doc@example.com")

	rec := srv.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me returned %d: %s", rec.Code, rec.Body.String())
	}
	me := decode[PsychologistResponse](t, rec)
	if me.Email != "doc@example.com" {
		t.Errorf("me email = %q, want doc@example.com", me.Email)
	}

	rec = srv.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "doc@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	srv.signUp(t, "doc@example.com")

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    "doc@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup returned %d, want 409", rec.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	srv.signUp(t, "doc@example.com")

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "doc@example.com",
		"password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("login with wrong password returned %d, want 401", rec.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signUp(t, "doc@example.com")

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("me after logout returned %d, want 401", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/clients", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated list returned %d, want 401", rec.Code)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/clients", "not-a-real-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bogus token list returned %d, want 401", rec.Code)
	}
}
