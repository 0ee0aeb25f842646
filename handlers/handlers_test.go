package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"psychologist-records/middleware"
	"psychologist-records/models"
	"psychologist-records/utils"
)

// testServer wires the handlers against the in-memory repository and token
// store, mirroring the route layout from main.
type testServer struct {
	router *gin.Engine
	repo   models.Repository
	tokens utils.TokenStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := models.NewMemoryRepository()
	tokens := utils.NewMemoryTokenStore()

	authHandler := NewAuthHandler(repo, tokens)
	clientHandler := NewClientHandler(repo, nil)
	sessionHandler := NewSessionHandler(repo, nil)

	router := gin.New()
	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.SignUp)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", middleware.RequireAuth(tokens), authHandler.Logout)
	auth.GET("/me", middleware.RequireAuth(tokens), authHandler.Me)

	protected := api.Group("", middleware.RequireAuth(tokens))
	protected.GET("/clients", clientHandler.ListClients)
	protected.POST("/clients", clientHandler.CreateClient)
	protected.GET("/clients/:id", clientHandler.GetClient)
	protected.PUT("/clients/:id", clientHandler.UpdateClient)
	protected.DELETE("/clients/:id", clientHandler.DeleteClient)
	protected.GET("/clients/:id/sessions", sessionHandler.ListSessions)
	protected.POST("/clients/:id/sessions", sessionHandler.CreateSession)
	protected.GET("/clients/:id/sessions/:sessionId", sessionHandler.GetSession)
	protected.PUT("/clients/:id/sessions/:sessionId", sessionHandler.UpdateSession)
	protected.DELETE("/clients/:id/sessions/:sessionId", sessionHandler.DeleteSession)

	return &testServer{router: router, repo: repo, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// signUp registers a psychologist and returns a live token.
func (s *testServer) signUp(t *testing.T, email string) string {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    email,
		"password": "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode signup response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("signup returned an empty token")
	}
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}
