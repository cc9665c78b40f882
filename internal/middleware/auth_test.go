package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/infrastructure"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	verifier := NewTokenVerifier(&infrastructure.JWTConfig{SecretKey: testSecret})

	r := gin.New()
	r.GET("/me", AuthMiddleware(verifier), func(c *gin.Context) {
		id, ok := RequireParticipant(c)
		if !ok {
			return
		}
		token, _ := domain.CredentialsFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": id, "forwarded": token != ""})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	valid := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	legacy := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "u2",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-token", status: http.StatusUnauthorized},
		{name: "subject claim", header: "Bearer " + valid, status: http.StatusOK, body: `{"forwarded":true,"id":"u1"}`},
		{name: "id claim", header: "Bearer " + legacy, status: http.StatusOK, body: `{"forwarded":true,"id":"u2"}`},
		{name: "query token", query: "?access_token=" + valid, status: http.StatusOK, body: `{"forwarded":true,"id":"u1"}`},
	}

	r := newAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(AuthorizationHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Fatalf("unexpected body %s", w.Body.String())
			}
		})
	}
}

func TestVerifierRejectsOtherAlgorithms(t *testing.T) {
	verifier := NewTokenVerifier(&infrastructure.JWTConfig{SecretKey: testSecret})
	token := signToken(t, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "u1"})

	if _, err := verifier.Verify(token); err != domain.ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifierChecksIssuer(t *testing.T) {
	verifier := NewTokenVerifier(&infrastructure.JWTConfig{SecretKey: testSecret, Issuer: "backend"})

	if _, err := verifier.Verify(signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "iss": "other"})); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
	id, err := verifier.Verify(signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "iss": "backend"}))
	if err != nil || id != "u1" {
		t.Fatalf("expected u1, got %q, %v", id, err)
	}
}
