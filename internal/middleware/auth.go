package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/infrastructure"
)

const (
	// AuthorizationHeader is the header key for the JWT token
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for the JWT token
	BearerPrefix = "Bearer "
	// ParticipantIDKey is the context key for the participant ID
	ParticipantIDKey = "participantID"
)

// TokenVerifier checks tokens issued by the application backend. The engine
// never issues tokens itself.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a verifier for HS256 tokens signed with the shared secret
func NewTokenVerifier(config *infrastructure.JWTConfig) *TokenVerifier {
	return &TokenVerifier{secret: []byte(config.SecretKey), issuer: config.Issuer}
}

// Verify validates a token and returns the participant it was issued to.
// The participant is read from "sub", falling back to "id".
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", domain.ErrInvalidToken
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id, nil
	}
	return "", domain.ErrInvalidToken
}

// AuthMiddleware requires a valid bearer token. The participant ID is stored
// in the gin context and the raw token is forwarded to the backend through
// the request context.
func AuthMiddleware(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header is required",
			})
			c.Abort()
			return
		}

		participantID, err := verifier.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(ParticipantIDKey, participantID)
		c.Request = c.Request.WithContext(domain.WithCredentials(c.Request.Context(), token))
		c.Next()
	}
}

// bearerToken reads the token from the Authorization header. Browsers cannot
// set headers on websocket upgrades, so the access_token query parameter is
// accepted as well.
func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader(AuthorizationHeader); header != "" {
		if !strings.HasPrefix(header, BearerPrefix) {
			return "", false
		}
		token := strings.TrimPrefix(header, BearerPrefix)
		return token, token != ""
	}
	token := c.Query("access_token")
	return token, token != ""
}

// GetParticipantID extracts the participant ID from the gin context
func GetParticipantID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ParticipantIDKey)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// RequireParticipant ensures a participant is authenticated and returns their ID.
// If not authenticated, it aborts the request
func RequireParticipant(c *gin.Context) (string, bool) {
	id, ok := GetParticipantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Authentication required",
		})
		c.Abort()
		return "", false
	}
	return id, true
}
