package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/callrescue/callrescue/internal/config"
	"github.com/callrescue/callrescue/services"
)

// AuthMiddleware validates dashboard JWTs and cron/webhook API keys and
// puts user_id and org_id on the gin context.
type AuthMiddleware struct {
	Users   *services.UserService
	APIKeys *services.APIKeyService
}

func NewAuthMiddleware(users *services.UserService, apiKeys *services.APIKeyService) *AuthMiddleware {
	if config.App.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET not set, dashboard auth will reject all tokens")
	}
	return &AuthMiddleware{Users: users, APIKeys: apiKeys}
}

type sessionClaims struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("authorization header is required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("authorization header must be 'Bearer <token>'")
	}
	return parts[1], nil
}

// RequireSession protects the dashboard routes with an HS256 session token.
func (m *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		claims := &sessionClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(config.App.JWTSecret), nil
		})
		if err != nil || !parsed.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		user, err := m.Users.GetUser(claims.UserID)
		if err != nil || !user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown or inactive user"})
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("org_id", user.OrgID)
		c.Set("user_email", user.Email)
		c.Next()
	}
}

// RequireAPIKey protects the cron triggers and the voice-AI webhook.
func (m *AuthMiddleware) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		key, err := m.APIKeys.VerifyKey(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			c.Abort()
			return
		}

		c.Set("user_id", key.UserID)
		c.Set("org_id", key.OrgID)
		c.Set("api_key_id", key.ID)
		log.Printf("AUTH SUCCESS - API key %s (org %s)", key.Name, key.OrgID)
		c.Next()
	}
}

func orgID(c *gin.Context) string {
	return c.GetString("org_id")
}
