package middleware

import (
	"idea-research/internal/models"
	"idea-research/internal/services"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	claimsKey = "claims"
	userIDKey = "user_id"
)

// AuthenticateUser validates the bearer token and stores its claims in the
// context. Browsers cannot set headers on websocket upgrades, so a "token"
// query parameter is accepted as well. A nil service disables authentication.
func AuthenticateUser(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtService == nil {
			c.Next()
			return
		}

		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
			return
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetUserID returns the authenticated user id, or "" when unauthenticated
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// GetClaims returns the validated token claims, or nil when unauthenticated
func GetClaims(c *gin.Context) *models.Claims {
	value, exists := c.Get(claimsKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.Claims)
	return claims
}
