package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"parking-service/internal/auth"
	"parking-service/internal/model"
)

const (
	claimsContextKey    = "tokenClaims"
	principalContextKey = "principal"
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer"
	accessTokenQuery    = "access_token"
)

// Auth accepts a bearer token from the Authorization header or, for
// browsers opening a websocket, from the access_token query parameter.
func Auth(parser *auth.Parser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header missing"})
			return
		}

		claims, err := parser.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		principal := model.Principal{
			UserID: claims.UserID,
			Role:   claims.Role,
		}

		c.Set(claimsContextKey, claims)
		c.Set(principalContextKey, principal)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, bool) {
	rawHeader := c.GetHeader(authorizationHeader)
	if rawHeader == "" {
		token := strings.TrimSpace(c.Query(accessTokenQuery))
		return token, token != ""
	}

	parts := strings.SplitN(rawHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func MustPrincipal(c *gin.Context) (model.Principal, bool) {
	value, exists := c.Get(principalContextKey)
	if !exists {
		return model.Principal{}, false
	}

	principal, ok := value.(model.Principal)
	if !ok {
		return model.Principal{}, false
	}

	return principal, true
}
