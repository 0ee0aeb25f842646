package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"psychologist-records/utils"
)

// PsychologistIDKey is the context key carrying the resolved identity.
// Scoped handlers must read it and never query with an empty owner.
const PsychologistIDKey = "psychologist_id"

// RequireAuth resolves the bearer token to a psychologist id and aborts
// with 401 when no identity is resolvable.
func RequireAuth(tokens utils.TokenStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		id, err := tokens.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set(PsychologistIDKey, id)
		c.Set("auth_token", token)
		c.Next()
	}
}

// CurrentPsychologistID returns the identity set by RequireAuth, empty when
// the request is unauthenticated.
func CurrentPsychologistID(c *gin.Context) string {
	return c.GetString(PsychologistIDKey)
}
