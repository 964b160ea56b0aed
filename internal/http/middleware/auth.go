// README: Bearer-token auth middleware; resolves the calling staff user and role.
package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"workshop/internal/infra"
	"workshop/internal/types"
)

const (
	ctxCallerUID  = "caller_uid"
	ctxCallerID   = "caller_id"
	ctxCallerRole = "caller_role"
)

// Auth verifies the Authorization bearer token. The workshop user id comes
// from the "user_id" claim, falling back to a numeric UID.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		id, err := userID(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no workshop user id"})
			return
		}
		role, _ := token.Claims["role"].(string)
		c.Set(ctxCallerUID, token.UID)
		c.Set(ctxCallerID, id)
		c.Set(ctxCallerRole, strings.ToUpper(role))
		c.Next()
	}
}

func userID(token *infra.FirebaseToken) (types.ID, error) {
	switch v := token.Claims["user_id"].(type) {
	case float64:
		// JSON numbers arrive as float64; only exact whole ids are accepted.
		if v > 0 && v == math.Trunc(v) && v <= 1<<53 {
			return types.ID(v), nil
		}
	case string:
		return types.ParseID(v)
	case nil:
		return types.ParseID(token.UID)
	}
	return 0, fmt.Errorf("unsupported user_id claim %v", token.Claims["user_id"])
}

// RequireRole rejects callers whose role is not listed. It must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CallerRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role " + role + " may not perform this action"})
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxCallerUID)
}

func CallerID(c *gin.Context) types.ID {
	v, _ := c.Get(ctxCallerID)
	id, _ := v.(types.ID)
	return id
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxCallerRole)
}
