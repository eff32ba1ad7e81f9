package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mudcore/mudcore/pkg/permission"
)

// OperatorHeader names the caller whose Permissions level gates
// RequireLevel-protected routes. The admin API authenticates the
// connection with the API key (see Auth); this header identifies which
// operator is acting over that connection so level checks run against
// the same Permissions table the game itself enforces.
const OperatorHeader = "X-Operator"

// RequireLevel rejects requests from an operator whose Permissions
// level is below min. The check goes through Permissions.HasLevel and
// adds no entry to the audit log.
func RequireLevel(perms *permission.Permissions, min permission.Level) gin.HandlerFunc {
	return func(c *gin.Context) {
		operator := c.GetHeader(OperatorHeader)
		if !perms.HasLevel(operator, min) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permission level"})
			return
		}
		c.Next()
	}
}
