package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/mmdatafocus/jewelry_pos/utils"
)

const sessionUserKey = "session_user"

// SessionMiddleware resolves the token header into the business, user id and
// user name carried by the request context. Requests without a token pass
// through untouched; RequireSession rejects them where a login is needed.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		user, err := models.ResolveSessionToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SessionContext(ctx, user.BusinessId, user.ID, user.Name)
		ctx = utils.SetUsernameInContext(ctx, user.Username)
		c.Request = c.Request.WithContext(ctx)
		c.Set(sessionUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user SessionMiddleware resolved, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(sessionUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
