package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/communitymeet/backend/internal/auth"
	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/pkg/response"
)

// RequireLevel loads the caller from the store and rejects the request
// unless their meeting permission level is at least min. The fresh user
// record is stored in the context for handlers.
func RequireLevel(users *auth.Repository, min int) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := loadUser(c, users)
		if u == nil {
			return
		}
		if u.Level < min {
			response.Forbidden(c, "insufficient permission")
			c.Abort()
			return
		}
		c.Set(auth.ContextUser, u)
		c.Next()
	}
}

// RequireActivityLevel is RequireLevel for the activity permission track.
func RequireActivityLevel(users *auth.Repository, min int) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := loadUser(c, users)
		if u == nil {
			return
		}
		if u.ActivityLevel < min {
			response.Forbidden(c, "insufficient activity permission")
			c.Abort()
			return
		}
		c.Set(auth.ContextUser, u)
		c.Next()
	}
}

// LoadUser attaches the fresh user record without a level check.
func LoadUser(users *auth.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := loadUser(c, users)
		if u == nil {
			return
		}
		c.Set(auth.ContextUser, u)
		c.Next()
	}
}

func loadUser(c *gin.Context, users *auth.Repository) *models.User {
	id, ok := UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		c.Abort()
		return nil
	}
	u, err := users.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Unauthorized(c, "unknown user")
		c.Abort()
		return nil
	}
	return u
}

// User returns the fresh user record set by RequireLevel or LoadUser.
func User(c *gin.Context) (*models.User, bool) {
	return auth.User(c)
}
