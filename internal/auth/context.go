package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/communitymeet/backend/internal/models"
)

// Context keys set by the auth middleware chain.
const (
	ContextUserID = "user_id"
	ContextUser   = "user"
)

// UserID returns the authenticated user id from the request context.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// User returns the fresh user record loaded by the level middleware.
func User(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}
