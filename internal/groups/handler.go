package groups

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/middleware"
	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/pkg/response"
)

// Handler serves group listing and membership endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a groups handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List returns groups, optionally filtered by type (?type=1|2|3).
func (h *Handler) List(c *gin.Context) {
	groupType := 0
	switch c.Query("type") {
	case "1":
		groupType = models.GroupTypeSIG
	case "2":
		groupType = models.GroupTypeMSG
	case "3":
		groupType = models.GroupTypePro
	}
	out, err := h.repo.List(c.Request.Context(), groupType)
	if err != nil {
		h.logger.Error("list groups", zap.Error(err))
		response.Internal(c, "failed to list groups")
		return
	}
	response.OK(c, out)
}

// Mine returns the groups the caller maintains.
func (h *Handler) Mine(c *gin.Context) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	out, err := h.repo.UserGroups(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list user groups", zap.Error(err))
		response.Internal(c, "failed to list groups")
		return
	}
	response.OK(c, out)
}

// Members lists members of a group. ?exclude=1 inverts the filter to list
// users not yet in the group, for the add-member picker.
func (h *Handler) Members(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}
	invert := c.Query("exclude") == "1"
	out, err := h.repo.Members(c.Request.Context(), groupID, invert, c.Query("search"))
	if err != nil {
		h.logger.Error("list group members", zap.Error(err))
		response.Internal(c, "failed to list members")
		return
	}
	response.OK(c, out)
}

type membersRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required"`
}

// AddMembers grants maintainer membership to the given users.
func (h *Handler) AddMembers(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}
	var req membersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_ids is required")
		return
	}
	if err := h.repo.AddMembers(c.Request.Context(), groupID, req.UserIDs); err != nil {
		h.logger.Error("add group members", zap.Error(err))
		response.Internal(c, "failed to add members")
		return
	}
	response.NoContent(c)
}

// RemoveMembers revokes maintainer membership from the given users.
func (h *Handler) RemoveMembers(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}
	var req membersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_ids is required")
		return
	}
	if err := h.repo.RemoveMembers(c.Request.Context(), groupID, req.UserIDs); err != nil {
		h.logger.Error("remove group members", zap.Error(err))
		response.Internal(c, "failed to remove members")
		return
	}
	response.NoContent(c)
}
