package cities

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/middleware"
	"github.com/communitymeet/backend/pkg/response"
)

// Handler serves city endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a cities handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List returns all cities.
func (h *Handler) List(c *gin.Context) {
	out, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list cities", zap.Error(err))
		response.Internal(c, "failed to list cities")
		return
	}
	response.OK(c, out)
}

// Mine returns the cities the caller sponsors.
func (h *Handler) Mine(c *gin.Context) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	out, err := h.repo.UserCities(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list user cities", zap.Error(err))
		response.Internal(c, "failed to list cities")
		return
	}
	response.OK(c, out)
}

type createRequest struct {
	Name     string `json:"name" binding:"required"`
	Etherpad string `json:"etherpad"`
}

// Create registers a new city. Name collisions are rejected.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		response.BadRequest(c, "name is required")
		return
	}
	if _, err := h.repo.GetByName(c.Request.Context(), req.Name); err == nil {
		response.Conflict(c, "city already exists")
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		h.logger.Error("lookup city", zap.Error(err))
		response.Internal(c, "failed to create city")
		return
	}
	city, err := h.repo.Create(c.Request.Context(), req.Name, req.Etherpad)
	if err != nil {
		h.logger.Error("create city", zap.Error(err))
		response.Internal(c, "failed to create city")
		return
	}
	response.Created(c, city)
}

// Sponsors lists sponsors of a city. ?exclude=1 inverts the filter.
func (h *Handler) Sponsors(c *gin.Context) {
	cityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid city id")
		return
	}
	invert := c.Query("exclude") == "1"
	out, err := h.repo.Sponsors(c.Request.Context(), cityID, invert, c.Query("search"))
	if err != nil {
		h.logger.Error("list city sponsors", zap.Error(err))
		response.Internal(c, "failed to list sponsors")
		return
	}
	response.OK(c, out)
}

type sponsorsRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required"`
}

// AddSponsors grants city sponsor membership.
func (h *Handler) AddSponsors(c *gin.Context) {
	cityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid city id")
		return
	}
	var req sponsorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_ids is required")
		return
	}
	if err := h.repo.AddSponsors(c.Request.Context(), cityID, req.UserIDs); err != nil {
		h.logger.Error("add city sponsors", zap.Error(err))
		response.Internal(c, "failed to add sponsors")
		return
	}
	response.NoContent(c)
}

// RemoveSponsors revokes city sponsor membership.
func (h *Handler) RemoveSponsors(c *gin.Context) {
	cityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid city id")
		return
	}
	var req sponsorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_ids is required")
		return
	}
	if err := h.repo.RemoveSponsors(c.Request.Context(), cityID, req.UserIDs); err != nil {
		h.logger.Error("remove city sponsors", zap.Error(err))
		response.Internal(c, "failed to remove sponsors")
		return
	}
	response.NoContent(c)
}
