package auth

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/internal/wechat"
	"github.com/communitymeet/backend/pkg/response"
)

// SessionExchanger exchanges a mini-program login code for an identity.
type SessionExchanger interface {
	Code2Session(ctx context.Context, code string) (*wechat.Session, error)
}

// UserStore is the user persistence surface the handler needs. Implemented
// by Repository.
type UserStore interface {
	Upsert(ctx context.Context, openid, unionid, nickname, avatar string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, giteeName, email, telephone, company, signature string) (*models.User, error)
	ListByActivityLevel(ctx context.Context, level int, search string) ([]models.User, error)
	SetActivityLevel(ctx context.Context, ids []uuid.UUID, from, to int) error
}

// Handler serves login and profile endpoints.
type Handler struct {
	repo   UserStore
	jwt    *JWTService
	wx     SessionExchanger
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo UserStore, jwt *JWTService, wx SessionExchanger, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, wx: wx, logger: logger}
}

type loginRequest struct {
	Code     string `json:"code" binding:"required"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

type loginResponse struct {
	Token string       `json:"access"`
	User  *models.User `json:"user"`
}

// Login exchanges a WeChat login code for an API token, creating the user
// record on first sight.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "code is required")
		return
	}
	sess, err := h.wx.Code2Session(c.Request.Context(), req.Code)
	if err != nil {
		h.logger.Warn("wechat login failed", zap.Error(err))
		response.Unauthorized(c, "wechat login failed")
		return
	}
	user, err := h.repo.Upsert(c.Request.Context(), sess.OpenID, sess.UnionID, req.Nickname, req.Avatar)
	if err != nil {
		h.logger.Error("upsert user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}
	token, err := h.jwt.Generate(user.ID)
	if err != nil {
		h.logger.Error("issue token", zap.Error(err))
		response.Internal(c, "failed to issue token")
		return
	}
	response.OK(c, loginResponse{Token: token, User: user})
}

// Me returns the caller's profile.
func (h *Handler) Me(c *gin.Context) {
	u, ok := User(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	response.OK(c, u)
}

type profileRequest struct {
	GiteeName string `json:"gitee_name"`
	Email     string `json:"email"`
	Telephone string `json:"telephone"`
	Company   string `json:"company"`
	Signature string `json:"signature"`
}

// UpdateProfile updates the caller's editable profile fields.
func (h *Handler) UpdateProfile(c *gin.Context) {
	id, ok := UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	u, err := h.repo.UpdateProfile(c.Request.Context(), id, req.GiteeName, req.Email, req.Telephone, req.Company, req.Signature)
	if err != nil {
		h.logger.Error("update profile", zap.Error(err))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, u)
}

type sponsorRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required"`
}

// ListSponsors lists users on the activity sponsor track, optionally
// filtered by nickname search.
func (h *Handler) ListSponsors(c *gin.Context) {
	users, err := h.repo.ListByActivityLevel(c.Request.Context(), models.LevelMaintainer, c.Query("search"))
	if err != nil {
		h.logger.Error("list sponsors", zap.Error(err))
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, users)
}

// ListNonSponsors lists ordinary users eligible for sponsor promotion.
func (h *Handler) ListNonSponsors(c *gin.Context) {
	users, err := h.repo.ListByActivityLevel(c.Request.Context(), models.LevelUser, c.Query("search"))
	if err != nil {
		h.logger.Error("list non-sponsors", zap.Error(err))
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, users)
}

// AddSponsors promotes users to the activity sponsor level.
func (h *Handler) AddSponsors(c *gin.Context) {
	var req sponsorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_ids is required")
		return
	}
	if err := h.repo.SetActivityLevel(c.Request.Context(), req.UserIDs, models.LevelUser, models.LevelMaintainer); err != nil {
		h.logger.Error("add sponsors", zap.Error(err))
		response.Internal(c, "failed to update users")
		return
	}
	response.NoContent(c)
}

// RemoveSponsors demotes sponsors back to ordinary users.
func (h *Handler) RemoveSponsors(c *gin.Context) {
	var req sponsorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_ids is required")
		return
	}
	if err := h.repo.SetActivityLevel(c.Request.Context(), req.UserIDs, models.LevelMaintainer, models.LevelUser); err != nil {
		h.logger.Error("remove sponsors", zap.Error(err))
		response.Internal(c, "failed to update users")
		return
	}
	response.NoContent(c)
}
