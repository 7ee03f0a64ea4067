package feedback

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/middleware"
	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/internal/notify"
	"github.com/communitymeet/backend/pkg/response"
)

// Handler serves the feedback endpoint.
type Handler struct {
	repo      *Repository
	mailer    *notify.Mailer
	receivers []string
	logger    *zap.Logger
}

// NewHandler creates a feedback handler. receivers is the operations
// mailbox list feedback is forwarded to.
func NewHandler(repo *Repository, mailer *notify.Mailer, receivers []string, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, mailer: mailer, receivers: receivers, logger: logger}
}

type feedbackRequest struct {
	Type    int    `json:"feedback_type" binding:"required"`
	Email   string `json:"feedback_email"`
	Content string `json:"feedback_content" binding:"required"`
}

// Submit stores a feedback entry and forwards it by mail. Mail failure is
// logged only; the entry is already persisted.
func (h *Handler) Submit(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "feedback_type and feedback_content are required")
		return
	}
	if req.Type != 1 && req.Type != 2 {
		response.BadRequest(c, "feedback_type must be 1 (issue) or 2 (suggestion)")
		return
	}
	f := &models.Feedback{UserID: userID, Type: req.Type, Email: req.Email, Content: req.Content}
	if err := h.repo.Create(c.Request.Context(), f); err != nil {
		h.logger.Error("store feedback", zap.Error(err))
		response.Internal(c, "failed to store feedback")
		return
	}
	if len(h.receivers) > 0 {
		kind := "issue"
		if req.Type == 2 {
			kind = "suggestion"
		}
		subject := fmt.Sprintf("[feedback] new %s", kind)
		body := fmt.Sprintf("From: %s\nReply-to: %s\n\n%s\n", userID, req.Email, req.Content)
		if err := h.mailer.Send(h.receivers, subject, body); err != nil {
			h.logger.Warn("forward feedback mail", zap.Error(err))
		}
	}
	response.Created(c, f)
}
