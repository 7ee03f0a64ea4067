package meetings

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/errs"
	"github.com/communitymeet/backend/internal/middleware"
	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/pkg/clock"
	"github.com/communitymeet/backend/pkg/response"
)

// Handler serves meeting endpoints.
type Handler struct {
	svc        *Service
	repo       *Repository
	clk        clock.Clock
	queryToken string
	logger     *zap.Logger
}

// NewHandler creates a meetings handler. queryToken guards the participant
// listing endpoint used by community tooling.
func NewHandler(svc *Service, repo *Repository, clk clock.Clock, queryToken string, logger *zap.Logger) *Handler {
	if clk == nil {
		clk = clock.System{}
	}
	return &Handler{svc: svc, repo: repo, clk: clk, queryToken: queryToken, logger: logger}
}

type createRequest struct {
	Platform    string `json:"platform"`
	Topic       string `json:"topic" binding:"required"`
	Sponsor     string `json:"sponsor" binding:"required"`
	MeetingType int    `json:"meeting_type"`
	Date        string `json:"date" binding:"required"`
	Start       string `json:"start" binding:"required"`
	End         string `json:"end" binding:"required"`
	GroupName   string `json:"group_name" binding:"required"`
	City        string `json:"city"`
	Etherpad    string `json:"etherpad"`
	EmailList   string `json:"emaillist"`
	Agenda      string `json:"agenda"`
	Record      bool   `json:"record"`
}

// Create books a new meeting for the calling maintainer.
func (h *Handler) Create(c *gin.Context) {
	caller, ok := middleware.User(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "topic, sponsor, date, start, end and group_name are required")
		return
	}
	m, err := h.svc.Create(c.Request.Context(), caller, CreateParams{
		Platform:    req.Platform,
		Topic:       req.Topic,
		Sponsor:     req.Sponsor,
		MeetingType: req.MeetingType,
		Date:        req.Date,
		Start:       req.Start,
		End:         req.End,
		GroupName:   req.GroupName,
		City:        req.City,
		Etherpad:    req.Etherpad,
		EmailList:   req.EmailList,
		Agenda:      req.Agenda,
		Record:      req.Record,
	})
	if err != nil {
		h.writeError(c, err, "failed to create meeting")
		return
	}
	response.Created(c, m)
}

// Cancel cancels a live meeting by its provider meeting code.
func (h *Handler) Cancel(c *gin.Context) {
	caller, ok := middleware.User(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), caller, c.Param("mid")); err != nil {
		h.writeError(c, err, "failed to cancel meeting")
		return
	}
	response.NoContent(c)
}

// Detail returns one live meeting by provider meeting code.
func (h *Handler) Detail(c *gin.Context) {
	m, err := h.repo.GetLiveByMID(c.Request.Context(), c.Param("mid"))
	if err != nil {
		response.NotFound(c, "meeting not found")
		return
	}
	response.OK(c, m)
}

// List returns live meetings. ?type filters by meeting type, ?range is one
// of daily, weekly or recently.
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{
		Range: c.Query("range"),
		Today: h.clk.Now().Format("2006-01-02"),
	}
	switch c.Query("type") {
	case "1":
		f.MeetingType = models.MeetingTypeSIG
	case "2":
		f.MeetingType = models.MeetingTypeMSG
	case "3":
		f.MeetingType = models.MeetingTypeTech
	}
	out, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list meetings", zap.Error(err))
		response.Internal(c, "failed to list meetings")
		return
	}
	response.OK(c, out)
}

// Participants lists live attendance for community tooling. The endpoint is
// guarded by a shared query token instead of a user session.
func (h *Handler) Participants(c *gin.Context) {
	if h.queryToken == "" || c.Query("token") != h.queryToken {
		response.Unauthorized(c, "invalid query token")
		return
	}
	out, err := h.svc.Participants(c.Request.Context(), c.Param("mid"))
	if err != nil {
		h.writeError(c, err, "failed to list participants")
		return
	}
	response.OK(c, out)
}

// Calendar returns live meetings between two dates grouped by date, for the
// mini-program calendar view.
func (h *Handler) Calendar(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" || from > to {
		response.BadRequest(c, "from and to dates are required")
		return
	}
	list, err := h.repo.ListBetweenDates(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Error("calendar listing", zap.Error(err))
		response.Internal(c, "failed to list meetings")
		return
	}
	byDate := make(map[string][]models.Meeting)
	for _, m := range list {
		byDate[m.Date] = append(byDate[m.Date], m)
	}
	response.OK(c, byDate)
}

// Mine returns the caller's live meetings.
func (h *Handler) Mine(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	out, err := h.repo.List(c.Request.Context(), ListFilter{
		UserID: &userID,
		Today:  h.clk.Now().Format("2006-01-02"),
	})
	if err != nil {
		h.logger.Error("list my meetings", zap.Error(err))
		response.Internal(c, "failed to list meetings")
		return
	}
	response.OK(c, out)
}

// Collections returns the caller's favorited meetings.
func (h *Handler) Collections(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	out, err := h.repo.ListCollected(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list collected meetings", zap.Error(err))
		response.Internal(c, "failed to list meetings")
		return
	}
	response.OK(c, out)
}

type collectRequest struct {
	MeetingID uuid.UUID `json:"meeting_id" binding:"required"`
}

// Collect favorites a meeting for the caller.
func (h *Handler) Collect(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	var req collectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "meeting_id is required")
		return
	}
	if _, err := h.repo.GetByID(c.Request.Context(), req.MeetingID); err != nil {
		response.NotFound(c, "meeting not found")
		return
	}
	id, err := h.repo.AddCollect(c.Request.Context(), req.MeetingID, userID)
	if err != nil {
		h.logger.Error("collect meeting", zap.Error(err))
		response.Internal(c, "failed to collect meeting")
		return
	}
	response.Created(c, gin.H{"collection_id": id})
}

// Uncollect removes a favorite by collection id.
func (h *Handler) Uncollect(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	collectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid collection id")
		return
	}
	deleted, err := h.repo.DeleteCollect(c.Request.Context(), collectID, userID)
	if err != nil {
		h.logger.Error("uncollect meeting", zap.Error(err))
		response.Internal(c, "failed to remove collection")
		return
	}
	if !deleted {
		response.NotFound(c, "collection not found")
		return
	}
	response.NoContent(c)
}

// Counts returns the caller's created and favorited meeting counters.
func (h *Handler) Counts(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	created, err := h.repo.CountByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("count meetings", zap.Error(err))
		response.Internal(c, "failed to count meetings")
		return
	}
	collected, err := h.repo.CountCollected(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("count collected meetings", zap.Error(err))
		response.Internal(c, "failed to count meetings")
		return
	}
	response.OK(c, gin.H{"created": created, "collected": collected})
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, errs.ErrConflict):
		response.Conflict(c, err.Error())
	case errors.Is(err, errs.ErrPermission):
		response.Forbidden(c, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, errs.ErrProvider):
		response.ServiceUnavailable(c, err.Error())
	default:
		h.logger.Error(fallback, zap.Error(err))
		response.Internal(c, fallback)
	}
}
