package activities

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/middleware"
	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/pkg/clock"
	"github.com/communitymeet/backend/pkg/response"
	"github.com/communitymeet/backend/pkg/storage"
)

// QRGenerator renders a mini-program QR code image for an activity page.
type QRGenerator interface {
	PageQRCode(ctx context.Context, scene, page string) ([]byte, error)
}

// Uploader publishes the QR code image to object storage.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64, metadata map[string]string) (string, error)
}

// Handler serves activity endpoints.
type Handler struct {
	repo   *Repository
	qr     QRGenerator
	store  Uploader
	clk    clock.Clock
	logger *zap.Logger
}

// NewHandler creates an activities handler.
func NewHandler(repo *Repository, qr QRGenerator, store Uploader, clk clock.Clock, logger *zap.Logger) *Handler {
	if clk == nil {
		clk = clock.System{}
	}
	return &Handler{repo: repo, qr: qr, store: store, clk: clk, logger: logger}
}

type activityRequest struct {
	Title          string          `json:"title" binding:"required"`
	StartDate      string          `json:"start_date" binding:"required"`
	EndDate        string          `json:"end_date" binding:"required"`
	Category       int             `json:"activity_category"`
	ActivityType   int             `json:"activity_type"`
	Address        string          `json:"address"`
	DetailAddress  string          `json:"detail_address"`
	Longitude      string          `json:"longitude"`
	Latitude       string          `json:"latitude"`
	RegisterMethod int             `json:"register_method"`
	OnlineURL      string          `json:"online_url"`
	RegisterURL    string          `json:"register_url"`
	Synopsis       string          `json:"synopsis"`
	Schedules      json.RawMessage `json:"schedules"`
	Poster         int             `json:"poster"`
	Publish        bool            `json:"publish"`
}

func (h *Handler) validateDates(req *activityRequest, submitting bool) string {
	if req.StartDate > req.EndDate {
		return "start_date must not be after end_date"
	}
	if submitting {
		tomorrow := h.clk.Now().AddDate(0, 0, 1).Format("2006-01-02")
		if req.StartDate < tomorrow {
			return "start_date must be at least one day ahead"
		}
	}
	return ""
}

// Create stores a new activity as a draft, or submits it straight to
// review when publish is set.
func (h *Handler) Create(c *gin.Context) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "title, start_date and end_date are required")
		return
	}
	if msg := h.validateDates(&req, req.Publish); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	a := h.fromRequest(&req)
	a.UserID = id
	a.Status = models.ActivityStatusDraft
	if req.Publish {
		a.Status = models.ActivityStatusPending
	}
	if err := h.repo.Create(c.Request.Context(), a); err != nil {
		h.logger.Error("create activity", zap.Error(err))
		response.Internal(c, "failed to create activity")
		return
	}
	response.Created(c, a)
}

// UpdateDraft edits an unpublished activity. Setting publish submits it to
// review.
func (h *Handler) UpdateDraft(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "title, start_date and end_date are required")
		return
	}
	if msg := h.validateDates(&req, req.Publish); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	a := h.fromRequest(&req)
	a.ID = activityID
	a.UserID = userID
	a.Status = models.ActivityStatusDraft
	if req.Publish {
		a.Status = models.ActivityStatusPending
	}
	changed, err := h.repo.UpdateDraft(c.Request.Context(), a)
	if err != nil {
		h.logger.Error("update draft", zap.Error(err))
		response.Internal(c, "failed to update activity")
		return
	}
	if !changed {
		response.NotFound(c, "draft not found")
		return
	}
	response.OK(c, a)
}

// DeleteDraft removes an unpublished activity.
func (h *Handler) DeleteDraft(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	deleted, err := h.repo.DeleteDraft(c.Request.Context(), activityID, userID)
	if err != nil {
		h.logger.Error("delete draft", zap.Error(err))
		response.Internal(c, "failed to delete draft")
		return
	}
	if !deleted {
		response.NotFound(c, "draft not found")
		return
	}
	response.NoContent(c)
}

// Approve moves a pending activity into registering and publishes its QR
// code. A QR failure is logged but does not undo the approval.
func (h *Handler) Approve(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	ctx := c.Request.Context()
	changed, err := h.repo.TransitionStatus(ctx, activityID, models.ActivityStatusPending, models.ActivityStatusRegistering)
	if err != nil {
		h.logger.Error("approve activity", zap.Error(err))
		response.Internal(c, "failed to approve activity")
		return
	}
	if !changed {
		response.NotFound(c, "no pending activity to approve")
		return
	}
	if h.qr != nil && h.store != nil {
		if err := h.publishQRCode(ctx, activityID); err != nil {
			h.logger.Warn("qr code publication failed", zap.String("activity_id", activityID.String()), zap.Error(err))
		}
	}
	response.NoContent(c)
}

func (h *Handler) publishQRCode(ctx context.Context, activityID uuid.UUID) error {
	img, err := h.qr.PageQRCode(ctx, activityID.String(), "pages/activity/detail")
	if err != nil {
		return err
	}
	url, err := h.store.Upload(ctx, storage.QRCodeKey(activityID.String()), "image/png", bytes.NewReader(img), int64(len(img)), nil)
	if err != nil {
		return err
	}
	return h.repo.SetWxCode(ctx, activityID, url)
}

// Deny sends a pending activity back to draft.
func (h *Handler) Deny(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	changed, err := h.repo.TransitionStatus(c.Request.Context(), activityID, models.ActivityStatusPending, models.ActivityStatusDraft)
	if err != nil {
		h.logger.Error("deny activity", zap.Error(err))
		response.Internal(c, "failed to deny activity")
		return
	}
	if !changed {
		response.NotFound(c, "no pending activity to deny")
		return
	}
	response.NoContent(c)
}

// Delete soft-deletes a published activity.
func (h *Handler) Delete(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	deleted, err := h.repo.SoftDelete(c.Request.Context(), activityID)
	if err != nil {
		h.logger.Error("delete activity", zap.Error(err))
		response.Internal(c, "failed to delete activity")
		return
	}
	if !deleted {
		response.NotFound(c, "activity not found")
		return
	}
	response.NoContent(c)
}

// List returns published activities, optionally narrowed to one status
// (?status=3|4|5).
func (h *Handler) List(c *gin.Context) {
	statuses := []int{models.ActivityStatusRegistering, models.ActivityStatusGoing, models.ActivityStatusCompleted}
	switch strings.TrimSpace(c.Query("status")) {
	case "3":
		statuses = []int{models.ActivityStatusRegistering}
	case "4":
		statuses = []int{models.ActivityStatusGoing}
	case "5":
		statuses = []int{models.ActivityStatusCompleted}
	}
	out, err := h.repo.List(c.Request.Context(), ListFilter{Statuses: statuses})
	if err != nil {
		h.logger.Error("list activities", zap.Error(err))
		response.Internal(c, "failed to list activities")
		return
	}
	response.OK(c, out)
}

// Calendar returns published activities overlapping two dates grouped by
// start date, for the mini-program calendar view.
func (h *Handler) Calendar(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" || from > to {
		response.BadRequest(c, "from and to dates are required")
		return
	}
	list, err := h.repo.ListBetweenDates(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Error("activity calendar listing", zap.Error(err))
		response.Internal(c, "failed to list activities")
		return
	}
	byDate := make(map[string][]models.Activity)
	for _, a := range list {
		byDate[a.StartDate] = append(byDate[a.StartDate], a)
	}
	response.OK(c, byDate)
}

// Detail returns one live activity.
func (h *Handler) Detail(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	a, err := h.repo.GetLive(c.Request.Context(), activityID)
	if err != nil {
		response.NotFound(c, "activity not found")
		return
	}
	response.OK(c, a)
}

// Mine returns the caller's activities across all statuses.
func (h *Handler) Mine(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	out, err := h.repo.List(c.Request.Context(), ListFilter{UserID: userID})
	if err != nil {
		h.logger.Error("list my activities", zap.Error(err))
		response.Internal(c, "failed to list activities")
		return
	}
	response.OK(c, out)
}

// PendingReview returns activities waiting for approval.
func (h *Handler) PendingReview(c *gin.Context) {
	out, err := h.repo.List(c.Request.Context(), ListFilter{Statuses: []int{models.ActivityStatusPending}})
	if err != nil {
		h.logger.Error("list pending activities", zap.Error(err))
		response.Internal(c, "failed to list activities")
		return
	}
	response.OK(c, out)
}

// Collected returns the caller's favorited activities.
func (h *Handler) Collected(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	out, err := h.repo.ListCollected(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list collected activities", zap.Error(err))
		response.Internal(c, "failed to list activities")
		return
	}
	response.OK(c, out)
}

// Registered returns the activities the caller signed up for.
func (h *Handler) Registered(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	out, err := h.repo.ListRegistered(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list registered activities", zap.Error(err))
		response.Internal(c, "failed to list activities")
		return
	}
	response.OK(c, out)
}

func (h *Handler) joinAction(c *gin.Context, do func(ctx context.Context, activityID, userID uuid.UUID) error) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	if _, err := h.repo.GetLive(c.Request.Context(), activityID); err != nil {
		response.NotFound(c, "activity not found")
		return
	}
	if err := do(c.Request.Context(), activityID, userID); err != nil {
		h.logger.Error("activity join action", zap.Error(err))
		response.Internal(c, "operation failed")
		return
	}
	response.NoContent(c)
}

// Collect favorites an activity.
func (h *Handler) Collect(c *gin.Context) { h.joinAction(c, h.repo.AddCollect) }

// Uncollect removes a favorite.
func (h *Handler) Uncollect(c *gin.Context) { h.joinAction(c, h.repo.DeleteCollect) }

// Register signs the caller up for an activity.
func (h *Handler) Register(c *gin.Context) { h.joinAction(c, h.repo.AddRegister) }

// Sign records the caller's attendance check-in.
func (h *Handler) Sign(c *gin.Context) { h.joinAction(c, h.repo.AddSign) }

// Counts returns the caller's activity counters.
func (h *Handler) Counts(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	created, collected, registered, signed, err := h.repo.Counts(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("activity counts", zap.Error(err))
		response.Internal(c, "failed to count activities")
		return
	}
	response.OK(c, gin.H{
		"created":    created,
		"collected":  collected,
		"registered": registered,
		"signed":     signed,
	})
}

func (h *Handler) fromRequest(req *activityRequest) *models.Activity {
	return &models.Activity{
		Title:          req.Title,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Category:       req.Category,
		ActivityType:   req.ActivityType,
		Address:        req.Address,
		DetailAddress:  req.DetailAddress,
		Longitude:      req.Longitude,
		Latitude:       req.Latitude,
		RegisterMethod: req.RegisterMethod,
		OnlineURL:      req.OnlineURL,
		RegisterURL:    req.RegisterURL,
		Synopsis:       req.Synopsis,
		Schedules:      req.Schedules,
		Poster:         req.Poster,
	}
}
