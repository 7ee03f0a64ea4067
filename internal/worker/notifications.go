// Package worker runs the background jobs behind meeting lifecycle
// transitions: invite mail, subscription pushes, cancellation cleanup and
// recording ingestion.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/internal/notify"
	"github.com/communitymeet/backend/internal/wechat"
	"github.com/communitymeet/backend/pkg/queue"
)

// MeetingSource is the slice of the meeting repository the worker needs.
type MeetingSource interface {
	GetLiveByMID(ctx context.Context, mid string) (*models.Meeting, error)
	GetByMID(ctx context.Context, mid string) (*models.Meeting, error)
	CollectorIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error)
	DeleteCollectsByMeeting(ctx context.Context, meetingID uuid.UUID) error
}

// UserSource resolves user rows for push recipient expansion.
type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Sender delivers notification mail.
type Sender interface {
	Send(recipients []string, subject, body string) error
	SendWithCalendar(recipients []string, subject, body, ics string) error
}

// NotificationProcessor handles invite, push and cancellation jobs.
type NotificationProcessor struct {
	meetings MeetingSource
	users    UserSource
	mailer   Sender
	wx       *wechat.Client
	logger   *zap.Logger
}

// NewNotificationProcessor creates a notification processor.
func NewNotificationProcessor(meetings MeetingSource, users UserSource, mailer Sender, wx *wechat.Client, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{meetings: meetings, users: users, mailer: mailer, wx: wx, logger: logger}
}

// Process executes one notification job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeInviteEmail:
		var payload queue.InviteEmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.sendInvite(ctx, payload)
	case queue.JobTypeSubscribePush:
		var payload queue.SubscribePushPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.sendSubscribePush(ctx, payload.MID)
	case queue.JobTypeCancelNotice:
		var payload queue.CancelNoticePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.sendCancelNotice(ctx, payload.MID)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *NotificationProcessor) sendInvite(ctx context.Context, payload queue.InviteEmailPayload) error {
	m, err := p.meetings.GetLiveByMID(ctx, payload.MID)
	if err != nil {
		// Cancelled before the job ran; nothing to invite to.
		p.logger.Warn("invite skipped, meeting gone", zap.String("mid", payload.MID))
		return nil
	}
	valid, rejected := notify.SanitizeRecipients(splitAddresses(m.EmailList))
	for _, r := range rejected {
		p.logger.Warn("invite recipient rejected", zap.String("mid", m.MID), zap.String("address", r))
	}
	if len(valid) == 0 {
		p.logger.Info("invite has no valid recipients", zap.String("mid", m.MID))
		return nil
	}
	ics, err := notify.BuildInvite(m, valid)
	if err != nil {
		return fmt.Errorf("build invite: %w", err)
	}
	if err := p.mailer.SendWithCalendar(valid, notify.InviteSubject(m), notify.InviteBody(m, payload.Record), ics); err != nil {
		return fmt.Errorf("send invite: %w", err)
	}
	p.logger.Info("invite sent", zap.String("mid", m.MID), zap.Int("recipients", len(valid)))
	return nil
}

func (p *NotificationProcessor) sendSubscribePush(ctx context.Context, mid string) error {
	m, err := p.meetings.GetLiveByMID(ctx, mid)
	if err != nil {
		p.logger.Warn("push skipped, meeting gone", zap.String("mid", mid))
		return nil
	}
	return p.pushToRecipients(ctx, m, false)
}

func (p *NotificationProcessor) sendCancelNotice(ctx context.Context, mid string) error {
	m, err := p.meetings.GetByMID(ctx, mid)
	if err != nil {
		return fmt.Errorf("load cancelled meeting: %w", err)
	}

	valid, rejected := notify.SanitizeRecipients(splitAddresses(m.EmailList))
	for _, r := range rejected {
		p.logger.Warn("cancel recipient rejected", zap.String("mid", m.MID), zap.String("address", r))
	}
	if len(valid) > 0 {
		if err := p.mailer.Send(valid, notify.CancelSubject(m), notify.CancelBody(m)); err != nil {
			p.logger.Error("cancel mail failed", zap.String("mid", m.MID), zap.Error(err))
		}
	}

	if err := p.pushToRecipients(ctx, m, true); err != nil {
		p.logger.Error("cancel push failed", zap.String("mid", m.MID), zap.Error(err))
	}
	// Favorites are dropped even when pushes failed.
	if err := p.meetings.DeleteCollectsByMeeting(ctx, m.ID); err != nil {
		return fmt.Errorf("clean favorites: %w", err)
	}
	return nil
}

// pushToRecipients fans a push out to the creator and every favoriter. The
// access token is fetched once per run; each recipient's failure is logged
// individually and does not stop the rest.
func (p *NotificationProcessor) pushToRecipients(ctx context.Context, m *models.Meeting, cancelled bool) error {
	openids := p.resolveOpenIDs(ctx, m)
	if len(openids) == 0 {
		return nil
	}
	token, err := p.wx.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("fetch push token: %w", err)
	}
	when := m.Date + " " + m.Start
	for _, openid := range openids {
		var msg wechat.SubscribeMessage
		if cancelled {
			msg = p.wx.CancelTemplate(openid, m.Topic, when, m.MID)
		} else {
			msg = p.wx.StartTemplate(openid, m.Topic, when)
		}
		if err := p.wx.SendSubscribe(ctx, token, msg); err != nil {
			p.logger.Warn("push delivery failed", zap.String("mid", m.MID), zap.String("openid", openid), zap.Error(err))
			continue
		}
		p.logger.Debug("push delivered", zap.String("mid", m.MID), zap.String("openid", openid))
	}
	return nil
}

// resolveOpenIDs returns the deduplicated openids of the meeting creator
// and everyone who favorited it.
func (p *NotificationProcessor) resolveOpenIDs(ctx context.Context, m *models.Meeting) []string {
	ids := []uuid.UUID{m.UserID}
	collectors, err := p.meetings.CollectorIDs(ctx, m.ID)
	if err != nil {
		p.logger.Warn("favoriter lookup failed", zap.String("mid", m.MID), zap.Error(err))
	} else {
		ids = append(ids, collectors...)
	}
	seen := make(map[string]struct{}, len(ids))
	var openids []string
	for _, id := range ids {
		u, err := p.users.GetByID(ctx, id)
		if err != nil {
			p.logger.Warn("push recipient lookup failed", zap.String("user_id", id.String()), zap.Error(err))
			continue
		}
		if u.OpenID == "" {
			continue
		}
		if _, ok := seen[u.OpenID]; ok {
			continue
		}
		seen[u.OpenID] = struct{}{}
		openids = append(openids, u.OpenID)
	}
	return openids
}

func splitAddresses(list string) []string {
	return strings.FieldsFunc(list, func(r rune) bool {
		return r == ';' || r == ','
	})
}
