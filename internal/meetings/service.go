package meetings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/errs"
	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/internal/provider"
	"github.com/communitymeet/backend/pkg/clock"
)

// Store is the meeting persistence surface the lifecycle service needs.
// Implemented by Repository.
type Store interface {
	Create(ctx context.Context, m *models.Meeting) error
	GetLiveByMID(ctx context.Context, mid string) (*models.Meeting, error)
	SoftDeleteByMID(ctx context.Context, mid string) (bool, error)
}

// GroupFinder resolves a group by name.
type GroupFinder interface {
	GetByName(ctx context.Context, name string) (*models.Group, error)
}

// HostAllocator picks a free host for a window. Implemented by Allocator.
type HostAllocator interface {
	Allocate(ctx context.Context, platform, date, start, end string) (string, error)
}

// Gateways resolves a platform tag to its provider gateway. Implemented by
// provider.Registry.
type Gateways interface {
	Get(platform string) (provider.Gateway, error)
}

// Dispatcher hands notification work to the background queue. Enqueue
// failures are logged by the service and never surfaced to the caller.
type Dispatcher interface {
	EnqueueInviteEmail(ctx context.Context, mid string, record bool) error
	EnqueueSubscribePush(ctx context.Context, mid string) error
	EnqueueCancelNotice(ctx context.Context, mid string) error
}

// Service drives the meeting state machine: none -> scheduled -> cancelled.
// It is the only writer of meeting rows.
type Service struct {
	store     Store
	groups    GroupFinder
	allocator HostAllocator
	gateways  Gateways
	dispatch  Dispatcher
	clk       clock.Clock
	community string
	logger    *zap.Logger
}

// NewService creates the meeting lifecycle service.
func NewService(store Store, groups GroupFinder, allocator HostAllocator, gateways Gateways,
	dispatch Dispatcher, clk clock.Clock, community string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		store:     store,
		groups:    groups,
		allocator: allocator,
		gateways:  gateways,
		dispatch:  dispatch,
		clk:       clk,
		community: community,
		logger:    logger,
	}
}

// CreateParams is the validated input for booking a meeting.
type CreateParams struct {
	Platform    string
	Topic       string
	Sponsor     string
	MeetingType int
	Date        string
	Start       string
	End         string
	GroupName   string
	City        string
	Etherpad    string
	EmailList   string
	Agenda      string
	Record      bool
}

// Create books a meeting: validate, allocate a host, create with the
// provider, persist, then hand notifications to the queue. Nothing is
// persisted unless the provider call succeeded.
func (s *Service) Create(ctx context.Context, caller *models.User, p CreateParams) (*models.Meeting, error) {
	platform := strings.ToLower(p.Platform)
	if platform == "" {
		platform = models.PlatformTencent
	}
	if p.Topic == "" || p.Sponsor == "" || p.Date == "" || p.Start == "" || p.End == "" {
		return nil, fmt.Errorf("%w: topic, sponsor, date, start and end are required", errs.ErrValidation)
	}
	if p.MeetingType < models.MeetingTypeSIG || p.MeetingType > models.MeetingTypeTech {
		return nil, fmt.Errorf("%w: meeting_type must be 1-3", errs.ErrValidation)
	}
	if p.MeetingType == models.MeetingTypeMSG && p.City == "" {
		return nil, fmt.Errorf("%w: city is required for MSG meetings", errs.ErrValidation)
	}
	group, err := s.groups.GetByName(ctx, p.GroupName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: unknown group_name %q", errs.ErrValidation, p.GroupName)
		}
		return nil, fmt.Errorf("resolve group: %w", err)
	}
	if _, err := time.Parse("2006-01-02", p.Date); err != nil {
		return nil, fmt.Errorf("%w: date must be formatted 2006-01-02", errs.ErrValidation)
	}
	if p.Start >= p.End {
		return nil, fmt.Errorf("%w: end must be later than start", errs.ErrValidation)
	}
	now := s.clk.Now().Format("2006-01-02 15:04")
	if p.Date+" "+p.Start < now {
		return nil, fmt.Errorf("%w: start time must not be earlier than now", errs.ErrValidation)
	}

	hostID, err := s.allocator.Allocate(ctx, platform, p.Date, p.Start, p.End)
	if err != nil {
		return nil, err
	}

	gw, err := s.gateways.Get(platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	result, err := gw.Create(ctx, provider.CreateRequest{
		Date:   p.Date,
		Start:  p.Start,
		End:    p.End,
		Topic:  p.Topic,
		HostID: hostID,
		Record: p.Record,
	})
	if err != nil {
		s.logger.Error("provider create failed",
			zap.String("platform", platform),
			zap.String("host_id", hostID),
			zap.Error(err))
		return nil, err
	}

	m := &models.Meeting{
		Topic:       p.Topic,
		Community:   s.community,
		GroupID:     group.ID,
		GroupName:   group.Name,
		GroupType:   p.MeetingType,
		City:        p.City,
		Sponsor:     p.Sponsor,
		Date:        p.Date,
		Start:       p.Start,
		End:         p.End,
		Duration:    durationMinutes(p.Start, p.End),
		Agenda:      p.Agenda,
		Etherpad:    p.Etherpad,
		EmailList:   p.EmailList,
		HostID:      hostID,
		MID:         result.MeetingCode,
		MMID:        result.MeetingID,
		JoinURL:     result.JoinURL,
		Platform:    platform,
		MeetingType: p.MeetingType,
		UserID:      caller.ID,
	}
	if err := s.store.Create(ctx, m); err != nil {
		s.logger.Error("persist meeting failed",
			zap.String("mid", result.MeetingCode),
			zap.Error(err))
		return nil, fmt.Errorf("persist meeting: %w", err)
	}
	s.logger.Info("meeting created",
		zap.String("sponsor", p.Sponsor),
		zap.String("platform", platform),
		zap.String("mid", m.MID),
		zap.String("window", p.Date+" "+p.Start+"-"+p.End))

	if err := s.dispatch.EnqueueInviteEmail(ctx, m.MID, p.Record); err != nil {
		s.logger.Error("enqueue invite email failed", zap.String("mid", m.MID), zap.Error(err))
	}
	if err := s.dispatch.EnqueueSubscribePush(ctx, m.MID); err != nil {
		s.logger.Error("enqueue subscribe push failed", zap.String("mid", m.MID), zap.Error(err))
	}
	return m, nil
}

// Cancel cancels a live meeting with the provider, then soft-deletes it and
// queues cancellation notices. The soft-delete happens only after the
// provider confirmed.
func (s *Service) Cancel(ctx context.Context, caller *models.User, mid string) error {
	m, err := s.store.GetLiveByMID(ctx, mid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: meeting %s", errs.ErrNotFound, mid)
		}
		return fmt.Errorf("load meeting: %w", err)
	}
	if m.UserID != caller.ID && caller.Level != models.LevelAdmin {
		return fmt.Errorf("%w: only the booker or an administrator may cancel", errs.ErrPermission)
	}
	gw, err := s.gateways.Get(m.Platform)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrProvider, err)
	}
	if err := gw.Cancel(ctx, mid, m.HostID); err != nil {
		s.logger.Error("provider cancel failed", zap.String("mid", mid), zap.Error(err))
		return err
	}
	deleted, err := s.store.SoftDeleteByMID(ctx, mid)
	if err != nil {
		return fmt.Errorf("soft delete meeting: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: meeting %s already cancelled", errs.ErrNotFound, mid)
	}
	s.logger.Info("meeting cancelled", zap.String("mid", mid), zap.String("by", caller.Nickname))
	if err := s.dispatch.EnqueueCancelNotice(ctx, mid); err != nil {
		s.logger.Error("enqueue cancel notice failed", zap.String("mid", mid), zap.Error(err))
	}
	return nil
}

// Participants lists attendees of a live meeting, passing the gateway result
// through unchanged.
func (s *Service) Participants(ctx context.Context, mid string) ([]provider.Participant, error) {
	m, err := s.store.GetLiveByMID(ctx, mid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: meeting %s", errs.ErrNotFound, mid)
		}
		return nil, fmt.Errorf("load meeting: %w", err)
	}
	gw, err := s.gateways.Get(m.Platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrProvider, err)
	}
	return gw.Participants(ctx, mid)
}

func durationMinutes(start, end string) int {
	s, err1 := time.Parse("15:04", start)
	e, err2 := time.Parse("15:04", end)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(e.Sub(s).Minutes())
}
