package meetings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitymeet/backend/internal/errs"
	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/internal/provider"
	"github.com/communitymeet/backend/pkg/clock"
)

type memStore struct {
	created   []*models.Meeting
	live      map[string]*models.Meeting
	deleted   []string
	createErr error
}

func newMemStore() *memStore {
	return &memStore{live: make(map[string]*models.Meeting)}
}

func (s *memStore) Create(ctx context.Context, m *models.Meeting) error {
	if s.createErr != nil {
		return s.createErr
	}
	m.ID = uuid.New()
	s.created = append(s.created, m)
	s.live[m.MID] = m
	return nil
}

func (s *memStore) GetLiveByMID(ctx context.Context, mid string) (*models.Meeting, error) {
	m, ok := s.live[mid]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return m, nil
}

func (s *memStore) SoftDeleteByMID(ctx context.Context, mid string) (bool, error) {
	if _, ok := s.live[mid]; !ok {
		return false, nil
	}
	delete(s.live, mid)
	s.deleted = append(s.deleted, mid)
	return true, nil
}

type fakeGroups struct{ group *models.Group }

func (f *fakeGroups) GetByName(ctx context.Context, name string) (*models.Group, error) {
	if f.group == nil || f.group.Name != name {
		return nil, pgx.ErrNoRows
	}
	return f.group, nil
}

type fakeAllocator struct {
	host  string
	err   error
	calls int
}

func (f *fakeAllocator) Allocate(ctx context.Context, platform, date, start, end string) (string, error) {
	f.calls++
	return f.host, f.err
}

type stubGateway struct {
	createResult *provider.CreateResult
	createErr    error
	cancelErr    error
	createCalls  int
	cancelCalls  int
	cancelHostID string
}

func (g *stubGateway) Create(ctx context.Context, req provider.CreateRequest) (*provider.CreateResult, error) {
	g.createCalls++
	return g.createResult, g.createErr
}

func (g *stubGateway) Cancel(ctx context.Context, mid, hostID string) error {
	g.cancelCalls++
	g.cancelHostID = hostID
	return g.cancelErr
}

func (g *stubGateway) Participants(ctx context.Context, mid string) ([]provider.Participant, error) {
	return nil, nil
}

func (g *stubGateway) RecordDownloadURL(ctx context.Context, recordFileID, userID string) (string, error) {
	return "", nil
}

type stubGateways struct{ gw *stubGateway }

func (s *stubGateways) Get(platform string) (provider.Gateway, error) {
	if s.gw == nil {
		return nil, errors.New("unknown platform")
	}
	return s.gw, nil
}

type recordingDispatcher struct {
	invites int
	pushes  int
	cancels int
}

func (d *recordingDispatcher) EnqueueInviteEmail(ctx context.Context, mid string, record bool) error {
	d.invites++
	return nil
}

func (d *recordingDispatcher) EnqueueSubscribePush(ctx context.Context, mid string) error {
	d.pushes++
	return nil
}

func (d *recordingDispatcher) EnqueueCancelNotice(ctx context.Context, mid string) error {
	d.cancels++
	return nil
}

type fixture struct {
	store    *memStore
	groups   *fakeGroups
	alloc    *fakeAllocator
	gw       *stubGateway
	dispatch *recordingDispatcher
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		store:  newMemStore(),
		groups: &fakeGroups{group: &models.Group{ID: uuid.New(), Name: "Kernel", GroupType: models.GroupTypeSIG}},
		alloc:  &fakeAllocator{host: "h1"},
		gw: &stubGateway{createResult: &provider.CreateResult{
			MeetingID:   "9001",
			MeetingCode: "123456789",
			JoinURL:     "https://meeting.example.com/j/123456789",
		}},
		dispatch: &recordingDispatcher{},
	}
	clk := clock.Fixed{T: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}
	f.svc = NewService(f.store, f.groups, f.alloc, &stubGateways{gw: f.gw}, f.dispatch, clk, "openubmc", nil)
	return f
}

func maintainer() *models.User {
	return &models.User{ID: uuid.New(), Nickname: "alice", Level: models.LevelMaintainer}
}

func validParams() CreateParams {
	return CreateParams{
		Topic:       "Kernel weekly",
		Sponsor:     "alice",
		MeetingType: models.MeetingTypeSIG,
		Date:        "2026-09-01",
		Start:       "10:00",
		End:         "11:00",
		GroupName:   "Kernel",
		EmailList:   "dev@example.com",
	}
}

func TestCreatePersistsAfterProviderSuccess(t *testing.T) {
	f := newFixture()
	caller := maintainer()

	m, err := f.svc.Create(context.Background(), caller, validParams())
	require.NoError(t, err)

	assert.Equal(t, "123456789", m.MID)
	assert.Equal(t, "9001", m.MMID)
	assert.Equal(t, "h1", m.HostID)
	assert.Equal(t, "openubmc", m.Community)
	assert.Equal(t, 60, m.Duration)
	assert.Equal(t, caller.ID, m.UserID)
	require.Len(t, f.store.created, 1)
	assert.Equal(t, 1, f.dispatch.invites)
	assert.Equal(t, 1, f.dispatch.pushes)
}

func TestCreateValidationSkipsProvider(t *testing.T) {
	f := newFixture()
	caller := maintainer()

	cases := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"missing topic", func(p *CreateParams) { p.Topic = "" }},
		{"bad meeting type", func(p *CreateParams) { p.MeetingType = 9 }},
		{"msg without city", func(p *CreateParams) { p.MeetingType = models.MeetingTypeMSG }},
		{"unknown group", func(p *CreateParams) { p.GroupName = "ghost" }},
		{"end before start", func(p *CreateParams) { p.Start = "11:00"; p.End = "10:00" }},
		{"unpadded date", func(p *CreateParams) { p.Date = "2026-9-1" }},
		{"start in the past", func(p *CreateParams) { p.Date = "2026-08-31" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validParams()
			tc.mutate(&p)
			_, err := f.svc.Create(context.Background(), caller, p)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
	assert.Zero(t, f.gw.createCalls)
	assert.Empty(t, f.store.created)
	assert.Zero(t, f.dispatch.invites)
}

func TestCreateExhaustionIsConflictWithoutProviderCall(t *testing.T) {
	f := newFixture()
	f.alloc.err = errs.ErrConflict

	_, err := f.svc.Create(context.Background(), maintainer(), validParams())
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.Zero(t, f.gw.createCalls)
	assert.Empty(t, f.store.created)
}

func TestCreateProviderFailureLeavesNoState(t *testing.T) {
	f := newFixture()
	f.gw.createErr = errs.ErrProvider

	_, err := f.svc.Create(context.Background(), maintainer(), validParams())
	require.Error(t, err)
	assert.Empty(t, f.store.created)
	assert.Zero(t, f.dispatch.invites)
	assert.Zero(t, f.dispatch.pushes)
}

func TestCancelByOwner(t *testing.T) {
	f := newFixture()
	caller := maintainer()
	m, err := f.svc.Create(context.Background(), caller, validParams())
	require.NoError(t, err)

	err = f.svc.Cancel(context.Background(), caller, m.MID)
	require.NoError(t, err)
	assert.Equal(t, []string{m.MID}, f.store.deleted)
	assert.Equal(t, "h1", f.gw.cancelHostID)
	assert.Equal(t, 1, f.dispatch.cancels)
}

func TestCancelByAdmin(t *testing.T) {
	f := newFixture()
	m, err := f.svc.Create(context.Background(), maintainer(), validParams())
	require.NoError(t, err)

	admin := &models.User{ID: uuid.New(), Level: models.LevelAdmin}
	require.NoError(t, f.svc.Cancel(context.Background(), admin, m.MID))
}

func TestCancelByStrangerForbidden(t *testing.T) {
	f := newFixture()
	m, err := f.svc.Create(context.Background(), maintainer(), validParams())
	require.NoError(t, err)

	stranger := maintainer()
	err = f.svc.Cancel(context.Background(), stranger, m.MID)
	assert.ErrorIs(t, err, errs.ErrPermission)
	assert.Empty(t, f.store.deleted)
	assert.Zero(t, f.dispatch.cancels)
}

func TestCancelGatewayFailureKeepsMeeting(t *testing.T) {
	f := newFixture()
	caller := maintainer()
	m, err := f.svc.Create(context.Background(), caller, validParams())
	require.NoError(t, err)

	f.gw.cancelErr = errs.ErrProvider
	err = f.svc.Cancel(context.Background(), caller, m.MID)
	require.Error(t, err)
	assert.Empty(t, f.store.deleted)
	assert.Zero(t, f.dispatch.cancels)
}

func TestCancelUnknownMeeting(t *testing.T) {
	f := newFixture()
	err := f.svc.Cancel(context.Background(), maintainer(), "nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestParticipantsRequireLiveMeeting(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Participants(context.Background(), "nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
