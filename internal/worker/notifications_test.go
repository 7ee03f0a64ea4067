package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/pkg/queue"
)

type fakeMeetingSource struct {
	live       *models.Meeting
	any        *models.Meeting
	collectors []uuid.UUID
	cleaned    []uuid.UUID
}

func (f *fakeMeetingSource) GetLiveByMID(ctx context.Context, mid string) (*models.Meeting, error) {
	if f.live == nil {
		return nil, errors.New("no rows")
	}
	return f.live, nil
}

func (f *fakeMeetingSource) GetByMID(ctx context.Context, mid string) (*models.Meeting, error) {
	if f.any == nil {
		return nil, errors.New("no rows")
	}
	return f.any, nil
}

func (f *fakeMeetingSource) CollectorIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error) {
	return f.collectors, nil
}

func (f *fakeMeetingSource) DeleteCollectsByMeeting(ctx context.Context, meetingID uuid.UUID) error {
	f.cleaned = append(f.cleaned, meetingID)
	return nil
}

type fakeUserSource struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeUserSource) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return u, nil
}

type fakeMailer struct {
	sent     [][]string
	calendar []string
	err      error
}

func (f *fakeMailer) Send(recipients []string, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, recipients)
	return nil
}

func (f *fakeMailer) SendWithCalendar(recipients []string, subject, body, ics string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, recipients)
	f.calendar = append(f.calendar, ics)
	return nil
}

func inviteJob(t *testing.T, mid string, record bool) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(queue.InviteEmailPayload{MID: mid, Record: record})
	require.NoError(t, err)
	return &queue.Job{ID: "j1", Type: queue.JobTypeInviteEmail, Payload: raw}
}

func testMeeting() *models.Meeting {
	return &models.Meeting{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Topic:     "Infra weekly",
		Community: "openubmc",
		GroupName: "Infra",
		Sponsor:   "bob",
		Date:      "2026-09-02",
		Start:     "14:00",
		End:       "15:00",
		MID:       "555000111",
		Platform:  "tencent",
		EmailList: "a@example.com;broken-address;a@example.com,b@example.com",
	}
}

func TestInviteSanitizesAndSends(t *testing.T) {
	src := &fakeMeetingSource{live: testMeeting()}
	mailer := &fakeMailer{}
	p := NewNotificationProcessor(src, &fakeUserSource{}, mailer, nil, nil)

	err := p.Process(context.Background(), inviteJob(t, "555000111", true))
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"a@example.com", "a@example.com", "b@example.com"}, mailer.sent[0])
	require.Len(t, mailer.calendar, 1)
	assert.Contains(t, mailer.calendar[0], "UID:tencent555000111")
}

func TestInviteSkipsWhenMeetingGone(t *testing.T) {
	mailer := &fakeMailer{}
	p := NewNotificationProcessor(&fakeMeetingSource{}, &fakeUserSource{}, mailer, nil, nil)

	err := p.Process(context.Background(), inviteJob(t, "gone", false))
	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestCancelNoticeCleansFavoritesDespitePushFailure(t *testing.T) {
	m := testMeeting()
	src := &fakeMeetingSource{any: m, collectors: []uuid.UUID{uuid.New(), uuid.New()}}
	mailer := &fakeMailer{}
	// No users resolve, so every push recipient lookup fails.
	p := NewNotificationProcessor(src, &fakeUserSource{}, mailer, nil, nil)

	raw, err := json.Marshal(queue.CancelNoticePayload{MID: m.MID})
	require.NoError(t, err)
	err = p.Process(context.Background(), &queue.Job{ID: "j2", Type: queue.JobTypeCancelNotice, Payload: raw})
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []uuid.UUID{m.ID}, src.cleaned)
}

func TestUnknownJobType(t *testing.T) {
	p := NewNotificationProcessor(&fakeMeetingSource{}, &fakeUserSource{}, &fakeMailer{}, nil, nil)
	err := p.Process(context.Background(), &queue.Job{ID: "j3", Type: "bogus"})
	require.Error(t, err)
}
