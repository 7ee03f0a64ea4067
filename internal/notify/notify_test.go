package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitymeet/backend/internal/models"
)

func sampleMeeting() *models.Meeting {
	return &models.Meeting{
		Topic:     "Kernel SIG weekly",
		Community: "openubmc",
		GroupName: "Kernel",
		Sponsor:   "alice",
		Date:      "2026-09-01",
		Start:     "10:00",
		End:       "11:00",
		Agenda:    "1. patches\n2. roadmap",
		MID:       "123456789",
		JoinURL:   "https://meeting.example.com/j/123456789",
		Platform:  "tencent",
	}
}

func TestSanitizeRecipients(t *testing.T) {
	valid, rejected := SanitizeRecipients([]string{
		"a@example.com",
		" b@example.org ",
		"not-an-address",
		"",
		"x@y",
		"c@example.net",
	})
	assert.Equal(t, []string{"a@example.com", "b@example.org", "c@example.net"}, valid)
	assert.Equal(t, []string{"not-an-address", "x@y"}, rejected)
}

func TestBuildInvite(t *testing.T) {
	m := sampleMeeting()
	ics, err := BuildInvite(m, []string{"b@example.com", "a@example.com", "b@example.com"})
	require.NoError(t, err)

	assert.Contains(t, ics, "METHOD:REQUEST")
	assert.Contains(t, ics, "UID:tencent123456789")
	assert.Contains(t, ics, "DTSTART:20260901T100000")
	assert.Contains(t, ics, "DTEND:20260901T110000")
	assert.Contains(t, ics, "TRIGGER:-PT15M")

	// Duplicate attendee collapsed, remaining sorted. Unfold before looking
	// for addresses since folding may split them mid-token.
	unfolded := strings.ReplaceAll(ics, "\r\n ", "")
	assert.Equal(t, 2, strings.Count(unfolded, "ATTENDEE;"))
	assert.Less(t, strings.Index(unfolded, "mailto:a@example.com"), strings.Index(unfolded, "mailto:b@example.com"))
}

func TestBuildInviteBadTime(t *testing.T) {
	m := sampleMeeting()
	m.Start = "25:99"
	_, err := BuildInvite(m, nil)
	require.Error(t, err)
}

func TestInviteBodyVariants(t *testing.T) {
	m := sampleMeeting()

	full := InviteBody(m, true)
	assert.Contains(t, full, "Agenda:")
	assert.Contains(t, full, "will be recorded")

	agendaOnly := InviteBody(m, false)
	assert.Contains(t, agendaOnly, "Agenda:")
	assert.NotContains(t, agendaOnly, "will be recorded")

	m.Agenda = ""
	recordOnly := InviteBody(m, true)
	assert.NotContains(t, recordOnly, "Agenda:")
	assert.Contains(t, recordOnly, "will be recorded")

	bare := InviteBody(m, false)
	assert.NotContains(t, bare, "Agenda:")
	assert.NotContains(t, bare, "will be recorded")
	assert.Contains(t, bare, m.Topic)
}

func TestFoldLine(t *testing.T) {
	long := "SUMMARY:" + strings.Repeat("x", 200)
	folded := foldLine(long)
	for _, line := range strings.Split(strings.TrimSuffix(folded, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	// Unfolding restores the original content.
	assert.Equal(t, long, strings.ReplaceAll(folded, "\r\n ", "")[:len(long)])
}
