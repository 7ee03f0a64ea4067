package notify

import (
	"fmt"
	"strings"

	"github.com/communitymeet/backend/internal/models"
)

// InviteSubject is the subject line for invite mail.
func InviteSubject(m *models.Meeting) string {
	return fmt.Sprintf("[%s] %s meeting invitation: %s", m.Community, m.GroupName, m.Topic)
}

// CancelSubject is the subject line for cancellation mail.
func CancelSubject(m *models.Meeting) string {
	return fmt.Sprintf("[%s] %s meeting cancelled: %s", m.Community, m.GroupName, m.Topic)
}

// InviteBody renders the invite mail body. Four variants cover the presence
// or absence of an agenda summary and a recording promise.
func InviteBody(m *models.Meeting, record bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\n")
	fmt.Fprintf(&b, "%s invites you to a %s meeting.\n\n", m.Sponsor, m.GroupName)
	fmt.Fprintf(&b, "Topic: %s\n", m.Topic)
	fmt.Fprintf(&b, "Time:  %s %s-%s\n", m.Date, m.Start, m.End)
	if m.JoinURL != "" {
		fmt.Fprintf(&b, "Join:  %s\n", m.JoinURL)
	}
	if m.Etherpad != "" {
		fmt.Fprintf(&b, "Notes: %s\n", m.Etherpad)
	}
	hasAgenda := strings.TrimSpace(m.Agenda) != ""
	switch {
	case hasAgenda && record:
		fmt.Fprintf(&b, "\nAgenda:\n%s\n", m.Agenda)
		b.WriteString("\nThis meeting will be recorded. The replay link will be shared after the meeting.\n")
	case hasAgenda:
		fmt.Fprintf(&b, "\nAgenda:\n%s\n", m.Agenda)
	case record:
		b.WriteString("\nThis meeting will be recorded. The replay link will be shared after the meeting.\n")
	default:
	}
	fmt.Fprintf(&b, "\n%s community\n", m.Community)
	return b.String()
}

// CancelBody renders the cancellation mail body.
func CancelBody(m *models.Meeting) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\n")
	fmt.Fprintf(&b, "The %s meeting %q scheduled for %s %s-%s has been cancelled.\n",
		m.GroupName, m.Topic, m.Date, m.Start, m.End)
	fmt.Fprintf(&b, "\n%s community\n", m.Community)
	return b.String()
}

// RecordingSubject is the subject line for recording-ready mail.
func RecordingSubject(m *models.Meeting) string {
	return fmt.Sprintf("[%s] recording ready: %s", m.Community, m.Topic)
}

// RecordingBody renders the recording-ready mail body sent to operations.
func RecordingBody(m *models.Meeting, downloadURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The recording of meeting %s (%s, %s %s-%s) has been archived.\n\n",
		m.MID, m.Topic, m.Date, m.Start, m.End)
	fmt.Fprintf(&b, "Download: %s\n", downloadURL)
	return b.String()
}
