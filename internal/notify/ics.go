// Package notify builds and sends meeting notifications: calendar invite
// emails, cancellation mail and recording-ready mail.
package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/communitymeet/backend/internal/models"
)

const icsTimestampLayout = "20060102T150405"

// BuildInvite renders an iCalendar REQUEST for the meeting. The UID combines
// platform and provider meeting code so resends update the same event in the
// recipient's calendar. Attendees are deduplicated and sorted for stable
// output.
func BuildInvite(m *models.Meeting, attendees []string) (string, error) {
	start, err := time.Parse("2006-01-02 15:04", m.Date+" "+m.Start)
	if err != nil {
		return "", fmt.Errorf("parse meeting start: %w", err)
	}
	end, err := time.Parse("2006-01-02 15:04", m.Date+" "+m.End)
	if err != nil {
		return "", fmt.Errorf("parse meeting end: %w", err)
	}

	seen := make(map[string]struct{}, len(attendees))
	unique := make([]string, 0, len(attendees))
	for _, a := range attendees {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		unique = append(unique, a)
	}
	sort.Strings(unique)

	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//communitymeet//meeting-service//EN\r\n")
	b.WriteString("METHOD:REQUEST\r\n")
	b.WriteString("BEGIN:VEVENT\r\n")
	b.WriteString(fmt.Sprintf("UID:%s%s\r\n", m.Platform, m.MID))
	b.WriteString(fmt.Sprintf("DTSTAMP:%sZ\r\n", time.Now().UTC().Format(icsTimestampLayout)))
	b.WriteString(fmt.Sprintf("DTSTART:%s\r\n", start.Format(icsTimestampLayout)))
	b.WriteString(fmt.Sprintf("DTEND:%s\r\n", end.Format(icsTimestampLayout)))
	b.WriteString(foldLine("SUMMARY:" + escapeText(m.Topic)))
	if m.JoinURL != "" {
		b.WriteString(foldLine("LOCATION:" + escapeText(m.JoinURL)))
		b.WriteString(foldLine("DESCRIPTION:" + escapeText("Join link: "+m.JoinURL)))
	}
	for _, a := range unique {
		b.WriteString(foldLine(fmt.Sprintf("ATTENDEE;CUTYPE=INDIVIDUAL;ROLE=REQ-PARTICIPANT;RSVP=TRUE:mailto:%s", a)))
	}
	b.WriteString("BEGIN:VALARM\r\n")
	b.WriteString("TRIGGER:-PT15M\r\n")
	b.WriteString("ACTION:DISPLAY\r\n")
	b.WriteString(foldLine("DESCRIPTION:" + escapeText(m.Topic)))
	b.WriteString("END:VALARM\r\n")
	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")
	return b.String(), nil
}

// escapeText escapes the characters RFC 5545 reserves in text values.
func escapeText(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
	)
	return r.Replace(s)
}

// foldLine wraps a content line at 75 octets with a continuation space and
// terminates it with CRLF.
func foldLine(line string) string {
	const max = 75
	if len(line) <= max {
		return line + "\r\n"
	}
	var b strings.Builder
	for len(line) > max {
		b.WriteString(line[:max])
		b.WriteString("\r\n ")
		line = line[max:]
	}
	b.WriteString(line)
	b.WriteString("\r\n")
	return b.String()
}
