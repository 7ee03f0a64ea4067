// Package provider abstracts third-party conferencing platforms behind a
// single gateway interface. Implementations perform synchronous HTTP calls
// with a bounded timeout and never retry; retry policy belongs to callers.
package provider

import "context"

// CreateRequest carries the fields every platform needs to book a meeting.
type CreateRequest struct {
	Date   string // 2006-01-02
	Start  string // 15:04
	End    string // 15:04
	Topic  string
	HostID string
	Record bool // request cloud recording
}

// CreateResult is the provider-side identity of a booked meeting.
type CreateResult struct {
	MeetingCode string // user-facing meeting code (mid)
	MeetingID   string // provider numeric id (mmid)
	JoinURL     string
}

// Participant is one attendee of a past or live meeting.
type Participant struct {
	Name     string `json:"name"`
	JoinTime string `json:"join_time,omitempty"`
	LeftTime string `json:"left_time,omitempty"`
}

// Gateway is the per-platform conferencing API surface. hostID on Cancel is
// required by platforms that authorize cancellation as the hosting account
// and ignored by the rest.
type Gateway interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
	Cancel(ctx context.Context, mid, hostID string) error
	Participants(ctx context.Context, mid string) ([]Participant, error)
	RecordDownloadURL(ctx context.Context, recordFileID, userID string) (string, error)
}
