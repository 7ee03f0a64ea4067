package models

import (
	"time"

	"github.com/google/uuid"
)

// Meeting types mirror group types; MSG meetings carry a city.
const (
	MeetingTypeSIG  = 1
	MeetingTypeMSG  = 2
	MeetingTypeTech = 3
)

// Supported conferencing platforms.
const (
	PlatformTencent = "tencent"
	PlatformWeLink  = "welink"
)

// Meeting is one scheduled conference session. Date, Start and End are
// platform-local wall-clock strings ("2006-01-02" and "15:04"); overlap
// queries compare them lexically. A meeting is immutable after creation
// except for IsDelete and ReplayURL.
type Meeting struct {
	ID          uuid.UUID `json:"id"`
	Topic       string    `json:"topic"`
	Community   string    `json:"community"`
	GroupID     uuid.UUID `json:"group_id"`
	GroupName   string    `json:"group_name"`
	GroupType   int       `json:"group_type"`
	City        string    `json:"city,omitempty"`
	Sponsor     string    `json:"sponsor"`
	Date        string    `json:"date"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	Duration    int       `json:"duration,omitempty"`
	Agenda      string    `json:"agenda,omitempty"`
	Etherpad    string    `json:"etherpad,omitempty"`
	EmailList   string    `json:"emaillist,omitempty"`
	HostID      string    `json:"-"`
	MID         string    `json:"mid"`
	MMID        string    `json:"mmid,omitempty"`
	JoinURL     string    `json:"join_url,omitempty"`
	Platform    string    `json:"platform"`
	MeetingType int       `json:"meeting_type"`
	IsDelete    int       `json:"-"`
	UserID      uuid.UUID `json:"user_id"`
	ReplayURL   string    `json:"replay_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Collect marks a meeting as a favorite of a user.
type Collect struct {
	ID        uuid.UUID `json:"id"`
	MeetingID uuid.UUID `json:"meeting_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// Record is the dedup ledger for uploaded meeting recordings, keyed by
// (meeting_code, file_size).
type Record struct {
	ID          uuid.UUID `json:"id"`
	MeetingCode string    `json:"meeting_code"`
	FileSize    int64     `json:"file_size"`
	DownloadURL string    `json:"download_url"`
}
