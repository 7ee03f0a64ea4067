package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity lifecycle states. 1<->2 are user/admin driven, 2->3 is admin
// approval, 3->4 and 4->5 are advanced by the status scheduler.
const (
	ActivityStatusDraft       = 1
	ActivityStatusPending     = 2
	ActivityStatusRegistering = 3
	ActivityStatusGoing       = 4
	ActivityStatusCompleted   = 5
)

// Activity categories.
const (
	ActivityCategoryCourse  = 1
	ActivityCategoryMSG     = 2
	ActivityCategoryContest = 3
	ActivityCategoryOther   = 4
)

// Activity types (offline / online / mixed).
const (
	ActivityTypeOffline = 1
	ActivityTypeOnline  = 2
	ActivityTypeMixed   = 3
)

// Registration methods.
const (
	RegisterMethodInApp = 1
	RegisterMethodLink  = 2
)

// Activity is a community event with a five-state lifecycle.
type Activity struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Title          string          `json:"title"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	Category       int             `json:"activity_category"`
	ActivityType   int             `json:"activity_type"`
	Address        string          `json:"address,omitempty"`
	DetailAddress  string          `json:"detail_address,omitempty"`
	Longitude      string          `json:"longitude,omitempty"`
	Latitude       string          `json:"latitude,omitempty"`
	RegisterMethod int             `json:"register_method"`
	OnlineURL      string          `json:"online_url,omitempty"`
	RegisterURL    string          `json:"register_url,omitempty"`
	Synopsis       string          `json:"synopsis,omitempty"`
	Schedules      json.RawMessage `json:"schedules,omitempty"`
	Poster         int             `json:"poster"`
	Status         int             `json:"status"`
	WxCode         string          `json:"wx_code,omitempty"`
	SignURL        string          `json:"sign_url,omitempty"`
	ReplayURL      string          `json:"replay_url,omitempty"`
	IsDelete       int             `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ActivityCollect marks an activity as a favorite of a user.
type ActivityCollect struct {
	ID         uuid.UUID `json:"id"`
	ActivityID uuid.UUID `json:"activity_id"`
	UserID     uuid.UUID `json:"user_id"`
}

// ActivityRegister records a user's registration for an activity.
type ActivityRegister struct {
	ID         uuid.UUID `json:"id"`
	ActivityID uuid.UUID `json:"activity_id"`
	UserID     uuid.UUID `json:"user_id"`
}

// ActivitySign records a user's attendance check-in.
type ActivitySign struct {
	ID         uuid.UUID `json:"id"`
	ActivityID uuid.UUID `json:"activity_id"`
	UserID     uuid.UUID `json:"user_id"`
}

// Feedback is a user-submitted issue report or product suggestion.
type Feedback struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Type      int       `json:"feedback_type"` // 1 issue, 2 suggestion
	Email     string    `json:"feedback_email"`
	Content   string    `json:"feedback_content"`
	CreatedAt time.Time `json:"created_at"`
}
