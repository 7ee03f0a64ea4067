package models

import (
	"time"

	"github.com/google/uuid"
)

// Permission levels shared by the meeting and activity role tracks.
const (
	LevelUser       = 1 // regular user
	LevelMaintainer = 2 // may schedule meetings / publish activities
	LevelAdmin      = 3 // full access
)

// User represents a platform user authenticated via WeChat.
type User struct {
	ID            uuid.UUID `json:"id"`
	OpenID        string    `json:"-"`
	UnionID       string    `json:"-"`
	Nickname      string    `json:"nickname"`
	GiteeName     string    `json:"gitee_name,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	Email         string    `json:"email,omitempty"`
	Telephone     string    `json:"telephone,omitempty"`
	Company       string    `json:"company,omitempty"`
	Level         int       `json:"level"`
	ActivityLevel int       `json:"activity_level"`
	Signature     string    `json:"signature,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastLogin     time.Time `json:"last_login"`
}
