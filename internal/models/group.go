package models

import (
	"time"

	"github.com/google/uuid"
)

// Group types. MSG meetings additionally require a city.
const (
	GroupTypeSIG = 1
	GroupTypeMSG = 2
	GroupTypePro = 3
)

// Group is a community group (SIG, MSG or expert committee).
type Group struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	GroupType int       `json:"group_type"`
	Etherpad  string    `json:"etherpad,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// City is a named city hosting MSG meetings.
type City struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Etherpad  string    `json:"etherpad,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
