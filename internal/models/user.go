package models

import (
	"fmt"
	"time"
)

type User struct {
	ID        int64     `json:"id" db:"id"`
	Nickname  string    `json:"nickname" db:"nickname"`
	Name      *string   `json:"name,omitempty" db:"name"`
	AvatarURL *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Validate checks basic user fields
func (u *User) Validate() error {
	if u.Nickname == "" {
		return fmt.Errorf("nickname is required")
	}
	if len(u.Nickname) < 2 || len(u.Nickname) > 50 {
		return fmt.Errorf("nickname length invalid")
	}
	return nil
}

// Participant is the other party of a conversation as exposed to the inbox.
type Participant struct {
	ID        int64   `json:"id"`
	Nickname  string  `json:"nickname"`
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	IsOnline  bool    `json:"is_online"`
}

type UserPresence struct {
	UserID   int64     `json:"user_id"`
	Status   string    `json:"status"` // online, offline
	LastSeen time.Time `json:"last_seen"`
}
