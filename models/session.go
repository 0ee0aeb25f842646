package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultSessionTime is the midnight sentinel stored when no time was given
// for a session. Display layers treat it as "no time specified".
const DefaultSessionTime = "00:00:00"

// Session is one therapy session note under a client. Its effective owner is
// the psychologist owning the client; it is only reachable through a client
// the caller already resolved under the owner scope.
//
// Date and time are kept as ISO strings ("2006-01-02", "15:04:05") so the
// two-key descending order is a plain lexical sort, matching the store's
// date/time column ordering.
type Session struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	ClientID    string    `json:"client_id" gorm:"type:uuid;not null;index"`
	Platform    string    `json:"platform" gorm:"not null"`
	SessionDate string    `json:"session_date" gorm:"type:date;not null"`
	SessionTime string    `json:"session_time" gorm:"type:time;not null;default:'00:00:00'"`
	Summary     *string   `json:"summary,omitempty"`
	Conditions  *string   `json:"conditions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SessionTime == "" {
		s.SessionTime = DefaultSessionTime
	}
	return nil
}
