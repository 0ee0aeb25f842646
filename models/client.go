package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client is one patient folder owned by a psychologist. Every query that
// touches a client row carries the owner predicate; rows are never reachable
// across psychologists.
type Client struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	PsychologistID string    `json:"psychologist_id" gorm:"type:uuid;not null;index"`
	Name           string    `json:"name" gorm:"not null"`
	Email          *string   `json:"email,omitempty"`
	Age            *int      `json:"age,omitempty"`
	Gender         *string   `json:"gender,omitempty"`
	Place          *string   `json:"place,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
