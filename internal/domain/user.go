package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a username-only identity; no credentials are stored.
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string     `gorm:"uniqueIndex;not null;column:username" json:"username"`
	Email     string     `gorm:"column:email" json:"email,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	LastLogin *time.Time `gorm:"column:last_login" json:"last_login,omitempty"`
}

func (User) TableName() string { return "chat_user" }
