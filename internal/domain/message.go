package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one exchange within a session. Rows are append-only; nothing
// updates a message after creation.
type Message struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"session_id"`
	Role       string         `gorm:"not null" json:"role"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	Metadata   datatypes.JSON `gorm:"column:metadata;not null;default:'{}'" json:"metadata,omitempty"`
	RAGContext *string        `gorm:"column:rag_context;type:text" json:"rag_context"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Message) TableName() string { return "chat_message" }
