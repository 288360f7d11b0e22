package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PromptTemplate is a named system prompt with optional few-shot examples.
// A session's prompt_template setting references one by name.
type PromptTemplate struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string         `gorm:"uniqueIndex;not null" json:"name"`
	Description  string         `gorm:"type:text" json:"description,omitempty"`
	SystemPrompt string         `gorm:"type:text;not null" json:"system_prompt"`
	Examples     datatypes.JSON `gorm:"column:examples;not null;default:'[]'" json:"examples,omitempty"`
	CreatedByID  *uuid.UUID     `gorm:"type:uuid;column:created_by_id" json:"created_by_id,omitempty"`
	IsActive     bool           `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (PromptTemplate) TableName() string { return "prompt_template" }
