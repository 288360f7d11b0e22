package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SourceText   = "text"
	SourceUpload = "upload"
	SourceURL    = "url"
)

// RAGDocument carries its own embedding so similarity search needs no
// external index. The embedding is a JSON array of 384 floats;
// dimensionality is fixed store-wide.
type RAGDocument struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title      string         `gorm:"not null" json:"title"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	SourceType string         `gorm:"not null;default:'text'" json:"source_type"`
	SourcePath string         `gorm:"column:source_path" json:"source_path,omitempty"`
	Metadata   datatypes.JSON `gorm:"column:metadata;not null;default:'{}'" json:"metadata,omitempty"`
	Tags       datatypes.JSON `gorm:"column:tags;not null;default:'[]'" json:"tags,omitempty"`
	Embedding  datatypes.JSON `gorm:"column:embedding;not null" json:"-"`
	AddedByID  *uuid.UUID     `gorm:"type:uuid;column:added_by_id" json:"added_by_id,omitempty"`
	IsActive   bool           `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (RAGDocument) TableName() string { return "rag_document" }
