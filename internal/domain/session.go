package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const DefaultSessionTitle = "New Chat"

type ChatSession struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title     string         `gorm:"not null" json:"title"`
	Settings  datatypes.JSON `gorm:"column:settings;not null;default:'{}'" json:"settings"`
	IsActive  bool           `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (ChatSession) TableName() string { return "chat_session" }

// SessionSettings is the effective, defaults-applied view of the stored
// settings blob. SystemPrompt stays nil when the session has none so the
// wire representation round-trips as JSON null.
type SessionSettings struct {
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	SystemPrompt   *string `json:"system_prompt"`
	PromptTemplate string  `json:"prompt_template"`
}

func DefaultSettings() SessionSettings {
	return SessionSettings{
		Temperature:    0.7,
		MaxTokens:      512,
		SystemPrompt:   nil,
		PromptTemplate: "default",
	}
}

// EffectiveSettings overlays the stored blob onto the defaults. Unknown or
// wrongly-typed stored keys are ignored.
func (s *ChatSession) EffectiveSettings() SessionSettings {
	out := DefaultSettings()
	if len(s.Settings) == 0 {
		return out
	}
	var stored map[string]any
	if err := json.Unmarshal(s.Settings, &stored); err != nil {
		return out
	}
	if v, ok := stored["temperature"].(float64); ok {
		out.Temperature = v
	}
	if v, ok := stored["max_tokens"].(float64); ok {
		out.MaxTokens = int(v)
	}
	if v, ok := stored["system_prompt"].(string); ok {
		out.SystemPrompt = &v
	}
	if v, ok := stored["prompt_template"].(string); ok {
		out.PromptTemplate = v
	}
	return out
}

func (st SessionSettings) Map() map[string]any {
	var sys any
	if st.SystemPrompt != nil {
		sys = *st.SystemPrompt
	}
	return map[string]any{
		"temperature":     st.Temperature,
		"max_tokens":      st.MaxTokens,
		"system_prompt":   sys,
		"prompt_template": st.PromptTemplate,
	}
}

// FilterSettings keeps only the recognized keys whose values pass
// validation; everything else is dropped silently.
func FilterSettings(in map[string]any) map[string]any {
	out := map[string]any{}
	if v, ok := in["temperature"].(float64); ok && v >= 0 && v <= 2 {
		out["temperature"] = v
	}
	if v, ok := in["max_tokens"].(float64); ok {
		n := int(v)
		if n >= 1 && n <= 4096 {
			out["max_tokens"] = n
		}
	}
	if v, ok := in["system_prompt"].(string); ok {
		out["system_prompt"] = v
	}
	if v, ok := in["prompt_template"].(string); ok {
		out["prompt_template"] = v
	}
	return out
}

// MergeSettings shallow-merges updates over the stored blob and returns the
// new blob. Keys absent from updates survive untouched.
func MergeSettings(stored datatypes.JSON, updates map[string]any) (datatypes.JSON, error) {
	current := map[string]any{}
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, &current); err != nil {
			current = map[string]any{}
		}
	}
	for k, v := range updates {
		current[k] = v
	}
	raw, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
