package ws

import (
	"encoding/json"

	"github.com/localmind-ai/localmind-backend/internal/domain"
)

// Frame types the client sends.
const (
	InboundMessage        = "message"
	InboundUpdateSettings = "update_settings"
	InboundUpdateTitle    = "update_title"
)

// Frame types the server sends.
const (
	OutboundSessionInfo     = "session_info"
	OutboundHistory         = "history"
	OutboundMessage         = "message"
	OutboundStreamStart     = "stream_start"
	OutboundStreamToken     = "stream_token"
	OutboundStreamEnd       = "stream_end"
	OutboundStreamError     = "stream_error"
	OutboundSettingsUpdated = "settings_updated"
	OutboundTitleUpdated    = "title_updated"
	OutboundError           = "error"
)

// InboundFrame is the superset envelope for every client directive; Type
// selects which of the remaining fields are meaningful.
type InboundFrame struct {
	Type     string          `json:"type"`
	Content  string          `json:"content,omitempty"`
	UseRAG   bool            `json:"use_rag,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
	Title    string          `json:"title,omitempty"`
}

// sessionDescriptor nests under session_info so the client gets the id,
// title and effective settings in one object.
type sessionDescriptor struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Settings map[string]any `json:"settings"`
}

type sessionInfoFrame struct {
	Type    string            `json:"type"`
	Session sessionDescriptor `json:"session"`
}

type historyFrame struct {
	Type     string            `json:"type"`
	Messages []*domain.Message `json:"messages"`
}

type messageFrame struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

// streamStartFrame announces the reply that is about to stream; only the
// role is known at this point.
type streamStartFrame struct {
	Type    string   `json:"type"`
	Message roleStub `json:"message"`
}

type roleStub struct {
	Role string `json:"role"`
}

type streamTokenFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type streamEndFrame struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

type streamErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type settingsUpdatedFrame struct {
	Type     string         `json:"type"`
	Settings map[string]any `json:"settings"`
}

type titleUpdatedFrame struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
