package realtime

import "github.com/google/uuid"

type Event string

const (
	EventSettingsUpdated Event = "settings_updated"
	EventTitleUpdated    Event = "title_updated"
)

// Message is one fanout unit. Channel scopes delivery; every connection
// attached to the same chat session subscribes to that session's channel.
type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Data    any    `json:"data,omitempty"`
}

// SessionChannel names the fanout channel for one chat session.
func SessionChannel(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}
