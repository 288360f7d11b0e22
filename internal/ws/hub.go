package ws

import (
	"sync"

	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
	"github.com/localmind-ai/localmind-backend/internal/realtime"
)

// Hub tracks which connections are attached to which session channel and
// fans bus messages out to them. Connections register on upgrade and are
// removed when their loop exits.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Conn]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "WSHub"),
		subscriptions: make(map[string]map[*Conn]bool),
	}
}

func (h *Hub) Add(channel string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.subscriptions[channel]
	if !ok {
		conns = make(map[*Conn]bool)
		h.subscriptions[channel] = conns
	}
	conns[c] = true
	h.log.Debug("connection subscribed", "channel", channel)
}

func (h *Hub) Remove(channel string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.subscriptions[channel]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.subscriptions, channel)
		}
	}
	h.log.Debug("connection unsubscribed", "channel", channel)
}

// Dispatch delivers a bus message to every connection on its channel,
// including the one whose action produced it. Write failures are left to
// the owning connection's read loop to notice.
func (h *Hub) Dispatch(msg realtime.Message) {
	frame := frameFor(msg)
	if frame == nil {
		h.log.Warn("dropping unknown realtime event", "event", msg.Event)
		return
	}

	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.subscriptions[msg.Channel]))
	for c := range h.subscriptions[msg.Channel] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeJSON(frame); err != nil {
			h.log.Debug("fanout write failed", "channel", msg.Channel, "error", err)
		}
	}
}

func frameFor(msg realtime.Message) any {
	switch msg.Event {
	case realtime.EventSettingsUpdated:
		settings, _ := msg.Data.(map[string]any)
		return settingsUpdatedFrame{Type: OutboundSettingsUpdated, Settings: settings}
	case realtime.EventTitleUpdated:
		title := ""
		if data, ok := msg.Data.(map[string]any); ok {
			title, _ = data["title"].(string)
		}
		return titleUpdatedFrame{Type: OutboundTitleUpdated, Title: title}
	default:
		return nil
	}
}
