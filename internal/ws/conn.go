package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/localmind-ai/localmind-backend/internal/domain"
	"github.com/localmind-ai/localmind-backend/internal/llm"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
	"github.com/localmind-ai/localmind-backend/internal/services"
)

const writeTimeout = 10 * time.Second

// Conn owns one upgraded websocket for one chat session. Directives are
// processed strictly in arrival order on the read loop; hub fanout is the
// only other writer, serialized through the write mutex.
type Conn struct {
	sock    *websocket.Conn
	mu      sync.Mutex
	log     *logger.Logger
	chat    services.ChatService
	session *domain.ChatSession
	user    *domain.User
}

func NewConn(sock *websocket.Conn, log *logger.Logger, chat services.ChatService, session *domain.ChatSession, user *domain.User) *Conn {
	return &Conn{
		sock:    sock,
		log:     log.With("component", "WSConn", "session_id", session.ID),
		chat:    chat,
		session: session,
		user:    user,
	}
}

func (c *Conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.sock.WriteJSON(v)
}

func (c *Conn) writeError(msg string) error {
	return c.writeJSON(errorFrame{Type: OutboundError, Error: msg})
}

// Run sends the connect preamble and then serves directives until the
// client goes away. The returned error is transport-level only; protocol
// mistakes are reported to the client in-band.
func (c *Conn) Run(ctx context.Context) error {
	if err := c.sendPreamble(ctx); err != nil {
		return err
	}

	for {
		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return err
		}
		// Frames are message-delimited, so a malformed payload costs only
		// that frame; the connection keeps serving.
		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			if werr := c.writeError("Invalid message format"); werr != nil {
				return werr
			}
			continue
		}
		if err := c.dispatch(ctx, frame); err != nil {
			return err
		}
	}
}

func (c *Conn) sendPreamble(ctx context.Context) error {
	if err := c.writeJSON(sessionInfoFrame{
		Type: OutboundSessionInfo,
		Session: sessionDescriptor{
			ID:       c.session.ID.String(),
			Title:    c.session.Title,
			Settings: c.session.EffectiveSettings().Map(),
		},
	}); err != nil {
		return err
	}
	history, err := c.chat.History(ctx, c.session.ID)
	if err != nil {
		c.log.Error("failed to load history", "error", err)
		history = nil
	}
	if history == nil {
		history = []*domain.Message{}
	}
	return c.writeJSON(historyFrame{Type: OutboundHistory, Messages: history})
}

func (c *Conn) dispatch(ctx context.Context, frame InboundFrame) error {
	switch frame.Type {
	case InboundMessage:
		return c.handleMessage(ctx, frame)
	case InboundUpdateSettings:
		return c.handleUpdateSettings(ctx, frame)
	case InboundUpdateTitle:
		return c.handleUpdateTitle(ctx, frame)
	default:
		return c.writeError(fmt.Sprintf("Unknown message type: %s", frame.Type))
	}
}

// streamEmitter adapts the reply pipeline's event hooks onto wire frames.
type streamEmitter struct {
	conn    *Conn
	started bool
}

func (e *streamEmitter) Start() error {
	e.started = true
	return e.conn.writeJSON(streamStartFrame{
		Type:    OutboundStreamStart,
		Message: roleStub{Role: domain.RoleAssistant},
	})
}

func (e *streamEmitter) Token(token string) error {
	return e.conn.writeJSON(streamTokenFrame{Type: OutboundStreamToken, Token: token})
}

func (c *Conn) handleMessage(ctx context.Context, frame InboundFrame) error {
	content := strings.TrimSpace(frame.Content)
	if content == "" {
		return c.writeError("Message content cannot be empty")
	}
	userMsg, err := c.chat.CreateUserMessage(ctx, c.session, content)
	if err != nil {
		c.log.Error("failed to persist user message", "error", err)
		return c.writeError("Failed to save message")
	}
	if err := c.writeJSON(messageFrame{Type: OutboundMessage, Message: userMsg}); err != nil {
		return err
	}

	emitter := &streamEmitter{conn: c}
	reply, err := c.chat.StreamReply(ctx, c.session, content, frame.UseRAG, emitter)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if llm.IsGenerationError(err) {
			c.log.Error("generation failed", "error", err)
			return c.writeJSON(streamErrorFrame{Type: OutboundStreamError, Error: generationErrorText(err)})
		}
		if !emitter.started {
			c.log.Error("reply pipeline failed before streaming", "error", err)
			return c.writeError("Failed to generate a response")
		}
		// Started but did not finish: either the transport write failed, in
		// which case this write fails too and the loop exits, or a
		// post-stream step failed and the client needs to hear about it.
		c.log.Error("reply pipeline failed mid-stream", "error", err)
		return c.writeJSON(streamErrorFrame{Type: OutboundStreamError, Error: err.Error()})
	}
	return c.writeJSON(streamEndFrame{Type: OutboundStreamEnd, Message: reply})
}

// generationErrorText surfaces the engine's own message in the
// stream_error frame, without the wrapper prefix.
func generationErrorText(err error) string {
	var ge *llm.GenerationError
	if errors.As(err, &ge) && ge.Err != nil {
		return ge.Err.Error()
	}
	return err.Error()
}

func (c *Conn) handleUpdateSettings(ctx context.Context, frame InboundFrame) error {
	updates := map[string]any{}
	if len(frame.Settings) > 0 {
		if err := json.Unmarshal(frame.Settings, &updates); err != nil {
			return c.writeError("Settings must be an object")
		}
	}
	if _, err := c.chat.UpdateSettings(ctx, c.session, updates); err != nil {
		c.log.Error("failed to update settings", "error", err)
		return c.writeError("Failed to update settings")
	}
	// The settings_updated frame arrives via bus fanout so every
	// connection on the session, this one included, sees the same event.
	return nil
}

func (c *Conn) handleUpdateTitle(ctx context.Context, frame InboundFrame) error {
	if _, err := c.chat.UpdateTitle(ctx, c.session, frame.Title); err != nil {
		return c.writeError("Title cannot be empty")
	}
	return nil
}
