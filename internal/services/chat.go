package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/localmind-ai/localmind-backend/internal/data/repos"
	"github.com/localmind-ai/localmind-backend/internal/domain"
	"github.com/localmind-ai/localmind-backend/internal/llm"
	"github.com/localmind-ai/localmind-backend/internal/pkg/dbctx"
	"github.com/localmind-ai/localmind-backend/internal/platform/apierr"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
	"github.com/localmind-ai/localmind-backend/internal/prompt"
	"github.com/localmind-ai/localmind-backend/internal/rag"
	"github.com/localmind-ai/localmind-backend/internal/realtime"
	"github.com/localmind-ai/localmind-backend/internal/realtime/bus"
)

// NewSessionKeyword in place of a session id asks for a fresh session.
const NewSessionKeyword = "new"

const maxTitleLen = 200

// StreamEvents receives the generation lifecycle for one reply. Start fires
// once before the first token; Token fires per token in generation order.
// Returning an error from either aborts the generation.
type StreamEvents interface {
	Start() error
	Token(token string) error
}

type ChatService interface {
	// ResolveSession maps the client-supplied session key to an owned,
	// active session, creating one when the key is "new" or empty.
	// Failures carry an *apierr.Error so callers can map them to a status.
	ResolveSession(ctx context.Context, userID uuid.UUID, raw string) (*domain.ChatSession, error)
	CreateSession(ctx context.Context, userID uuid.UUID) (*domain.ChatSession, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]*domain.ChatSession, error)
	DeactivateSession(ctx context.Context, userID, sessionID uuid.UUID) error

	History(ctx context.Context, sessionID uuid.UUID) ([]*domain.Message, error)
	CreateUserMessage(ctx context.Context, session *domain.ChatSession, content string) (*domain.Message, error)

	// StreamReply runs the full reply pipeline: retrieval, prompt assembly,
	// token generation, persistence. The completed assistant message is
	// returned only when the stream ran to exhaustion; an aborted stream
	// persists nothing.
	StreamReply(ctx context.Context, session *domain.ChatSession, userText string, useRAG bool, events StreamEvents) (*domain.Message, error)

	UpdateSettings(ctx context.Context, session *domain.ChatSession, updates map[string]any) (domain.SessionSettings, error)
	UpdateTitle(ctx context.Context, session *domain.ChatSession, title string) (string, error)
}

type chatService struct {
	db        *gorm.DB
	log       *logger.Logger
	sessions  repos.SessionRepo
	messages  repos.MessageRepo
	templates repos.TemplateRepo
	rag       *rag.Service
	llm       *llm.Service
	bus       bus.Bus
	topK      int
}

func NewChatService(
	db *gorm.DB,
	log *logger.Logger,
	sessions repos.SessionRepo,
	messages repos.MessageRepo,
	templates repos.TemplateRepo,
	ragService *rag.Service,
	llmService *llm.Service,
	eventBus bus.Bus,
	topK int,
) ChatService {
	if topK <= 0 {
		topK = 3
	}
	return &chatService{
		db:        db,
		log:       log.With("service", "ChatService"),
		sessions:  sessions,
		messages:  messages,
		templates: templates,
		rag:       ragService,
		llm:       llmService,
		bus:       eventBus,
		topK:      topK,
	}
}

func (cs *chatService) ResolveSession(ctx context.Context, userID uuid.UUID, raw string) (*domain.ChatSession, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, NewSessionKeyword) {
		return cs.CreateSession(ctx, userID)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_session_id", fmt.Errorf("invalid session id %q", raw))
	}
	session, err := cs.sessions.GetForUser(dbctx.New(ctx), id, userID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "session_lookup_failed", err)
	}
	if session == nil {
		return nil, apierr.New(http.StatusNotFound, "session_not_found", fmt.Errorf("session %s not found", id))
	}
	return session, nil
}

func (cs *chatService) CreateSession(ctx context.Context, userID uuid.UUID) (*domain.ChatSession, error) {
	return cs.sessions.Create(dbctx.New(ctx), &domain.ChatSession{UserID: userID})
}

func (cs *chatService) ListSessions(ctx context.Context, userID uuid.UUID) ([]*domain.ChatSession, error) {
	return cs.sessions.ListByUser(dbctx.New(ctx), userID)
}

func (cs *chatService) DeactivateSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	session, err := cs.sessions.GetForUser(dbctx.New(ctx), sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return apierr.New(http.StatusNotFound, "session_not_found", fmt.Errorf("session %s not found", sessionID))
	}
	return cs.sessions.Deactivate(dbctx.New(ctx), sessionID)
}

func (cs *chatService) History(ctx context.Context, sessionID uuid.UUID) ([]*domain.Message, error) {
	return cs.messages.ListBySession(dbctx.New(ctx), sessionID)
}

func (cs *chatService) CreateUserMessage(ctx context.Context, session *domain.ChatSession, content string) (*domain.Message, error) {
	if session == nil {
		return nil, fmt.Errorf("missing session")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content is empty")
	}
	return cs.messages.Create(dbctx.New(ctx), &domain.Message{
		SessionID: session.ID,
		Role:      domain.RoleUser,
		Content:   content,
	})
}

func (cs *chatService) StreamReply(ctx context.Context, session *domain.ChatSession, userText string, useRAG bool, events StreamEvents) (*domain.Message, error) {
	if session == nil {
		return nil, fmt.Errorf("missing session")
	}
	settings := session.EffectiveSettings()

	ragContext := ""
	if useRAG && cs.rag != nil {
		out, err := cs.rag.Context(dbctx.New(ctx), userText, cs.topK)
		if err != nil {
			// Retrieval failure degrades to a context-free reply.
			cs.log.Warn("retrieval failed, continuing without context", "session_id", session.ID, "error", err)
		} else {
			ragContext = out
		}
	}

	systemPrompt, err := cs.resolveSystemPrompt(ctx, settings)
	if err != nil {
		return nil, err
	}

	promptText := prompt.Build(userText, systemPrompt, ragContext)

	stream := cs.llm.GenerateStream(ctx, llm.CompletionRequest{
		Prompt:      promptText,
		MaxTokens:   settings.MaxTokens,
		Temperature: settings.Temperature,
		Stop:        prompt.StopSequences,
	})

	if err := events.Start(); err != nil {
		return nil, err
	}

	var reply strings.Builder
	for {
		token, ok, err := stream.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		reply.WriteString(token)
		if err := events.Token(token); err != nil {
			return nil, err
		}
	}

	meta, err := json.Marshal(map[string]bool{"rag_used": useRAG})
	if err != nil {
		return nil, fmt.Errorf("encode message metadata: %w", err)
	}
	msg := &domain.Message{
		SessionID: session.ID,
		Role:      domain.RoleAssistant,
		Content:   reply.String(),
		Metadata:  datatypes.JSON(meta),
	}
	if ragContext != "" {
		msg.RAGContext = &ragContext
	}
	saved, err := cs.messages.Create(dbctx.New(ctx), msg)
	if err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}
	if err := cs.sessions.UpdateFields(dbctx.New(ctx), session.ID, map[string]interface{}{}); err != nil {
		cs.log.Warn("failed to bump session updated_at", "session_id", session.ID, "error", err)
	}
	return saved, nil
}

// resolveSystemPrompt picks the system prompt for one reply. A named
// non-default template overrides the stored system_prompt when it resolves
// to an active row; a name that resolves to nothing falls back to the
// session system_prompt rather than failing the reply. An empty result
// lets the prompt builder use its default.
func (cs *chatService) resolveSystemPrompt(ctx context.Context, settings domain.SessionSettings) (string, error) {
	base := ""
	if settings.SystemPrompt != nil {
		base = *settings.SystemPrompt
	}
	name := strings.TrimSpace(settings.PromptTemplate)
	if name == "" || name == "default" {
		return base, nil
	}
	tpl, err := cs.templates.GetActiveByName(dbctx.New(ctx), name)
	if err != nil {
		return "", fmt.Errorf("resolve prompt template: %w", err)
	}
	if tpl == nil {
		cs.log.Warn("prompt template not found, falling back", "template", name)
		return base, nil
	}
	return tpl.SystemPrompt, nil
}

func (cs *chatService) UpdateSettings(ctx context.Context, session *domain.ChatSession, updates map[string]any) (domain.SessionSettings, error) {
	if session == nil {
		return domain.SessionSettings{}, fmt.Errorf("missing session")
	}
	filtered := domain.FilterSettings(updates)
	merged, err := domain.MergeSettings(session.Settings, filtered)
	if err != nil {
		return domain.SessionSettings{}, fmt.Errorf("merge settings: %w", err)
	}
	if err := cs.sessions.UpdateFields(dbctx.New(ctx), session.ID, map[string]interface{}{"settings": merged}); err != nil {
		return domain.SessionSettings{}, fmt.Errorf("persist settings: %w", err)
	}
	session.Settings = merged
	effective := session.EffectiveSettings()
	cs.publish(ctx, realtime.Message{
		Channel: realtime.SessionChannel(session.ID),
		Event:   realtime.EventSettingsUpdated,
		Data:    effective.Map(),
	})
	return effective, nil
}

func (cs *chatService) UpdateTitle(ctx context.Context, session *domain.ChatSession, title string) (string, error) {
	if session == nil {
		return "", fmt.Errorf("missing session")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("title is empty")
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	if err := cs.sessions.UpdateFields(dbctx.New(ctx), session.ID, map[string]interface{}{"title": title}); err != nil {
		return "", fmt.Errorf("persist title: %w", err)
	}
	session.Title = title
	cs.publish(ctx, realtime.Message{
		Channel: realtime.SessionChannel(session.ID),
		Event:   realtime.EventTitleUpdated,
		Data:    map[string]any{"title": title},
	})
	return title, nil
}

func (cs *chatService) publish(ctx context.Context, msg realtime.Message) {
	if cs.bus == nil {
		return
	}
	if err := cs.bus.Publish(ctx, msg); err != nil {
		cs.log.Warn("realtime publish failed", "channel", msg.Channel, "event", msg.Event, "error", err)
	}
}
