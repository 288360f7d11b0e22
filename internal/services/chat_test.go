package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/localmind-ai/localmind-backend/internal/data/repos"
	"github.com/localmind-ai/localmind-backend/internal/data/repos/testutil"
	"github.com/localmind-ai/localmind-backend/internal/domain"
	"github.com/localmind-ai/localmind-backend/internal/llm"
	"github.com/localmind-ai/localmind-backend/internal/llm/mock"
	"github.com/localmind-ai/localmind-backend/internal/pkg/dbctx"
	"github.com/localmind-ai/localmind-backend/internal/rag"
	"github.com/localmind-ai/localmind-backend/internal/realtime"
	"github.com/localmind-ai/localmind-backend/internal/realtime/bus"
	"github.com/localmind-ai/localmind-backend/internal/services"
)

type chatEnv struct {
	tx       *gorm.DB
	chat     services.ChatService
	engine   *mock.Engine
	user     *domain.User
	session  *domain.ChatSession
	messages repos.MessageRepo
	sessions repos.SessionRepo
	ragSvc   *rag.Service
	received *[]realtime.Message
}

func newChatEnv(t *testing.T, engine *mock.Engine) *chatEnv {
	t.Helper()
	log := testutil.Logger(t)
	tx := testutil.Tx(t, testutil.DB(t))
	ctx := context.Background()

	sessions := repos.NewSessionRepo(tx, log)
	messages := repos.NewMessageRepo(tx, log)
	templates := repos.NewTemplateRepo(tx, log)
	documents := repos.NewDocumentRepo(tx, log)

	ragSvc := rag.NewService(documents, log)
	llmSvc := llm.NewService(engine, log)

	eventBus := bus.NewMemoryBus()
	t.Cleanup(func() { _ = eventBus.Close() })
	received := &[]realtime.Message{}
	if err := eventBus.StartForwarder(ctx, func(m realtime.Message) {
		*received = append(*received, m)
	}); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}

	chat := services.NewChatService(tx, log, sessions, messages, templates, ragSvc, llmSvc, eventBus, 3)

	user := testutil.SeedUser(t, ctx, tx, "chatter-"+t.Name())
	session := testutil.SeedSession(t, ctx, tx, user.ID)

	return &chatEnv{
		tx:       tx,
		chat:     chat,
		engine:   engine,
		user:     user,
		session:  session,
		messages: messages,
		sessions: sessions,
		ragSvc:   ragSvc,
		received: received,
	}
}

type recordingEvents struct {
	order  []string
	tokens []string
}

func (r *recordingEvents) Start() error {
	r.order = append(r.order, "start")
	return nil
}

func (r *recordingEvents) Token(token string) error {
	r.order = append(r.order, "token")
	r.tokens = append(r.tokens, token)
	return nil
}

func TestResolveSessionNew(t *testing.T) {
	env := newChatEnv(t, mock.New())
	ctx := context.Background()

	for _, key := range []string{"new", "", "NEW"} {
		session, err := env.chat.ResolveSession(ctx, env.user.ID, key)
		if err != nil {
			t.Fatalf("ResolveSession(%q): %v", key, err)
		}
		if session.Title != domain.DefaultSessionTitle {
			t.Fatalf("fresh session title: got %q want %q", session.Title, domain.DefaultSessionTitle)
		}
		if !session.IsActive {
			t.Fatalf("fresh session must be active")
		}
	}
}

func TestResolveSessionScoping(t *testing.T) {
	env := newChatEnv(t, mock.New())
	ctx := context.Background()

	if _, err := env.chat.ResolveSession(ctx, env.user.ID, "not-a-uuid"); err == nil {
		t.Fatalf("expected invalid id to fail")
	}

	stranger := testutil.SeedUser(t, ctx, env.tx, "stranger-"+t.Name())
	if _, err := env.chat.ResolveSession(ctx, stranger.ID, env.session.ID.String()); err == nil {
		t.Fatalf("a session must not resolve for a user who does not own it")
	}

	found, err := env.chat.ResolveSession(ctx, env.user.ID, env.session.ID.String())
	if err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	if found.ID != env.session.ID {
		t.Fatalf("wrong session resolved")
	}

	if err := env.chat.DeactivateSession(ctx, env.user.ID, env.session.ID); err != nil {
		t.Fatalf("DeactivateSession: %v", err)
	}
	if _, err := env.chat.ResolveSession(ctx, env.user.ID, env.session.ID.String()); err == nil {
		t.Fatalf("a deactivated session must not resolve")
	}
}

func TestStreamReplyHappyPath(t *testing.T) {
	env := newChatEnv(t, mock.New("Hello", " ", "world"))
	ctx := context.Background()

	if _, err := env.chat.CreateUserMessage(ctx, env.session, "Say hello"); err != nil {
		t.Fatalf("CreateUserMessage: %v", err)
	}

	rec := &recordingEvents{}
	reply, err := env.chat.StreamReply(ctx, env.session, "Say hello", false, rec)
	if err != nil {
		t.Fatalf("StreamReply: %v", err)
	}

	if len(rec.order) == 0 || rec.order[0] != "start" {
		t.Fatalf("start must precede every token: %v", rec.order)
	}
	if strings.Join(rec.tokens, "") != "Hello world" {
		t.Fatalf("unexpected streamed tokens: %v", rec.tokens)
	}
	if reply.Role != domain.RoleAssistant || reply.Content != "Hello world" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if reply.RAGContext != nil {
		t.Fatalf("no retrieval requested, rag_context must be nil")
	}
	if !strings.Contains(string(reply.Metadata), `"rag_used":false`) {
		t.Fatalf("metadata must record that retrieval was off: %s", reply.Metadata)
	}

	history, err := env.chat.History(ctx, env.session.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(history))
	}
	if history[0].Role != domain.RoleUser || history[1].Role != domain.RoleAssistant {
		t.Fatalf("history out of order: %v then %v", history[0].Role, history[1].Role)
	}

	req := env.engine.LastReq
	if req.MaxTokens != 512 || req.Temperature != 0.7 {
		t.Fatalf("default settings not applied to the request: %+v", req)
	}
	if !strings.Contains(req.Prompt, "<s>[INST] ") || !strings.Contains(req.Prompt, "Say hello") {
		t.Fatalf("prompt framing missing: %q", req.Prompt)
	}
	if len(req.Stop) == 0 {
		t.Fatalf("stop sequences missing from the request")
	}
}

func TestStreamReplyAppliesSessionSettings(t *testing.T) {
	env := newChatEnv(t, mock.New("ok"))
	env.session.Settings = datatypes.JSON(`{"temperature":0.2,"max_tokens":64,"system_prompt":"Be terse."}`)

	if _, err := env.chat.StreamReply(context.Background(), env.session, "hi", false, &recordingEvents{}); err != nil {
		t.Fatalf("StreamReply: %v", err)
	}
	req := env.engine.LastReq
	if req.Temperature != 0.2 || req.MaxTokens != 64 {
		t.Fatalf("session settings not applied: %+v", req)
	}
	if !strings.Contains(req.Prompt, "Be terse.") {
		t.Fatalf("custom system prompt missing: %q", req.Prompt)
	}
}

func TestStreamReplyResolvesTemplate(t *testing.T) {
	env := newChatEnv(t, mock.New("ok"))
	ctx := context.Background()

	log := testutil.Logger(t)
	templates := repos.NewTemplateRepo(env.tx, log)
	if _, err := templates.Create(dbctx.Context{Ctx: ctx, Tx: env.tx}, &domain.PromptTemplate{
		Name:         "pirate",
		SystemPrompt: "You are a pirate.",
		IsActive:     true,
	}); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	env.session.Settings = datatypes.JSON(`{"prompt_template":"pirate"}`)

	if _, err := env.chat.StreamReply(ctx, env.session, "hi", false, &recordingEvents{}); err != nil {
		t.Fatalf("StreamReply: %v", err)
	}
	if !strings.Contains(env.engine.LastReq.Prompt, "You are a pirate.") {
		t.Fatalf("template system prompt missing: %q", env.engine.LastReq.Prompt)
	}

	// A resolvable template overrides the stored system_prompt.
	env.session.Settings = datatypes.JSON(`{"system_prompt":"Be terse.","prompt_template":"pirate"}`)
	if _, err := env.chat.StreamReply(ctx, env.session, "hi", false, &recordingEvents{}); err != nil {
		t.Fatalf("StreamReply: %v", err)
	}
	if !strings.Contains(env.engine.LastReq.Prompt, "You are a pirate.") || strings.Contains(env.engine.LastReq.Prompt, "Be terse.") {
		t.Fatalf("template must override the session system_prompt: %q", env.engine.LastReq.Prompt)
	}

	// An unknown template name falls back to the stored system_prompt.
	env.session.Settings = datatypes.JSON(`{"system_prompt":"Be terse.","prompt_template":"ghost"}`)
	if _, err := env.chat.StreamReply(ctx, env.session, "hi", false, &recordingEvents{}); err != nil {
		t.Fatalf("StreamReply with unknown template: %v", err)
	}
	if !strings.Contains(env.engine.LastReq.Prompt, "Be terse.") {
		t.Fatalf("fallback system prompt missing: %q", env.engine.LastReq.Prompt)
	}
}

func TestStreamReplyUnavailableModel(t *testing.T) {
	env := newChatEnv(t, &mock.Engine{Unloaded: true})
	rec := &recordingEvents{}

	reply, err := env.chat.StreamReply(context.Background(), env.session, "hi", false, rec)
	if err != nil {
		t.Fatalf("unavailability must complete as a normal stream: %v", err)
	}
	if reply.Content != llm.UnavailableNotice {
		t.Fatalf("expected the notice persisted verbatim, got %q", reply.Content)
	}
	if len(rec.tokens) != 1 || rec.tokens[0] != llm.UnavailableNotice {
		t.Fatalf("expected a single notice token, got %v", rec.tokens)
	}
}

func TestStreamReplyFailurePersistsNothing(t *testing.T) {
	engine := mock.New("partial")
	engine.Err = errors.New("backend fell over")
	env := newChatEnv(t, engine)
	ctx := context.Background()

	before, err := env.messages.CountBySession(dbctx.New(ctx), env.session.ID)
	if err != nil {
		t.Fatalf("CountBySession: %v", err)
	}

	_, err = env.chat.StreamReply(ctx, env.session, "hi", false, &recordingEvents{})
	if err == nil {
		t.Fatalf("expected the engine failure to surface")
	}

	after, err := env.messages.CountBySession(dbctx.New(ctx), env.session.ID)
	if err != nil {
		t.Fatalf("CountBySession: %v", err)
	}
	if after != before {
		t.Fatalf("aborted reply must persist nothing: before=%d after=%d", before, after)
	}
}

func TestStreamReplyWithRetrieval(t *testing.T) {
	env := newChatEnv(t, mock.New("ok"))
	ctx := context.Background()

	if _, err := env.ragSvc.AddDocument(dbctx.New(ctx), &domain.RAGDocument{
		Title:   "go",
		Content: "Go is a compiled programming language designed at Google",
	}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	reply, err := env.chat.StreamReply(ctx, env.session, "Tell me about the Go programming language", true, &recordingEvents{})
	if err != nil {
		t.Fatalf("StreamReply: %v", err)
	}
	if reply.RAGContext == nil || !strings.Contains(*reply.RAGContext, "Go is a compiled programming language") {
		t.Fatalf("rag_context not recorded: %v", reply.RAGContext)
	}
	if !strings.Contains(env.engine.LastReq.Prompt, "Context information:") {
		t.Fatalf("context section missing from the prompt: %q", env.engine.LastReq.Prompt)
	}
	if !strings.Contains(string(reply.Metadata), `"rag_used":true`) {
		t.Fatalf("metadata must record that retrieval ran: %s", reply.Metadata)
	}
}

func TestUpdateSettingsDropsInvalidValues(t *testing.T) {
	env := newChatEnv(t, mock.New())
	ctx := context.Background()

	effective, err := env.chat.UpdateSettings(ctx, env.session, map[string]any{"temperature": -1.0, "max_tokens": 9999.0})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if effective.Temperature != 0.7 || effective.MaxTokens != 512 {
		t.Fatalf("invalid values must be dropped silently: %+v", effective)
	}

	effective, err = env.chat.UpdateSettings(ctx, env.session, map[string]any{"temperature": 0.5})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if effective.Temperature != 0.5 {
		t.Fatalf("valid value not applied: %+v", effective)
	}

	if len(*env.received) != 2 {
		t.Fatalf("expected one settings_updated event per update, got %d", len(*env.received))
	}
	last := (*env.received)[1]
	if last.Event != realtime.EventSettingsUpdated || last.Channel != realtime.SessionChannel(env.session.ID) {
		t.Fatalf("unexpected event: %+v", last)
	}

	// The merge persisted; a fresh load sees the same effective view.
	loaded, err := env.sessions.GetForUser(dbctx.New(ctx), env.session.ID, env.user.ID)
	if err != nil || loaded == nil {
		t.Fatalf("reload session: %v", err)
	}
	if got := loaded.EffectiveSettings().Temperature; got != 0.5 {
		t.Fatalf("persisted temperature: got %v want 0.5", got)
	}
}

func TestUpdateTitle(t *testing.T) {
	env := newChatEnv(t, mock.New())
	ctx := context.Background()

	if _, err := env.chat.UpdateTitle(ctx, env.session, "   "); err == nil {
		t.Fatalf("blank title must be rejected")
	}

	title, err := env.chat.UpdateTitle(ctx, env.session, "  Project kickoff  ")
	if err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}
	if title != "Project kickoff" {
		t.Fatalf("title not trimmed: %q", title)
	}

	loaded, err := env.sessions.GetForUser(dbctx.New(ctx), env.session.ID, env.user.ID)
	if err != nil || loaded == nil {
		t.Fatalf("reload session: %v", err)
	}
	if loaded.Title != "Project kickoff" {
		t.Fatalf("title not persisted: %q", loaded.Title)
	}

	if len(*env.received) != 1 || (*env.received)[0].Event != realtime.EventTitleUpdated {
		t.Fatalf("expected a title_updated event, got %v", *env.received)
	}
}

func TestCreateUserMessageRejectsEmpty(t *testing.T) {
	env := newChatEnv(t, mock.New())
	for _, content := range []string{"", "   ", "\n"} {
		if _, err := env.chat.CreateUserMessage(context.Background(), env.session, content); err == nil {
			t.Fatalf("expected empty content %q to be rejected", content)
		}
	}
}
