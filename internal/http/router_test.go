package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/localmind-ai/localmind-backend/internal/data/repos"
	"github.com/localmind-ai/localmind-backend/internal/data/repos/testutil"
	apphttp "github.com/localmind-ai/localmind-backend/internal/http"
	"github.com/localmind-ai/localmind-backend/internal/http/handlers"
	"github.com/localmind-ai/localmind-backend/internal/http/middleware"
	"github.com/localmind-ai/localmind-backend/internal/llm"
	"github.com/localmind-ai/localmind-backend/internal/llm/mock"
	"github.com/localmind-ai/localmind-backend/internal/rag"
	"github.com/localmind-ai/localmind-backend/internal/realtime/bus"
	"github.com/localmind-ai/localmind-backend/internal/services"
	"github.com/localmind-ai/localmind-backend/internal/ws"
)

type apiEnv struct {
	router *gin.Engine
	tx     *gorm.DB
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := testutil.Logger(t)
	tx := testutil.Tx(t, testutil.DB(t))

	userRepo := repos.NewUserRepo(tx, log)
	sessionRepo := repos.NewSessionRepo(tx, log)
	messageRepo := repos.NewMessageRepo(tx, log)
	templateRepo := repos.NewTemplateRepo(tx, log)
	documentRepo := repos.NewDocumentRepo(tx, log)

	ragSvc := rag.NewService(documentRepo, log)
	llmSvc := llm.NewService(mock.New(), log)
	eventBus := bus.NewMemoryBus()
	t.Cleanup(func() { _ = eventBus.Close() })

	authSvc := services.NewAuthService(tx, log, userRepo, "apitestsecret", time.Hour)
	chatSvc := services.NewChatService(tx, log, sessionRepo, messageRepo, templateRepo, ragSvc, llmSvc, eventBus, 3)
	templateSvc := services.NewTemplateService(log, templateRepo)

	hub := ws.NewHub(log)
	if err := eventBus.StartForwarder(context.Background(), hub.Dispatch); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}

	router := apphttp.NewRouter(apphttp.RouterConfig{
		Log:             log,
		AuthHandler:     handlers.NewAuthHandler(authSvc),
		AuthMiddleware:  middleware.NewAuthMiddleware(log, authSvc),
		SessionHandler:  handlers.NewSessionHandler(chatSvc),
		DocumentHandler: handlers.NewDocumentHandler(ragSvc, documentRepo),
		TemplateHandler: handlers.NewTemplateHandler(templateSvc),
		WSChatHandler:   ws.NewChatHandler(log, authSvc, chatSvc, hub),
		HealthHandler:   handlers.NewHealthHandler(llmSvc),
	})

	return &apiEnv{router: router, tx: tx}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func (e *apiEnv) login(t *testing.T, username string) string {
	t.Helper()
	rec, out := e.do(t, http.MethodPost, "/api/login", "", map[string]any{"username": username})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status: %d body=%s", rec.Code, rec.Body.String())
	}
	token, _ := out["access_token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %v", out)
	}
	return token
}

func TestHealthcheck(t *testing.T) {
	env := newAPIEnv(t)
	rec, out := env.do(t, http.MethodGet, "/healthcheck", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if out["status"] != "ok" {
		t.Fatalf("unexpected body: %v", out)
	}
	if _, present := out["model_loaded"]; !present {
		t.Fatalf("model_loaded missing: %v", out)
	}
}

func TestLoginAndMe(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "api-user")

	rec, out := env.do(t, http.MethodGet, "/api/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status: %d", rec.Code)
	}
	if out["username"] != "api-user" {
		t.Fatalf("unexpected user: %v", out)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/login", "", map[string]any{"username": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank username, got %d", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "session-user")

	rec, created := env.do(t, http.MethodPost, "/api/sessions", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status: %d body=%s", rec.Code, rec.Body.String())
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("created session has no id: %v", created)
	}

	rec, listed := env.do(t, http.MethodGet, "/api/sessions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status: %d", rec.Code)
	}
	sessions, _ := listed["sessions"].([]any)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %v", listed)
	}

	rec, msgs := env.do(t, http.MethodGet, "/api/sessions/"+id+"/messages", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("messages status: %d", rec.Code)
	}
	if list, _ := msgs["messages"].([]any); len(list) != 0 {
		t.Fatalf("fresh session must have no messages: %v", msgs)
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/sessions/"+id, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status: %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodGet, "/api/sessions/"+id, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted session must 404, got %d", rec.Code)
	}

	// Other users cannot see it even before deletion semantics apply.
	otherToken := env.login(t, "session-stranger")
	rec, _ = env.do(t, http.MethodGet, "/api/sessions/"+id, otherToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign session must 404, got %d", rec.Code)
	}
}

func TestDocumentIngestAndSearch(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "doc-user")

	rec, created := env.do(t, http.MethodPost, "/api/documents", token, map[string]any{
		"title":   "go",
		"content": "Go is a compiled programming language designed at Google",
		"tags":    []string{"lang"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status: %d body=%s", rec.Code, rec.Body.String())
	}
	if id, _ := created["id"].(string); id == "" {
		t.Fatalf("document has no id: %v", created)
	}
	if _, present := created["embedding"]; present {
		t.Fatalf("embedding must never serialize: %v", created)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/documents", token, map[string]any{"title": "", "content": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank document must 400, got %d", rec.Code)
	}

	rec, results := env.do(t, http.MethodGet, "/api/documents/search?q=go+programming+language", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status: %d", rec.Code)
	}
	hits, _ := results["results"].([]any)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %v", results)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/documents/search", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing query must 400, got %d", rec.Code)
	}
}

func TestTemplateCRUD(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "tpl-user")

	body := map[string]any{
		"name":          "pirate",
		"system_prompt": "You are a pirate.",
		"description":   "talk like a pirate",
	}
	rec, _ := env.do(t, http.MethodPost, "/api/templates", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status: %d body=%s", rec.Code, rec.Body.String())
	}

	rec, _ = env.do(t, http.MethodPost, "/api/templates", token, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate name must 409, got %d", rec.Code)
	}

	rec, got := env.do(t, http.MethodGet, "/api/templates/pirate", token, nil)
	if rec.Code != http.StatusOK || got["system_prompt"] != "You are a pirate." {
		t.Fatalf("get: status=%d body=%v", rec.Code, got)
	}

	rec, got = env.do(t, http.MethodPatch, "/api/templates/pirate", token, map[string]any{"description": "arr"})
	if rec.Code != http.StatusOK || got["description"] != "arr" {
		t.Fatalf("patch: status=%d body=%v", rec.Code, got)
	}

	rec, _ = env.do(t, http.MethodPatch, "/api/templates/pirate", token, map[string]any{"name": "captain"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("renaming must be rejected, got %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/templates/pirate", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status: %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodGet, "/api/templates/pirate", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted template must 404, got %d", rec.Code)
	}
}
