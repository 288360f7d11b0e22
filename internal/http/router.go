package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/localmind-ai/localmind-backend/internal/http/handlers"
	httpMW "github.com/localmind-ai/localmind-backend/internal/http/middleware"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
	"github.com/localmind-ai/localmind-backend/internal/ws"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthHandler    *httpH.AuthHandler
	AuthMiddleware *httpMW.AuthMiddleware

	SessionHandler  *httpH.SessionHandler
	DocumentHandler *httpH.DocumentHandler
	TemplateHandler *httpH.TemplateHandler
	WSChatHandler   *ws.ChatHandler

	HealthHandler *httpH.HealthHandler

	// TracingEnabled mounts the otelgin middleware; it is off unless
	// tracing was initialized.
	TracingEnabled bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware("localmind-backend"))
	}
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/login", cfg.AuthHandler.Login)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.GET("/me", cfg.AuthHandler.GetMe)
		}

		// Sessions
		if cfg.SessionHandler != nil {
			protected.GET("/sessions", cfg.SessionHandler.ListSessions)
			protected.POST("/sessions", cfg.SessionHandler.CreateSession)
			protected.GET("/sessions/:id", cfg.SessionHandler.GetSession)
			protected.GET("/sessions/:id/messages", cfg.SessionHandler.GetSessionMessages)
			protected.DELETE("/sessions/:id", cfg.SessionHandler.DeleteSession)
		}

		// Knowledge base
		if cfg.DocumentHandler != nil {
			protected.GET("/documents", cfg.DocumentHandler.ListDocuments)
			protected.POST("/documents", cfg.DocumentHandler.AddDocument)
			protected.GET("/documents/search", cfg.DocumentHandler.Search)
			protected.GET("/documents/:id", cfg.DocumentHandler.GetDocument)
			protected.DELETE("/documents/:id", cfg.DocumentHandler.DeleteDocument)
		}

		// Prompt templates
		if cfg.TemplateHandler != nil {
			protected.GET("/templates", cfg.TemplateHandler.ListTemplates)
			protected.POST("/templates", cfg.TemplateHandler.CreateTemplate)
			protected.GET("/templates/:name", cfg.TemplateHandler.GetTemplate)
			protected.PATCH("/templates/:name", cfg.TemplateHandler.UpdateTemplate)
			protected.DELETE("/templates/:name", cfg.TemplateHandler.DeleteTemplate)
		}
	}

	// Chat websocket; the auth middleware reads the token from the query
	// string here since browsers cannot set headers on a websocket dial.
	if cfg.WSChatHandler != nil {
		wsGroup := r.Group("/ws")
		if cfg.AuthMiddleware != nil {
			wsGroup.Use(cfg.AuthMiddleware.RequireAuth())
		}
		wsGroup.GET("/chat/:session_id", cfg.WSChatHandler.Serve)
	}

	return r
}
