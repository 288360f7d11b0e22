package ws

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/localmind-ai/localmind-backend/internal/http/middleware"
	"github.com/localmind-ai/localmind-backend/internal/http/response"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
	"github.com/localmind-ai/localmind-backend/internal/realtime"
	"github.com/localmind-ai/localmind-backend/internal/services"
)

// ChatHandler upgrades authenticated requests into chat connections. The
// session is resolved before the upgrade so an invalid or foreign session
// id is rejected with a plain HTTP status and never gets a socket.
type ChatHandler struct {
	log      *logger.Logger
	auth     services.AuthService
	chat     services.ChatService
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewChatHandler(log *logger.Logger, auth services.AuthService, chat services.ChatService, hub *Hub) *ChatHandler {
	return &ChatHandler{
		log:  log.With("handler", "WSChatHandler"),
		auth: auth,
		chat: chat,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cross-origin browser clients are expected; CORS on the REST
			// surface governs what the frontend may call, and the token
			// check below governs the socket.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws/chat/:session_id. The session id may be a UUID or
// the literal "new".
func (h *ChatHandler) Serve(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing identity"))
		return
	}
	user, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil || user == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("unknown user"))
		return
	}

	session, err := h.chat.ResolveSession(c.Request.Context(), userID, c.Param("session_id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}

	sock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer sock.Close()

	conn := NewConn(sock, h.log, h.chat, session, user)
	channel := realtime.SessionChannel(session.ID)
	h.hub.Add(channel, conn)
	defer h.hub.Remove(channel, conn)

	if err := conn.Run(c.Request.Context()); err != nil {
		h.log.Debug("connection closed", "session_id", session.ID, "error", err)
	}
}
