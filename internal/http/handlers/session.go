package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/localmind-ai/localmind-backend/internal/http/middleware"
	"github.com/localmind-ai/localmind-backend/internal/http/response"
	"github.com/localmind-ai/localmind-backend/internal/services"
)

type SessionHandler struct {
	chatService services.ChatService
}

func NewSessionHandler(chatService services.ChatService) *SessionHandler {
	return &SessionHandler{chatService: chatService}
}

func (sh *SessionHandler) ListSessions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	sessions, err := sh.chatService.ListSessions(c.Request.Context(), userID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "session_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": sessions})
}

func (sh *SessionHandler) CreateSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	session, err := sh.chatService.CreateSession(c.Request.Context(), userID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "session_create_failed", err)
		return
	}
	response.RespondCreated(c, session)
}

func (sh *SessionHandler) GetSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	session, err := sh.chatService.ResolveSession(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, session)
}

func (sh *SessionHandler) GetSessionMessages(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	session, err := sh.chatService.ResolveSession(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	history, err := sh.chatService.History(c.Request.Context(), session.ID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "history_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"messages": history})
}

// DeleteSession deactivates rather than destroys; the transcript survives
// for audit but the session disappears from listings and lookups.
func (sh *SessionHandler) DeleteSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	if err := sh.chatService.DeactivateSession(c.Request.Context(), userID, id); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
