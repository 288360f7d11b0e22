package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/localmind-ai/localmind-backend/internal/http/middleware"
	"github.com/localmind-ai/localmind-backend/internal/http/response"
	"github.com/localmind-ai/localmind-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login is the whole identity ceremony: a username in, a token out. The
// user record is created on first sight.
func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	accessToken, user, err := ah.authService.Login(c.Request.Context(), req.Username)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "login_failed", err)
		return
	}
	expiresIn := int(ah.authService.GetAccessTTL().Seconds())
	response.RespondOK(c, gin.H{
		"access_token": accessToken,
		"expires_in":   expiresIn,
		"user":         user,
	})
}

func (ah *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	user, err := ah.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "user_lookup_failed", err)
		return
	}
	if user == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	response.RespondOK(c, user)
}
