package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/localmind-ai/localmind-backend/internal/domain"
	"github.com/localmind-ai/localmind-backend/internal/http/middleware"
	"github.com/localmind-ai/localmind-backend/internal/http/response"
	"github.com/localmind-ai/localmind-backend/internal/services"
)

type TemplateHandler struct {
	templateService services.TemplateService
}

func NewTemplateHandler(templateService services.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

func (th *TemplateHandler) CreateTemplate(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		SystemPrompt string   `json:"system_prompt"`
		Examples     []string `json:"examples"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	tpl := &domain.PromptTemplate{
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		CreatedByID:  &userID,
	}
	if req.Examples != nil {
		raw, err := json.Marshal(req.Examples)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		tpl.Examples = datatypes.JSON(raw)
	}
	saved, err := th.templateService.Create(c.Request.Context(), tpl)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, saved)
}

func (th *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := th.templateService.List(c.Request.Context())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "template_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"templates": templates})
}

func (th *TemplateHandler) GetTemplate(c *gin.Context) {
	tpl, err := th.templateService.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, tpl)
}

func (th *TemplateHandler) UpdateTemplate(c *gin.Context) {
	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	tpl, err := th.templateService.Update(c.Request.Context(), c.Param("name"), updates)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, tpl)
}

func (th *TemplateHandler) DeleteTemplate(c *gin.Context) {
	if err := th.templateService.Delete(c.Request.Context(), c.Param("name")); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
