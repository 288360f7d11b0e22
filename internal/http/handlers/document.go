package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/localmind-ai/localmind-backend/internal/data/repos"
	"github.com/localmind-ai/localmind-backend/internal/domain"
	"github.com/localmind-ai/localmind-backend/internal/http/middleware"
	"github.com/localmind-ai/localmind-backend/internal/http/response"
	"github.com/localmind-ai/localmind-backend/internal/pkg/dbctx"
	"github.com/localmind-ai/localmind-backend/internal/rag"
)

type DocumentHandler struct {
	ragService *rag.Service
	docs       repos.DocumentRepo
}

func NewDocumentHandler(ragService *rag.Service, docs repos.DocumentRepo) *DocumentHandler {
	return &DocumentHandler{ragService: ragService, docs: docs}
}

func (dh *DocumentHandler) AddDocument(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		Title      string         `json:"title"`
		Content    string         `json:"content"`
		SourceType string         `json:"source_type"`
		SourcePath string         `json:"source_path"`
		Metadata   map[string]any `json:"metadata"`
		Tags       []string       `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_document", fmt.Errorf("title and content are required"))
		return
	}

	doc := &domain.RAGDocument{
		Title:      strings.TrimSpace(req.Title),
		Content:    req.Content,
		SourceType: req.SourceType,
		SourcePath: req.SourcePath,
		AddedByID:  &userID,
	}
	if req.Metadata != nil {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_document", err)
			return
		}
		doc.Metadata = datatypes.JSON(raw)
	}
	if req.Tags != nil {
		raw, err := json.Marshal(req.Tags)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_document", err)
			return
		}
		doc.Tags = datatypes.JSON(raw)
	}

	saved, err := dh.ragService.AddDocument(dbctx.New(c.Request.Context()), doc)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "document_create_failed", err)
		return
	}
	response.RespondCreated(c, saved)
}

func (dh *DocumentHandler) ListDocuments(c *gin.Context) {
	docs, err := dh.docs.List(dbctx.New(c.Request.Context()))
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "document_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"documents": docs})
}

func (dh *DocumentHandler) GetDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	doc, err := dh.docs.GetByID(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "document_lookup_failed", err)
		return
	}
	if doc == nil {
		response.RespondError(c, http.StatusNotFound, "document_not_found", fmt.Errorf("document %s not found", id))
		return
	}
	response.RespondOK(c, doc)
}

func (dh *DocumentHandler) DeleteDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	if err := dh.docs.Delete(dbctx.New(c.Request.Context()), id); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "document_delete_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// Search exposes the similarity scan directly, mostly for debugging which
// context a chat reply would have been grounded on.
func (dh *DocumentHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_query", fmt.Errorf("query parameter q is required"))
		return
	}
	topK := 0
	if raw := c.Query("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.RespondError(c, http.StatusBadRequest, "invalid_query", fmt.Errorf("top_k must be a positive integer"))
			return
		}
		topK = n
	}
	results, err := dh.ragService.Search(dbctx.New(c.Request.Context()), query, topK)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"results": results})
}
