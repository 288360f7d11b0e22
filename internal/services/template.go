package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/localmind-ai/localmind-backend/internal/data/repos"
	"github.com/localmind-ai/localmind-backend/internal/domain"
	"github.com/localmind-ai/localmind-backend/internal/pkg/dbctx"
	"github.com/localmind-ai/localmind-backend/internal/platform/apierr"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
)

type TemplateService interface {
	Create(ctx context.Context, tpl *domain.PromptTemplate) (*domain.PromptTemplate, error)
	Get(ctx context.Context, name string) (*domain.PromptTemplate, error)
	List(ctx context.Context) ([]*domain.PromptTemplate, error)
	Update(ctx context.Context, name string, updates map[string]any) (*domain.PromptTemplate, error)
	Delete(ctx context.Context, name string) error
}

type templateService struct {
	log       *logger.Logger
	templates repos.TemplateRepo
}

func NewTemplateService(log *logger.Logger, templates repos.TemplateRepo) TemplateService {
	return &templateService{
		log:       log.With("service", "TemplateService"),
		templates: templates,
	}
}

func (ts *templateService) Create(ctx context.Context, tpl *domain.PromptTemplate) (*domain.PromptTemplate, error) {
	if tpl == nil {
		return nil, fmt.Errorf("missing template")
	}
	tpl.Name = strings.TrimSpace(tpl.Name)
	if tpl.Name == "" {
		return nil, apierr.New(http.StatusBadRequest, "invalid_template", fmt.Errorf("template name is required"))
	}
	if strings.TrimSpace(tpl.SystemPrompt) == "" {
		return nil, apierr.New(http.StatusBadRequest, "invalid_template", fmt.Errorf("system_prompt is required"))
	}
	existing, err := ts.templates.GetByName(dbctx.New(ctx), tpl.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierr.New(http.StatusConflict, "template_exists", fmt.Errorf("template %q already exists", tpl.Name))
	}
	tpl.IsActive = true
	return ts.templates.Create(dbctx.New(ctx), tpl)
}

func (ts *templateService) Get(ctx context.Context, name string) (*domain.PromptTemplate, error) {
	tpl, err := ts.templates.GetByName(dbctx.New(ctx), strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, apierr.New(http.StatusNotFound, "template_not_found", fmt.Errorf("template %q not found", name))
	}
	return tpl, nil
}

func (ts *templateService) List(ctx context.Context) ([]*domain.PromptTemplate, error) {
	return ts.templates.List(dbctx.New(ctx))
}

// Update accepts a subset of mutable fields; unrecognized keys are
// rejected so typos do not silently no-op.
func (ts *templateService) Update(ctx context.Context, name string, updates map[string]any) (*domain.PromptTemplate, error) {
	tpl, err := ts.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	for k, v := range updates {
		switch k {
		case "description", "system_prompt":
			s, ok := v.(string)
			if !ok {
				return nil, apierr.New(http.StatusBadRequest, "invalid_template", fmt.Errorf("%s must be a string", k))
			}
			fields[k] = s
		case "is_active":
			b, ok := v.(bool)
			if !ok {
				return nil, apierr.New(http.StatusBadRequest, "invalid_template", fmt.Errorf("is_active must be a boolean"))
			}
			fields[k] = b
		default:
			return nil, apierr.New(http.StatusBadRequest, "invalid_template", fmt.Errorf("unknown field %q", k))
		}
	}
	if len(fields) > 0 {
		if err := ts.templates.UpdateFields(dbctx.New(ctx), tpl.ID, fields); err != nil {
			return nil, err
		}
	}
	return ts.Get(ctx, name)
}

func (ts *templateService) Delete(ctx context.Context, name string) error {
	if _, err := ts.Get(ctx, name); err != nil {
		return err
	}
	return ts.templates.DeleteByName(dbctx.New(ctx), strings.TrimSpace(name))
}
