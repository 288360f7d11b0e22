package repos

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localmind-ai/localmind-backend/internal/domain"
	"github.com/localmind-ai/localmind-backend/internal/pkg/dbctx"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
)

type TemplateRepo interface {
	Create(dbc dbctx.Context, tpl *domain.PromptTemplate) (*domain.PromptTemplate, error)
	GetByName(dbc dbctx.Context, name string) (*domain.PromptTemplate, error)
	// GetActiveByName is the lookup the conversation loop uses; inactive
	// templates are invisible to it.
	GetActiveByName(dbc dbctx.Context, name string) (*domain.PromptTemplate, error)
	List(dbc dbctx.Context) ([]*domain.PromptTemplate, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteByName(dbc dbctx.Context, name string) error
}

type templateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTemplateRepo(db *gorm.DB, log *logger.Logger) TemplateRepo {
	return &templateRepo{db: db, log: log.With("repo", "TemplateRepo")}
}

func (r *templateRepo) Create(dbc dbctx.Context, tpl *domain.PromptTemplate) (*domain.PromptTemplate, error) {
	if tpl == nil {
		return nil, fmt.Errorf("missing template")
	}
	if tpl.Name == "" {
		return nil, fmt.Errorf("missing template name")
	}
	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
	}
	if len(tpl.Examples) == 0 {
		tpl.Examples = []byte("[]")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(tpl).Error; err != nil {
		return nil, err
	}
	return tpl, nil
}

func (r *templateRepo) GetByName(dbc dbctx.Context, name string) (*domain.PromptTemplate, error) {
	return r.getByName(dbc, name, false)
}

func (r *templateRepo) GetActiveByName(dbc dbctx.Context, name string) (*domain.PromptTemplate, error) {
	return r.getByName(dbc, name, true)
}

func (r *templateRepo) getByName(dbc dbctx.Context, name string, activeOnly bool) (*domain.PromptTemplate, error) {
	if name == "" {
		return nil, fmt.Errorf("missing template name")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).Where("name = ?", name)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out domain.PromptTemplate
	if err := q.First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *templateRepo) List(dbc dbctx.Context) ([]*domain.PromptTemplate, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*domain.PromptTemplate
	if err := txx.WithContext(dbc.Ctx).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *templateRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing template_id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&domain.PromptTemplate{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *templateRepo) DeleteByName(dbc dbctx.Context, name string) error {
	if name == "" {
		return fmt.Errorf("missing template name")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("name = ?", name).
		Delete(&domain.PromptTemplate{}).Error
}
