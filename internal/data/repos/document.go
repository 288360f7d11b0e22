package repos

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localmind-ai/localmind-backend/internal/domain"
	"github.com/localmind-ai/localmind-backend/internal/pkg/dbctx"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
)

type DocumentRepo interface {
	Create(dbc dbctx.Context, doc *domain.RAGDocument) (*domain.RAGDocument, error)
	// ListActive returns every active document in insertion order. The
	// similarity scan reads the whole corpus on purpose.
	ListActive(dbc dbctx.Context) ([]*domain.RAGDocument, error)
	List(dbc dbctx.Context) ([]*domain.RAGDocument, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.RAGDocument, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, log *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: log.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(dbc dbctx.Context, doc *domain.RAGDocument) (*domain.RAGDocument, error) {
	if doc == nil {
		return nil, fmt.Errorf("missing document")
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.SourceType == "" {
		doc.SourceType = domain.SourceText
	}
	if len(doc.Metadata) == 0 {
		doc.Metadata = []byte("{}")
	}
	if len(doc.Tags) == 0 {
		doc.Tags = []byte("[]")
	}
	doc.IsActive = true
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *documentRepo) ListActive(dbc dbctx.Context) ([]*domain.RAGDocument, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*domain.RAGDocument
	if err := txx.WithContext(dbc.Ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) List(dbc dbctx.Context) ([]*domain.RAGDocument, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*domain.RAGDocument
	if err := txx.WithContext(dbc.Ctx).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.RAGDocument, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing document_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out domain.RAGDocument
	if err := txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&out).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *documentRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing document_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&domain.RAGDocument{}).Error
}
