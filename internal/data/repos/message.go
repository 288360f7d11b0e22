package repos

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localmind-ai/localmind-backend/internal/domain"
	"github.com/localmind-ai/localmind-backend/internal/pkg/dbctx"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, msg *domain.Message) (*domain.Message, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*domain.Message, error)
	CountBySession(dbc dbctx.Context, sessionID uuid.UUID) (int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, msg *domain.Message) (*domain.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("missing message")
	}
	if msg.SessionID == uuid.Nil {
		return nil, fmt.Errorf("missing session_id")
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if len(msg.Metadata) == 0 {
		msg.Metadata = []byte("{}")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *messageRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*domain.Message, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*domain.Message
	if err := txx.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) CountBySession(dbc dbctx.Context, sessionID uuid.UUID) (int64, error) {
	if sessionID == uuid.Nil {
		return 0, fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&domain.Message{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
