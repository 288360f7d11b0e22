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

type SessionRepo interface {
	Create(dbc dbctx.Context, session *domain.ChatSession) (*domain.ChatSession, error)
	// GetForUser resolves a session id scoped to its owner; a miss (wrong
	// owner, inactive, or nonexistent) returns (nil, nil).
	GetForUser(dbc dbctx.Context, id, userID uuid.UUID) (*domain.ChatSession, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*domain.ChatSession, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Deactivate(dbc dbctx.Context, id uuid.UUID) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: log.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, session *domain.ChatSession) (*domain.ChatSession, error) {
	if session == nil {
		return nil, fmt.Errorf("missing session")
	}
	if session.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Title == "" {
		session.Title = domain.DefaultSessionTitle
	}
	if len(session.Settings) == 0 {
		session.Settings = []byte("{}")
	}
	session.IsActive = true
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *sessionRepo) GetForUser(dbc dbctx.Context, id, userID uuid.UUID) (*domain.ChatSession, error) {
	if id == uuid.Nil || userID == uuid.Nil {
		return nil, fmt.Errorf("missing session_id or user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out domain.ChatSession
	if err := txx.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true).
		First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*domain.ChatSession, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*domain.ChatSession
	if err := txx.WithContext(dbc.Ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("updated_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing session_id")
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
		Model(&domain.ChatSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *sessionRepo) Deactivate(dbc dbctx.Context, id uuid.UUID) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{"is_active": false})
}
