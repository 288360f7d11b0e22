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

type UserRepo interface {
	Create(dbc dbctx.Context, user *domain.User) (*domain.User, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(dbc dbctx.Context, username string) (*domain.User, error)
	TouchLastLogin(dbc dbctx.Context, id uuid.UUID) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, log *logger.Logger) UserRepo {
	return &userRepo{db: db, log: log.With("repo", "UserRepo")}
}

func (r *userRepo) Create(dbc dbctx.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, fmt.Errorf("missing user")
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.User, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out domain.User
	if err := txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) GetByUsername(dbc dbctx.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, fmt.Errorf("missing username")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out domain.User
	if err := txx.WithContext(dbc.Ctx).
		Where("username = ?", username).
		First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) TouchLastLogin(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	now := time.Now().UTC()
	return txx.WithContext(dbc.Ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("last_login", now).Error
}
