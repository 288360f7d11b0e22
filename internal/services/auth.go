package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localmind-ai/localmind-backend/internal/data/repos"
	"github.com/localmind-ai/localmind-backend/internal/domain"
	"github.com/localmind-ai/localmind-backend/internal/pkg/dbctx"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
)

const maxUsernameLen = 150

// AuthService implements login-or-create identity: presenting a username is
// sufficient to become that user. This is deliberate for a trusted-network
// self-hosted deployment; there are no passwords anywhere in the system.
type AuthService interface {
	Login(ctx context.Context, username string) (string, *domain.User, error)
	ParseToken(tokenString string) (uuid.UUID, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
) AuthService {
	return &authService{
		db:           db,
		log:          log.With("service", "AuthService"),
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

func (as *authService) Login(ctx context.Context, username string) (string, *domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", nil, fmt.Errorf("username is required")
	}
	if len(username) > maxUsernameLen {
		return "", nil, fmt.Errorf("username too long")
	}

	var user *domain.User
	if err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		found, err := as.userRepo.GetByUsername(dbc, username)
		if err != nil {
			return fmt.Errorf("lookup user: %w", err)
		}
		if found == nil {
			found, err = as.userRepo.Create(dbc, &domain.User{
				ID:       uuid.New(),
				Username: username,
			})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			as.log.Info("created user on first login", "username", username)
		}
		if err := as.userRepo.TouchLastLogin(dbc, found.ID); err != nil {
			return fmt.Errorf("touch last_login: %w", err)
		}
		user = found
		return nil
	}); err != nil {
		return "", nil, err
	}

	token, err := as.generateAccessToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("generate access token: %w", err)
	}
	return token, user, nil
}

func (as *authService) generateAccessToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID.String(),
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(as.accessTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

// ParseToken validates the signature and expiry and returns the user id.
func (as *authService) ParseToken(tokenString string) (uuid.UUID, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return uuid.Nil, fmt.Errorf("missing token")
	}
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token subject")
	}
	return userID, nil
}

func (as *authService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return as.userRepo.GetByID(dbctx.New(ctx), id)
}

func (as *authService) GetAccessTTL() time.Duration { return as.accessTTL }
