// Package users implements account registration, login and role management.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericthayer/devlog/internal/common"
	"github.com/ericthayer/devlog/internal/models"
	"github.com/ericthayer/devlog/internal/server/auth"
	"github.com/ericthayer/devlog/internal/server/config"
	"github.com/ericthayer/devlog/internal/store/repomanager"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	db                          *sql.DB
	repos                       repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config) *Service {
	return &Service{
		db:                          db,
		repos:                       repos,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// Register creates an account. The very first account becomes the super
// admin; everyone after starts as a reader until promoted.
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	repo := s.repos.Users(s.db)

	count, err := repo.Count(ctx)
	if err != nil {
		return nil, common.ErrorInternal
	}
	role := models.RoleReader
	if count == 0 {
		role = models.RoleSuperAdmin
	}

	user, err := repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// Login checks credentials and returns a signed access token with the user.
// Unknown accounts and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil, common.ErrorUnauthorized
		}
		return "", nil, common.ErrorInternal
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, user.Role, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", nil, common.ErrorInternal
	}
	return token, user, nil
}

// SetRole changes another account's role. Only a super admin may do this,
// and no one can change their own role.
func (s *Service) SetRole(ctx context.Context, actor *auth.Claims, targetID string, role models.Role) error {
	if !actor.Role.CanManageUsers() {
		return common.ErrorForbidden
	}
	if actor.UserID == targetID {
		return common.ErrorForbidden
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	return s.repos.Users(s.db).UpdateRole(ctx, targetID, role)
}

// Delete removes an account. Only a super admin may do this, and not to
// their own account.
func (s *Service) Delete(ctx context.Context, actor *auth.Claims, targetID string) error {
	if !actor.Role.CanManageUsers() {
		return common.ErrorForbidden
	}
	if actor.UserID == targetID {
		return common.ErrorForbidden
	}
	return s.repos.Users(s.db).Delete(ctx, targetID)
}

// List returns every account, for the admin screen.
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	return s.repos.Users(s.db).SelectAll(ctx)
}
