package users

import (
	"context"

	"github.com/ericthayer/devlog/internal/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
	Delete(ctx context.Context, id string) error
	SelectAll(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}
