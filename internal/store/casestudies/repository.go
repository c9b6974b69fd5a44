package casestudies

import (
	"context"

	"github.com/ericthayer/devlog/internal/models"
)

type Repository interface {
	Upsert(ctx context.Context, study *models.CaseStudy) error
	GetByID(ctx context.Context, id string) (*models.CaseStudy, error)
	SelectAll(ctx context.Context) ([]*models.CaseStudy, error)
	UpdateStatus(ctx context.Context, id string, status models.Status) error
	Delete(ctx context.Context, id string) error
}
