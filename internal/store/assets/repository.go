package assets

import (
	"context"

	"github.com/ericthayer/devlog/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, caseStudyID string, position int, asset *models.Asset) error
	SelectByCaseStudy(ctx context.Context, caseStudyID string) ([]models.Asset, error)
	DeleteByCaseStudy(ctx context.Context, caseStudyID string) error
}
