// Package assets provides the PostgreSQL-backed repository for the artifact
// rows attached to a case study. Rows are always replaced wholesale: a save
// deletes the study's assets and reinserts the current snapshot in order.
package assets

import (
	"context"
	"fmt"

	"github.com/ericthayer/devlog/internal/dbx"
	"github.com/ericthayer/devlog/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert adds one asset row at the given position within its study.
func (r *PostgresRepository) Insert(ctx context.Context, caseStudyID string, position int, asset *models.Asset) error {
	query := `
		INSERT INTO assets (id, case_study_id, original_name, ai_name, type, topic, context, variant, version, file_type, url, size, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		asset.ID, caseStudyID, asset.OriginalName, asset.AIName,
		asset.Type, asset.Topic, asset.Context, asset.Variant, asset.Version,
		asset.FileType, asset.URL, asset.Size, position)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SelectByCaseStudy returns a study's assets in stored order.
func (r *PostgresRepository) SelectByCaseStudy(ctx context.Context, caseStudyID string) ([]models.Asset, error) {
	query := `
		SELECT id, original_name, ai_name, type, topic, context, variant, version, file_type, url, size
		FROM assets WHERE case_study_id = $1 ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query, caseStudyID)
	if err != nil {
		return nil, fmt.Errorf("failed to select assets: %w", err)
	}
	defer rows.Close()

	var result []models.Asset
	for rows.Next() {
		var item models.Asset
		if err := rows.Scan(
			&item.ID, &item.OriginalName, &item.AIName,
			&item.Type, &item.Topic, &item.Context, &item.Variant, &item.Version,
			&item.FileType, &item.URL, &item.Size,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteByCaseStudy removes every asset row of a study.
func (r *PostgresRepository) DeleteByCaseStudy(ctx context.Context, caseStudyID string) error {
	query := `DELETE FROM assets WHERE case_study_id = $1`

	if _, err := r.db.ExecContext(ctx, query, caseStudyID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
