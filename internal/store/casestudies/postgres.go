// Package casestudies provides the PostgreSQL-backed repository for
// synthesized case-study records.
package casestudies

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ericthayer/devlog/internal/common"
	"github.com/ericthayer/devlog/internal/dbx"
	"github.com/ericthayer/devlog/internal/models"
)

// PostgresRepository implements case-study storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts or fully replaces a study row by ID. Narrative text, tags
// and SEO metadata are all overwritten; child assets are managed separately.
func (r *PostgresRepository) Upsert(ctx context.Context, study *models.CaseStudy) error {
	tags, err := json.Marshal(study.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	seo, err := json.Marshal(study.Seo)
	if err != nil {
		return fmt.Errorf("encoding seo metadata: %w", err)
	}

	query := `
		INSERT INTO case_studies (id, user_id, title, status, date, tags, problem, approach, outcome, next_steps, seo, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (id)
		DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			date = EXCLUDED.date,
			tags = EXCLUDED.tags,
			problem = EXCLUDED.problem,
			approach = EXCLUDED.approach,
			outcome = EXCLUDED.outcome,
			next_steps = EXCLUDED.next_steps,
			seo = EXCLUDED.seo,
			updated_at = now()
			WHERE case_studies.user_id = EXCLUDED.user_id;
	`
	res, err := r.db.ExecContext(ctx, query,
		study.ID, nullableID(study.UserID), study.Title, study.Status, study.Date,
		tags, study.Problem, study.Approach, study.Outcome, study.NextSteps, seo)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorForbidden
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

const selectColumns = `id, COALESCE(user_id::text, ''), title, status, date, tags, problem, approach, outcome, next_steps, seo`

// GetByID returns one study without its assets.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.CaseStudy, error) {
	query := `SELECT ` + selectColumns + ` FROM case_studies WHERE id = $1`

	study, err := scanStudy(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return study, nil
}

// SelectAll returns every study newest-first, without assets.
func (r *PostgresRepository) SelectAll(ctx context.Context) ([]*models.CaseStudy, error) {
	query := `SELECT ` + selectColumns + ` FROM case_studies ORDER BY date DESC, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select case studies: %w", err)
	}
	defer rows.Close()

	var result []*models.CaseStudy
	for rows.Next() {
		study, err := scanStudy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, study)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus moves a study between draft, published and archived.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	query := `UPDATE case_studies SET status = $2, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Delete removes a study; assets cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM case_studies WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudy(row rowScanner) (*models.CaseStudy, error) {
	var study models.CaseStudy
	var tags, seo []byte

	if err := row.Scan(
		&study.ID, &study.UserID, &study.Title, &study.Status, &study.Date,
		&tags, &study.Problem, &study.Approach, &study.Outcome, &study.NextSteps, &seo,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tags, &study.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if err := json.Unmarshal(seo, &study.Seo); err != nil {
		return nil, fmt.Errorf("decoding seo metadata: %w", err)
	}
	study.SyncState = models.SyncSynced
	return &study, nil
}

// nullableID maps an absent owner to NULL so the FK constraint holds.
func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
