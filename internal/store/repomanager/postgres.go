// Package repomanager wires repositories to a shared database handle and
// applies embedded schema migrations at startup.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/ericthayer/devlog/internal/dbx"
	"github.com/ericthayer/devlog/internal/store/assets"
	"github.com/ericthayer/devlog/internal/store/casestudies"
	"github.com/ericthayer/devlog/internal/store/migrations"
	"github.com/ericthayer/devlog/internal/store/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) CaseStudies(db dbx.DBTX) casestudies.Repository {
	return casestudies.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Assets(db dbx.DBTX) assets.Repository {
	return assets.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}
