package repomanager

import (
	"context"
	"database/sql"

	"github.com/ericthayer/devlog/internal/dbx"
	"github.com/ericthayer/devlog/internal/store/assets"
	"github.com/ericthayer/devlog/internal/store/casestudies"
	"github.com/ericthayer/devlog/internal/store/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	CaseStudies(db dbx.DBTX) casestudies.Repository
	Assets(db dbx.DBTX) assets.Repository
	Users(db dbx.DBTX) users.Repository
}
