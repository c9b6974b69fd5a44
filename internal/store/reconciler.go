// Package store reconciles locally assembled case studies with durable
// storage: local record identifiers are exchanged for server-assigned ones
// and transient in-memory asset URLs are promoted to object-storage URLs.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericthayer/devlog/internal/blob"
	"github.com/ericthayer/devlog/internal/common"
	"github.com/ericthayer/devlog/internal/dbx"
	"github.com/ericthayer/devlog/internal/logging"
	"github.com/ericthayer/devlog/internal/models"
	"github.com/ericthayer/devlog/internal/store/repomanager"
	"github.com/google/uuid"
)

// Uploader stores a payload under key and returns its durable public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// BlobResolver resolves and releases transient in-memory URLs.
type BlobResolver interface {
	Get(url string) ([]byte, string, error)
	Revoke(url string)
}

// Reconciler persists case studies. A save is all-or-nothing: the study row,
// the asset rows and every required upload either all land or the record
// keeps its previous durable state.
type Reconciler struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	uploader Uploader
	blobs    BlobResolver
	logger   logging.Logger
}

func NewReconciler(db *sql.DB, repos repomanager.RepositoryManager, uploader Uploader, blobs BlobResolver, logger logging.Logger) *Reconciler {
	return &Reconciler{
		db:       db,
		repos:    repos,
		uploader: uploader,
		blobs:    blobs,
		logger:   logger,
	}
}

// Save writes study to the database. A study carrying a local identifier is
// inserted under a fresh server one; a study carrying a server identifier is
// updated in place. Child assets are replaced wholesale in staged order, and
// any asset still referencing process memory is uploaded first; an upload
// failure aborts the whole save. The returned study is the durable form:
// server identifiers, durable URLs, sync state set.
func (r *Reconciler) Save(ctx context.Context, study models.CaseStudy) (models.CaseStudy, error) {
	if !common.IsServerID(study.ID) {
		study.ID = uuid.NewString()
	}

	var promoted []string
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := r.repos.CaseStudies(tx).Upsert(ctx, &study); err != nil {
			return err
		}

		assetRepo := r.repos.Assets(tx)
		if err := assetRepo.DeleteByCaseStudy(ctx, study.ID); err != nil {
			return err
		}

		for i := range study.Artifacts {
			a := &study.Artifacts[i]
			if !common.IsServerID(a.ID) {
				a.ID = uuid.NewString()
			}

			if blob.IsTransient(a.URL) {
				transient := a.URL
				data, contentType, err := r.blobs.Get(transient)
				if err != nil {
					return fmt.Errorf("resolving %s: %w", a.AIName, err)
				}
				url, err := r.uploader.Upload(ctx, blob.ObjectKey(study.ID, a.AIName), data, contentType)
				if err != nil {
					return fmt.Errorf("promoting %s: %w", a.AIName, err)
				}
				a.URL = url
				promoted = append(promoted, transient)
			}

			if err := assetRepo.Insert(ctx, study.ID, i, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.CaseStudy{}, fmt.Errorf("saving case study: %w", err)
	}

	for _, url := range promoted {
		r.blobs.Revoke(url)
	}

	study.SyncState = models.SyncSynced
	r.logger.Info(ctx, "case study saved", "id", study.ID, "assets", len(study.Artifacts))
	return study, nil
}

// List returns every stored study newest-first with its assets attached.
func (r *Reconciler) List(ctx context.Context) ([]models.CaseStudy, error) {
	studies, err := r.repos.CaseStudies(r.db).SelectAll(ctx)
	if err != nil {
		return nil, err
	}

	assetRepo := r.repos.Assets(r.db)
	result := make([]models.CaseStudy, 0, len(studies))
	for _, s := range studies {
		artifacts, err := assetRepo.SelectByCaseStudy(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.Artifacts = artifacts
		result = append(result, *s)
	}
	return result, nil
}

// Get returns one study with its assets.
func (r *Reconciler) Get(ctx context.Context, id string) (models.CaseStudy, error) {
	study, err := r.repos.CaseStudies(r.db).GetByID(ctx, id)
	if err != nil {
		return models.CaseStudy{}, err
	}
	artifacts, err := r.repos.Assets(r.db).SelectByCaseStudy(ctx, id)
	if err != nil {
		return models.CaseStudy{}, err
	}
	study.Artifacts = artifacts
	return *study, nil
}

// SetStatus moves a stored study to the given publication status.
func (r *Reconciler) SetStatus(ctx context.Context, id string, status models.Status) error {
	return r.repos.CaseStudies(r.db).UpdateStatus(ctx, id, status)
}

// Delete removes a stored study and its assets.
func (r *Reconciler) Delete(ctx context.Context, id string) error {
	return r.repos.CaseStudies(r.db).Delete(ctx, id)
}
