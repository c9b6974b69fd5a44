package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ericthayer/devlog/internal/blob"
	"github.com/ericthayer/devlog/internal/common"
	"github.com/ericthayer/devlog/internal/logging"
	"github.com/ericthayer/devlog/internal/models"
	"github.com/ericthayer/devlog/internal/pipeline"
	"github.com/ericthayer/devlog/internal/server/auth"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// validate covers model fields bound without binding tags, like a study
// status arriving through the editor payload.
var validate = validator.New()

// UserService is the account surface the handlers need.
type UserService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	SetRole(ctx context.Context, actor *auth.Claims, targetID string, role models.Role) error
	Delete(ctx context.Context, actor *auth.Claims, targetID string) error
	List(ctx context.Context) ([]*models.User, error)
}

// Pipeline is the ingestion and synthesis surface.
type Pipeline interface {
	Ingest(ctx context.Context, role models.Role, files []pipeline.File, opts pipeline.Options) ([]models.Asset, error)
	Synthesize(ctx context.Context, userID string, role models.Role, contextHint string, opts pipeline.Options) (models.CaseStudy, error)
	Cancel()
	Progress() pipeline.Progress
	StagedAssets() []models.Asset
	RemoveAsset(id string) error
	ClearAssets()
}

// StudyStore is the persistence surface.
type StudyStore interface {
	Save(ctx context.Context, study models.CaseStudy) (models.CaseStudy, error)
	List(ctx context.Context) ([]models.CaseStudy, error)
	Get(ctx context.Context, id string) (models.CaseStudy, error)
	SetStatus(ctx context.Context, id string, status models.Status) error
	Delete(ctx context.Context, id string) error
}

// LocalState is the working-state mirror kept alongside the database.
type LocalState interface {
	Preferences() (models.Preferences, error)
	PutPreferences(models.Preferences) error
	PutCaseStudies([]models.CaseStudy) error
	CaseStudies() ([]models.CaseStudy, error)
	Clear() error
}

// BlobReader resolves transient preview URLs for serving.
type BlobReader interface {
	Get(url string) ([]byte, string, error)
}

type Handlers struct {
	users    UserService
	pipeline Pipeline
	studies  StudyStore
	local    LocalState
	blobs    BlobReader
	logger   logging.Logger
}

func NewHandlers(users UserService, p Pipeline, studies StudyStore, local LocalState, blobs BlobReader, logger logging.Logger) *Handlers {
	return &Handlers{
		users:    users,
		pipeline: p,
		studies:  studies,
		local:    local,
		blobs:    blobs,
		logger:   logger,
	}
}

func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail maps domain errors onto HTTP statuses.
func (h *Handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, common.ErrorUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, common.ErrorForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, common.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "another operation is running"})
	case errors.Is(err, common.ErrCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": "operation cancelled"})
	case errors.Is(err, common.ErrNoStagedAssets):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no staged assets"})
	default:
		h.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func claimsFromContext(c *gin.Context) *auth.Claims {
	return &auth.Claims{
		UserID: auth.UserIDFromContext(c),
		Role:   auth.RoleFromContext(c),
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *Handlers) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handlers) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *Handlers) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	c.JSON(http.StatusOK, gin.H{"userId": claims.UserID, "role": claims.Role})
}

// UploadAssets ingests a multipart batch. Form fields "enhanced" and
// "autoRename" tune the run; every part named "files" is one upload.
func (h *Handlers) UploadAssets(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	uploads := form.File["files"]
	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files"})
		return
	}

	files := make([]pipeline.File, 0, len(uploads))
	for _, u := range uploads {
		f, err := u.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload: " + u.Filename})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload: " + u.Filename})
			return
		}
		files = append(files, pipeline.File{
			Name:     u.Filename,
			Content:  content,
			MimeType: u.Header.Get("Content-Type"),
		})
	}

	// The stored preference decides auto rename unless the form overrides it.
	autoRename := models.DefaultPreferences().AutoRename
	if prefs, err := h.local.Preferences(); err == nil {
		autoRename = prefs.AutoRename
	}

	opts := pipeline.Options{
		Enhanced:   formBool(form.Value, "enhanced"),
		AutoRename: formBool(form.Value, "autoRename", autoRename),
	}

	batch, err := h.pipeline.Ingest(c.Request.Context(), auth.RoleFromContext(c), files, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": batch})
}

func formBool(values map[string][]string, key string, def ...bool) bool {
	if v, ok := values[key]; ok && len(v) > 0 {
		if b, err := strconv.ParseBool(v[0]); err == nil {
			return b
		}
	}
	return len(def) > 0 && def[0]
}

func (h *Handlers) StagedAssets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"assets": h.pipeline.StagedAssets()})
}

func (h *Handlers) RemoveAsset(c *gin.Context) {
	if err := h.pipeline.RemoveAsset(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) ClearAssets(c *gin.Context) {
	h.pipeline.ClearAssets()
	c.Status(http.StatusNoContent)
}

type synthesizeRequest struct {
	ContextHint string `json:"contextHint" binding:"max=2000"`
	Enhanced    bool   `json:"enhanced"`
}

func (h *Handlers) Synthesize(c *gin.Context) {
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	study, err := h.pipeline.Synthesize(c.Request.Context(), auth.UserIDFromContext(c), auth.RoleFromContext(c), req.ContextHint, pipeline.Options{Enhanced: req.Enhanced})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.refreshLocalState(c)
	c.JSON(http.StatusOK, study)
}

func (h *Handlers) CancelPipeline(c *gin.Context) {
	h.pipeline.Cancel()
	c.Status(http.StatusAccepted)
}

func (h *Handlers) PipelineProgress(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Progress())
}

// ListStudies returns the library newest-first. Readers only see published
// studies. When the database is unreachable the last local snapshot serves
// as a stale fallback.
func (h *Handlers) ListStudies(c *gin.Context) {
	studies, err := h.studies.List(c.Request.Context())
	if err != nil {
		cached, cacheErr := h.local.CaseStudies()
		if cacheErr != nil || cached == nil {
			h.fail(c, err)
			return
		}
		h.logger.Warn(c.Request.Context(), "serving studies from snapshot", "error", err)
		studies = cached
	}

	if !auth.RoleFromContext(c).CanPublish() {
		published := studies[:0]
		for _, s := range studies {
			if s.Status == models.StatusPublished {
				published = append(published, s)
			}
		}
		studies = published
	} else if err := h.local.PutCaseStudies(studies); err != nil {
		h.logger.Warn(c.Request.Context(), "snapshot write failed", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"studies": studies})
}

func (h *Handlers) GetStudy(c *gin.Context) {
	study, err := h.studies.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if study.Status != models.StatusPublished && !auth.RoleFromContext(c).CanPublish() {
		h.fail(c, common.ErrorForbidden)
		return
	}
	c.JSON(http.StatusOK, study)
}

// SaveStudy persists editor changes to one study. The body carries the full
// study; the path parameter wins over any ID in the body.
func (h *Handlers) SaveStudy(c *gin.Context) {
	var study models.CaseStudy
	if err := c.ShouldBindJSON(&study); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Var(study.Status, "omitempty,oneof=draft published archived"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	study.ID = c.Param("id")
	study.UserID = auth.UserIDFromContext(c)

	saved, err := h.studies.Save(c.Request.Context(), study)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.refreshLocalState(c)
	c.JSON(http.StatusOK, saved)
}

func (h *Handlers) PublishStudy(c *gin.Context) {
	if err := h.studies.SetStatus(c.Request.Context(), c.Param("id"), models.StatusPublished); err != nil {
		h.fail(c, err)
		return
	}
	h.refreshLocalState(c)
	c.Status(http.StatusNoContent)
}

func (h *Handlers) DeleteStudy(c *gin.Context) {
	if err := h.studies.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	h.refreshLocalState(c)
	c.Status(http.StatusNoContent)
}

// refreshLocalState mirrors the current library into the local snapshot.
// Failures degrade to a warning; the database remains the source of truth.
func (h *Handlers) refreshLocalState(c *gin.Context) {
	ctx := c.Request.Context()
	studies, err := h.studies.List(ctx)
	if err == nil {
		err = h.local.PutCaseStudies(studies)
	}
	if err != nil {
		h.logger.Warn(ctx, "snapshot refresh failed", "error", err)
	}
}

func (h *Handlers) GetPreferences(c *gin.Context) {
	p, err := h.local.Preferences()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) PutPreferences(c *gin.Context) {
	var p models.Preferences
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.local.PutPreferences(p); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ServeBlob streams a transient preview payload.
func (h *Handlers) ServeBlob(c *gin.Context) {
	data, contentType, err := h.blobs.Get(blob.Scheme + c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handlers) ListUsers(c *gin.Context) {
	list, err := h.users.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

type roleRequest struct {
	Role models.Role `json:"role" binding:"required,oneof=reader publisher super_admin"`
}

func (h *Handlers) SetUserRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.users.SetRole(c.Request.Context(), claimsFromContext(c), c.Param("id"), req.Role); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// WipeLocalState drops the snapshot cache, preferences included. The
// database is untouched; the next library read rebuilds the mirror.
func (h *Handlers) WipeLocalState(c *gin.Context) {
	if err := h.local.Clear(); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
