package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ericthayer/devlog/internal/common"
	"github.com/ericthayer/devlog/internal/logging"
	"github.com/ericthayer/devlog/internal/models"
	"github.com/ericthayer/devlog/internal/pipeline"
	"github.com/ericthayer/devlog/internal/server/auth"
	"github.com/ericthayer/devlog/internal/server/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	registered *models.User
	setRoleErr error
	deletedID  string
}

func (f *fakeUsers) Register(ctx context.Context, email, password string) (*models.User, error) {
	f.registered = &models.User{ID: "u-1", Email: email, Role: models.RoleSuperAdmin}
	return f.registered, nil
}

func (f *fakeUsers) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	if password != "correct-horse" {
		return "", nil, common.ErrorUnauthorized
	}
	return "token", &models.User{ID: "u-1", Email: email, Role: models.RolePublisher}, nil
}

func (f *fakeUsers) SetRole(ctx context.Context, actor *auth.Claims, targetID string, role models.Role) error {
	return f.setRoleErr
}

func (f *fakeUsers) Delete(ctx context.Context, actor *auth.Claims, targetID string) error {
	if !actor.Role.CanManageUsers() {
		return common.ErrorForbidden
	}
	f.deletedID = targetID
	return nil
}

func (f *fakeUsers) List(ctx context.Context) ([]*models.User, error) {
	return []*models.User{{ID: "u-1", Email: "a@example.com", Role: models.RoleSuperAdmin}}, nil
}

type fakePipeline struct {
	ingested    []pipeline.File
	ingestOpts  pipeline.Options
	ingestErr   error
	synthErr    error
	synthUserID string
	staged      []models.Asset
	cancelled   bool
	removedID   string
	progress    pipeline.Progress
}

func (f *fakePipeline) Ingest(ctx context.Context, role models.Role, files []pipeline.File, opts pipeline.Options) ([]models.Asset, error) {
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	f.ingested = files
	f.ingestOpts = opts
	assets := make([]models.Asset, len(files))
	for i, file := range files {
		assets[i] = models.Asset{ID: "a", OriginalName: file.Name}
	}
	return assets, nil
}

func (f *fakePipeline) Synthesize(ctx context.Context, userID string, role models.Role, contextHint string, opts pipeline.Options) (models.CaseStudy, error) {
	if f.synthErr != nil {
		return models.CaseStudy{}, f.synthErr
	}
	f.synthUserID = userID
	return models.CaseStudy{ID: "cs-1", UserID: userID, Title: "Auth Revamp"}, nil
}

func (f *fakePipeline) Cancel()                      { f.cancelled = true }
func (f *fakePipeline) Progress() pipeline.Progress  { return f.progress }
func (f *fakePipeline) StagedAssets() []models.Asset { return f.staged }
func (f *fakePipeline) RemoveAsset(id string) error  { f.removedID = id; return nil }
func (f *fakePipeline) ClearAssets()                 { f.staged = nil }

type fakeStudies struct {
	studies  []models.CaseStudy
	saved    *models.CaseStudy
	status   models.Status
	statusID string
	listErr  error
}

func (f *fakeStudies) Save(ctx context.Context, study models.CaseStudy) (models.CaseStudy, error) {
	study.SyncState = models.SyncSynced
	f.saved = &study
	return study, nil
}

func (f *fakeStudies) List(ctx context.Context) ([]models.CaseStudy, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.CaseStudy(nil), f.studies...), nil
}

func (f *fakeStudies) Get(ctx context.Context, id string) (models.CaseStudy, error) {
	for _, s := range f.studies {
		if s.ID == id {
			return s, nil
		}
	}
	return models.CaseStudy{}, common.ErrorNotFound
}

func (f *fakeStudies) SetStatus(ctx context.Context, id string, status models.Status) error {
	f.statusID, f.status = id, status
	return nil
}

func (f *fakeStudies) Delete(ctx context.Context, id string) error { return nil }

type fakeLocal struct {
	prefs   models.Preferences
	cached  []models.CaseStudy
	cleared bool
}

func (f *fakeLocal) Preferences() (models.Preferences, error)  { return f.prefs, nil }
func (f *fakeLocal) PutPreferences(p models.Preferences) error { f.prefs = p; return nil }
func (f *fakeLocal) PutCaseStudies(s []models.CaseStudy) error { f.cached = s; return nil }
func (f *fakeLocal) CaseStudies() ([]models.CaseStudy, error)  { return f.cached, nil }
func (f *fakeLocal) Clear() error                              { f.cleared = true; return nil }

type fakeBlobs struct{}

func (fakeBlobs) Get(url string) ([]byte, string, error) {
	if strings.HasSuffix(url, "known") {
		return []byte("img-bytes"), "image/png", nil
	}
	return nil, "", common.ErrorNotFound
}

type rig struct {
	router   *gin.Engine
	users    *fakeUsers
	pipeline *fakePipeline
	studies  *fakeStudies
	local    *fakeLocal
	cfg      *config.Config
}

func newRig(t *testing.T) *rig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := &rig{
		users:    &fakeUsers{},
		pipeline: &fakePipeline{progress: pipeline.Progress{Phase: pipeline.PhaseIdle}},
		studies:  &fakeStudies{},
		local:    &fakeLocal{prefs: models.DefaultPreferences()},
		cfg:      &config.Config{SecretKey: "test-secret", CORSOrigin: "http://localhost:5173"},
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := NewHandlers(r.users, r.pipeline, r.studies, r.local, fakeBlobs{}, logger)
	r.router = NewRouter(r.cfg, h)
	return r
}

func (r *rig) do(t *testing.T, method, path string, body io.Reader, role models.Role, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if role != "" {
		token, err := auth.GenerateToken("u-1", role, []byte(r.cfg.SecretKey), time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.router.ServeHTTP(w, req)
	return w
}

func TestRegister_RejectsInvalidPayload(t *testing.T) {
	r := newRig(t)
	w := r.do(t, http.MethodPost, "/api/register",
		strings.NewReader(`{"email":"not-an-email","password":"longenough"}`), "", "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = r.do(t, http.MethodPost, "/api/register",
		strings.NewReader(`{"email":"a@example.com","password":"short"}`), "", "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	r := newRig(t)

	w := r.do(t, http.MethodPost, "/api/register",
		strings.NewReader(`{"email":"a@example.com","password":"correct-horse"}`), "", "application/json")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = r.do(t, http.MethodPost, "/api/login",
		strings.NewReader(`{"email":"a@example.com","password":"wrong-password"}`), "", "application/json")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = r.do(t, http.MethodPost, "/api/login",
		strings.NewReader(`{"email":"a@example.com","password":"correct-horse"}`), "", "application/json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token"`)
}

func TestUploadAssets(t *testing.T) {
	r := newRig(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "login.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("img"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("enhanced", "true"))
	require.NoError(t, mw.Close())

	w := r.do(t, http.MethodPost, "/api/assets", &buf, models.RolePublisher, mw.FormDataContentType())
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, r.pipeline.ingested, 1)
	assert.Equal(t, "login.png", r.pipeline.ingested[0].Name)
	assert.Equal(t, []byte("img"), r.pipeline.ingested[0].Content)
}

func TestUploadAssets_ReaderForbidden(t *testing.T) {
	r := newRig(t)
	w := r.do(t, http.MethodPost, "/api/assets", strings.NewReader(""), models.RoleReader, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUploadAssets_BusyConflict(t *testing.T) {
	r := newRig(t)
	r.pipeline.ingestErr = common.ErrBusy

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("files", "a.md")
	part.Write([]byte("x"))
	mw.Close()

	w := r.do(t, http.MethodPost, "/api/assets", &buf, models.RolePublisher, mw.FormDataContentType())
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSynthesize_NoStagedAssets(t *testing.T) {
	r := newRig(t)
	r.pipeline.synthErr = common.ErrNoStagedAssets

	w := r.do(t, http.MethodPost, "/api/synthesize",
		strings.NewReader(`{"contextHint":"auth work"}`), models.RolePublisher, "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSynthesize_PassesAuthenticatedUser(t *testing.T) {
	r := newRig(t)

	w := r.do(t, http.MethodPost, "/api/synthesize",
		strings.NewReader(`{"contextHint":""}`), models.RolePublisher, "application/json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", r.pipeline.synthUserID, "the study is owned by the caller")
}

func TestUploadAssets_AutoRenameDefaultsFromPreferences(t *testing.T) {
	r := newRig(t)
	r.local.prefs.AutoRename = false

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "a.md")
	require.NoError(t, err)
	_, err = part.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := r.do(t, http.MethodPost, "/api/assets", &buf, models.RolePublisher, mw.FormDataContentType())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, r.pipeline.ingestOpts.AutoRename, "stored preference applies when the form is silent")

	buf.Reset()
	mw = multipart.NewWriter(&buf)
	part, err = mw.CreateFormFile("files", "b.md")
	require.NoError(t, err)
	_, err = part.Write([]byte("y"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("autoRename", "true"))
	require.NoError(t, mw.Close())

	w = r.do(t, http.MethodPost, "/api/assets", &buf, models.RolePublisher, mw.FormDataContentType())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, r.pipeline.ingestOpts.AutoRename, "an explicit form value wins")
}

func TestSynthesize_RefreshesSnapshot(t *testing.T) {
	r := newRig(t)
	r.studies.studies = []models.CaseStudy{{ID: "cs-1", Status: models.StatusDraft}}

	w := r.do(t, http.MethodPost, "/api/synthesize",
		strings.NewReader(`{"contextHint":""}`), models.RolePublisher, "application/json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, r.local.cached, 1)
}

func TestListStudies_ReaderSeesOnlyPublished(t *testing.T) {
	r := newRig(t)
	r.studies.studies = []models.CaseStudy{
		{ID: "cs-1", Status: models.StatusPublished},
		{ID: "cs-2", Status: models.StatusDraft},
	}

	w := r.do(t, http.MethodGet, "/api/studies", nil, models.RoleReader, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Studies []models.CaseStudy `json:"studies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Studies, 1)
	assert.Equal(t, "cs-1", resp.Studies[0].ID)

	w = r.do(t, http.MethodGet, "/api/studies", nil, models.RolePublisher, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Studies, 2)
}

func TestSaveStudy_PathIDWins(t *testing.T) {
	r := newRig(t)

	w := r.do(t, http.MethodPut, "/api/studies/cs-7",
		strings.NewReader(`{"id":"spoofed","title":"Edited"}`), models.RolePublisher, "application/json")
	assert.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, r.studies.saved)
	assert.Equal(t, "cs-7", r.studies.saved.ID)
	assert.Equal(t, "u-1", r.studies.saved.UserID)
}

func TestPublishStudy(t *testing.T) {
	r := newRig(t)

	w := r.do(t, http.MethodPost, "/api/studies/cs-1/publish", nil, models.RolePublisher, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "cs-1", r.studies.statusID)
	assert.Equal(t, models.StatusPublished, r.studies.status)
}

func TestPreferencesRoundTrip(t *testing.T) {
	r := newRig(t)

	w := r.do(t, http.MethodPut, "/api/preferences",
		strings.NewReader(`{"theme":"dark","autoRename":false,"exportFormat":"json"}`), models.RolePublisher, "application/json")
	assert.Equal(t, http.StatusOK, w.Code)

	w = r.do(t, http.MethodGet, "/api/preferences", nil, models.RolePublisher, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dark"`)
}

func TestServeBlob(t *testing.T) {
	r := newRig(t)

	w := r.do(t, http.MethodGet, "/api/blobs/known", nil, models.RoleReader, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = r.do(t, http.MethodGet, "/api/blobs/unknown", nil, models.RoleReader, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetUserRole_Validation(t *testing.T) {
	r := newRig(t)

	w := r.do(t, http.MethodPut, "/api/users/u-2/role",
		strings.NewReader(`{"role":"owner"}`), models.RoleSuperAdmin, "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = r.do(t, http.MethodPut, "/api/users/u-2/role",
		strings.NewReader(`{"role":"publisher"}`), models.RoleSuperAdmin, "application/json")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = r.do(t, http.MethodPut, "/api/users/u-2/role",
		strings.NewReader(`{"role":"publisher"}`), models.RolePublisher, "application/json")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListStudies_SnapshotFallback(t *testing.T) {
	r := newRig(t)
	r.studies.listErr = common.ErrorInternal
	r.local.cached = []models.CaseStudy{{ID: "cs-1", Status: models.StatusPublished}}

	w := r.do(t, http.MethodGet, "/api/studies", nil, models.RolePublisher, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cs-1")
}

func TestSaveStudy_RejectsUnknownStatus(t *testing.T) {
	r := newRig(t)

	w := r.do(t, http.MethodPut, "/api/studies/cs-1",
		strings.NewReader(`{"title":"Edited","status":"live"}`), models.RolePublisher, "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteUser(t *testing.T) {
	r := newRig(t)

	w := r.do(t, http.MethodDelete, "/api/users/u-2", nil, models.RoleSuperAdmin, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u-2", r.users.deletedID)

	w = r.do(t, http.MethodDelete, "/api/users/u-2", nil, models.RolePublisher, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWipeLocalState(t *testing.T) {
	r := newRig(t)

	w := r.do(t, http.MethodDelete, "/api/snapshot", nil, models.RoleSuperAdmin, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, r.local.cleared)
}

func TestCancelAndProgress(t *testing.T) {
	r := newRig(t)
	r.pipeline.progress = pipeline.Progress{Phase: pipeline.PhaseAnalyzing, Percent: 40}

	w := r.do(t, http.MethodPost, "/api/cancel", nil, models.RolePublisher, "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, r.pipeline.cancelled)

	w = r.do(t, http.MethodGet, "/api/progress", nil, models.RolePublisher, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"analyzing"`)
}

func TestUnauthenticatedRejected(t *testing.T) {
	r := newRig(t)
	w := r.do(t, http.MethodGet, "/api/studies", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
