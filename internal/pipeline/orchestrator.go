// Package pipeline drives the ingestion and synthesis flow: uploads are
// expanded, analyzed and staged one at a time, and a staged batch is turned
// into a persisted case study on demand. One operation runs at a time;
// everything else observes progress or cancels.
package pipeline

import (
	"context"
	"mime"
	"sync"
	"time"

	"github.com/ericthayer/devlog/internal/archive"
	"github.com/ericthayer/devlog/internal/common"
	"github.com/ericthayer/devlog/internal/logging"
	"github.com/ericthayer/devlog/internal/models"
)

// MaxPreviewSize is the cutoff above which no inline preview is held in
// memory.
const MaxPreviewSize = 30 << 20

// File is one raw upload.
type File struct {
	Name     string
	Content  []byte
	MimeType string
}

// Options tune a single ingestion or synthesis run.
type Options struct {
	Enhanced   bool
	AutoRename bool
}

// Analyzer derives semantic metadata for one file.
type Analyzer interface {
	AnalyzeAsset(ctx context.Context, fileName string, content []byte, mimeType string, enhanced bool) (models.AnalysisResult, error)
}

// Synthesizer turns staged assets plus a hint into a narrative.
type Synthesizer interface {
	SynthesizeCaseStudy(ctx context.Context, assets []models.Asset, contextHint string, enhanced bool) (models.NarrativeResult, error)
}

// Saver persists a finished study.
type Saver interface {
	Save(ctx context.Context, study models.CaseStudy) (models.CaseStudy, error)
}

// PreviewStore issues and releases transient preview URLs.
type PreviewStore interface {
	Put(data []byte, contentType string) string
	Revoke(url string)
}

type Orchestrator struct {
	analyzer    Analyzer
	synthesizer Synthesizer
	saver       Saver
	previews    PreviewStore
	logger      logging.Logger
	now         func() time.Time

	mu       sync.Mutex
	phase    Phase
	progress Progress
	staged   []models.Asset
	cancelFn context.CancelFunc
}

func NewOrchestrator(analyzer Analyzer, synthesizer Synthesizer, saver Saver, previews PreviewStore, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		analyzer:    analyzer,
		synthesizer: synthesizer,
		saver:       saver,
		previews:    previews,
		logger:      logger,
		now:         time.Now,
		phase:       PhaseIdle,
		progress:    Progress{Phase: PhaseIdle},
	}
}

// begin claims the orchestrator for one operation. Overlapping operations
// are rejected rather than queued.
func (o *Orchestrator) begin(ctx context.Context, phase Phase) (context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase != PhaseIdle {
		return nil, common.ErrBusy
	}

	ctx, cancel := context.WithCancel(ctx)
	o.phase = phase
	o.cancelFn = cancel
	o.progress = Progress{Phase: phase}
	return ctx, nil
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancelFn != nil {
		o.cancelFn()
		o.cancelFn = nil
	}
	o.phase = PhaseIdle
	o.progress = Progress{Phase: PhaseIdle}
}

func (o *Orchestrator) setProgress(percent int, currentFile, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress.Percent = percent
	o.progress.CurrentFile = currentFile
	o.progress.Message = message
}

func (o *Orchestrator) setPhase(phase Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phase = phase
	o.progress.Phase = phase
}

// Cancel aborts the running operation, if any. The batch in flight is
// discarded entirely; already staged assets are untouched.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancelFn != nil {
		o.cancelFn()
	}
}

// Progress returns a snapshot of the running operation.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// StagedAssets returns a copy of the current staging batch in arrival order.
func (o *Orchestrator) StagedAssets() []models.Asset {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.Asset(nil), o.staged...)
}

// RemoveAsset drops one staged asset and releases its preview.
func (o *Orchestrator) RemoveAsset(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, a := range o.staged {
		if a.ID == id {
			if a.URL != "" {
				o.previews.Revoke(a.URL)
			}
			o.staged = append(o.staged[:i], o.staged[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

// ClearAssets drops the whole staging batch and releases every preview.
func (o *Orchestrator) ClearAssets() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, a := range o.staged {
		if a.URL != "" {
			o.previews.Revoke(a.URL)
		}
	}
	o.staged = nil
}

// Ingest expands, analyzes and stages files sequentially. Archives
// contribute their allow-listed entries to the same batch; a corrupt archive
// is skipped with a warning. A file whose analysis fails is dropped from
// the batch, the rest continue. With auto rename off the analyzer is never
// called and every file stages under its original name with default
// metadata. Cancellation discards the entire batch, including assets
// already processed in this call.
func (o *Orchestrator) Ingest(ctx context.Context, role models.Role, files []File, opts Options) ([]models.Asset, error) {
	if !role.CanPublish() {
		return nil, common.ErrorForbidden
	}

	ctx, err := o.begin(ctx, PhaseAnalyzing)
	if err != nil {
		return nil, err
	}
	defer o.finish()

	work := o.expand(ctx, files)

	var batch []models.Asset
	discard := func() {
		for _, a := range batch {
			if a.URL != "" {
				o.previews.Revoke(a.URL)
			}
		}
	}

	for i, f := range work {
		if ctx.Err() != nil {
			discard()
			return nil, common.ErrCancelled
		}

		o.setProgress(i*100/len(work), f.Name, "Analyzing")

		var analysis models.AnalysisResult
		if opts.AutoRename {
			analysis, err = o.analyzer.AnalyzeAsset(ctx, f.Name, f.Content, f.MimeType, opts.Enhanced)
			if err != nil {
				if ctx.Err() != nil {
					discard()
					return nil, common.ErrCancelled
				}
				o.logger.Warn(ctx, "analysis failed, dropping file from batch", "file", f.Name, "error", err)
				o.setProgress((i+1)*100/len(work), f.Name, "Analyzing")
				continue
			}
		}

		batch = append(batch, models.NewAsset(f.Name, int64(len(f.Content)), analysis, opts.AutoRename, o.preview(f)))
		o.setProgress((i+1)*100/len(work), f.Name, "Analyzing")
	}

	if ctx.Err() != nil {
		discard()
		return nil, common.ErrCancelled
	}

	o.mu.Lock()
	o.staged = append(o.staged, batch...)
	o.mu.Unlock()

	o.logger.Info(ctx, "ingestion complete", "files", len(files), "staged", len(batch))
	return batch, nil
}

// expand flattens the upload list, replacing each archive with its extracted
// entries.
func (o *Orchestrator) expand(ctx context.Context, files []File) []File {
	var work []File
	for _, f := range files {
		if !archive.IsArchiveName(f.Name) {
			work = append(work, f)
			continue
		}

		entries, err := archive.Expand(f.Content)
		if err != nil {
			o.logger.Warn(ctx, "skipping unreadable archive", "file", f.Name, "error", err)
			continue
		}
		for _, e := range entries {
			work = append(work, File{
				Name:     e.Name,
				Content:  e.Content,
				MimeType: mime.TypeByExtension("." + e.Ext),
			})
		}
	}
	return work
}

// preview issues a transient URL for inline-renderable media under the size
// cutoff. Everything else stages without one.
func (o *Orchestrator) preview(f File) string {
	if int64(len(f.Content)) >= MaxPreviewSize {
		return ""
	}
	ext := models.FileExtension(f.Name)
	if !models.IsImageExtension(ext) && !models.IsVideoExtension(ext) {
		return ""
	}
	return o.previews.Put(f.Content, f.MimeType)
}

// Synthesize turns the staged batch into a case study owned by userID. The
// study embeds every staged asset regardless of how many the narrative
// summarized. Persistence failure is not fatal: the study comes back with
// its sync state flagged so a later save can retry. On success the staging
// batch is cleared.
func (o *Orchestrator) Synthesize(ctx context.Context, userID string, role models.Role, contextHint string, opts Options) (models.CaseStudy, error) {
	if !role.CanPublish() {
		return models.CaseStudy{}, common.ErrorForbidden
	}

	ctx, err := o.begin(ctx, PhaseGenerating)
	if err != nil {
		return models.CaseStudy{}, err
	}
	defer o.finish()

	staged := o.StagedAssets()
	if len(staged) == 0 {
		return models.CaseStudy{}, common.ErrNoStagedAssets
	}

	stopTicker := o.simulateProgress()
	narrative, err := o.synthesizer.SynthesizeCaseStudy(ctx, staged, contextHint, opts.Enhanced)
	stopTicker()
	if ctx.Err() != nil {
		return models.CaseStudy{}, common.ErrCancelled
	}
	if err != nil {
		return models.CaseStudy{}, err
	}

	study := models.NewCaseStudy(narrative, staged, o.now())
	study.UserID = userID

	o.setPhase(PhaseFinalizing)
	o.setProgress(95, "", "Saving")

	saved, err := o.saver.Save(ctx, study)
	if err != nil {
		if ctx.Err() != nil {
			return models.CaseStudy{}, common.ErrCancelled
		}
		o.logger.Warn(ctx, "save failed, keeping study local", "id", study.ID, "error", err)
		study.SyncState = models.SyncFailed
	} else {
		study = saved
		o.setProgress(100, "", "Saved")
	}

	o.mu.Lock()
	o.staged = nil
	o.mu.Unlock()

	o.logger.Info(ctx, "case study synthesized", "id", study.ID, "sync", study.SyncState)
	return study, nil
}

// simulateProgress advances the percentage while synthesis runs, since the
// inference call gives no intermediate signal. Increments shrink as the bar
// approaches its cap so it never reaches 100 before the result lands.
func (o *Orchestrator) simulateProgress() (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(350 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				o.mu.Lock()
				if remaining := 95 - o.progress.Percent; remaining > 0 {
					o.progress.Percent += max(1, remaining/8)
				}
				o.mu.Unlock()
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
