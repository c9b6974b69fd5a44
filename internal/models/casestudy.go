package models

import (
	"time"

	"github.com/ericthayer/devlog/internal/common"
)

// Status is the publication state of a case study.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// SyncState tags whether a record has been reconciled with the remote store.
// A study is fully usable locally before phase two of the save completes.
type SyncState string

const (
	SyncLocal  SyncState = "local"
	SyncSynced SyncState = "synced"
	SyncFailed SyncState = "syncFailed"
)

// Placeholder text substituted when the synthesis result omits a field.
// The narrative contract never leaves the UI with missing text.
const (
	DefaultTitle     = "UNTITLED CONTRIBUTION"
	DefaultProblem   = "No problem statement provided."
	DefaultApproach  = "Standard implementation."
	DefaultOutcome   = "Awaiting outcome analysis."
	DefaultNextSteps = "Review and iterate."
)

// SeoMetadata carries the independently defaultable SEO block.
type SeoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// CaseStudy is one draft or published narrative unit. Artifacts are an
// embedded copy of the assets the narrative was generated from, not a live
// reference; later staging edits never change a synthesized study.
type CaseStudy struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId,omitempty"`
	Title     string      `json:"title"`
	Status    Status      `json:"status"`
	Date      time.Time   `json:"date"`
	Tags      []string    `json:"tags"`
	Problem   string      `json:"problem"`
	Approach  string      `json:"approach"`
	Outcome   string      `json:"outcome"`
	NextSteps string      `json:"nextSteps"`
	Artifacts []Asset     `json:"artifacts"`
	Seo       SeoMetadata `json:"seoMetadata"`
	SyncState SyncState   `json:"syncState"`
}

// NarrativeResult is the structured synthesis output before defaults are
// applied. Any field may be empty or missing.
type NarrativeResult struct {
	Title     string      `json:"title"`
	Problem   string      `json:"problem"`
	Approach  string      `json:"approach"`
	Outcome   string      `json:"outcome"`
	NextSteps string      `json:"nextSteps"`
	Tags      []string    `json:"tags"`
	Seo       SeoMetadata `json:"seoMetadata"`
}

// NewCaseStudy builds a draft study from a synthesis result, copying the
// artifact snapshot and substituting placeholders for every omitted field.
// The id is a local token until the reconciler persists the record.
func NewCaseStudy(n NarrativeResult, artifacts []Asset, now time.Time) CaseStudy {
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}

	title := pick(n.Title, DefaultTitle)

	tags := n.Tags
	if len(tags) == 0 {
		tags = []string{"LOG"}
	}

	seo := n.Seo
	if seo.Title == "" {
		seo.Title = title
	}
	if seo.Description == "" {
		seo.Description = "Case study generated from uploaded artifacts."
	}
	if len(seo.Keywords) == 0 {
		seo.Keywords = append([]string(nil), tags...)
	}

	return CaseStudy{
		ID:        common.NewLocalID(),
		Title:     title,
		Status:    StatusDraft,
		Date:      now,
		Tags:      tags,
		Problem:   pick(n.Problem, DefaultProblem),
		Approach:  pick(n.Approach, DefaultApproach),
		Outcome:   pick(n.Outcome, DefaultOutcome),
		NextSteps: pick(n.NextSteps, DefaultNextSteps),
		Artifacts: append([]Asset(nil), artifacts...),
		Seo:       seo,
		SyncState: SyncLocal,
	}
}

// Persisted reports whether the study carries a server-assigned identifier.
func (c *CaseStudy) Persisted() bool {
	return common.IsServerID(c.ID)
}
