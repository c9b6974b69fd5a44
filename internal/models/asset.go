// Package models defines the domain records of the contribution log: staged
// assets, synthesized case studies, users and preferences, together with the
// default-substitution rules that keep every field non-empty.
package models

import (
	"fmt"
	"strings"

	"github.com/ericthayer/devlog/internal/common"
)

// Fallback values for the semantic fields when analysis is skipped or
// returns a partial result. Analysis must never block asset creation.
const (
	DefaultTopic   = "misc"
	DefaultType    = "file"
	DefaultContext = "dev"
	DefaultVariant = "v1"
	DefaultVersion = "1.0"
)

// Asset is one ingested artifact plus its derived semantic metadata.
type Asset struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	AIName       string `json:"aiName"`
	Type         string `json:"type"`
	Topic        string `json:"topic"`
	Context      string `json:"context"`
	Variant      string `json:"variant"`
	Version      string `json:"version"`
	FileType     string `json:"fileType"`
	URL          string `json:"url"`
	Size         int64  `json:"size"`
}

// AnalysisResult holds the five semantic fields returned by the AI analyzer.
// Empty fields are allowed; NewAsset substitutes defaults.
type AnalysisResult struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Context string `json:"context"`
	Variant string `json:"variant"`
	Version string `json:"version"`
}

// withDefaults returns a copy with every empty field replaced by its fallback.
func (a AnalysisResult) withDefaults() AnalysisResult {
	pick := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	}
	return AnalysisResult{
		Topic:   pick(a.Topic, DefaultTopic),
		Type:    pick(a.Type, DefaultType),
		Context: pick(a.Context, DefaultContext),
		Variant: pick(a.Variant, DefaultVariant),
		Version: pick(a.Version, DefaultVersion),
	}
}

// FileExtension returns the lowercase extension of name without the dot,
// or an empty string when the name has none.
func FileExtension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// NewAsset assembles a canonical Asset from a raw file and its analysis
// result, substituting defaults for any missing semantic field. With
// autoRename disabled the derived name is simply the original name; otherwise
// it is the deterministic slug [topic]-[type]-[context]-[variant]-[version]-[ext],
// which doubles as the durable-storage path key.
//
// previewURL may be empty (oversized or archive inputs get no preview).
func NewAsset(name string, size int64, analysis AnalysisResult, autoRename bool, previewURL string) Asset {
	a := analysis.withDefaults()
	ext := FileExtension(name)

	aiName := name
	if autoRename {
		aiName = fmt.Sprintf("%s-%s-%s-%s-%s-%s", a.Topic, a.Type, a.Context, a.Variant, a.Version, ext)
	}

	return Asset{
		ID:           common.NewLocalID(),
		OriginalName: name,
		AIName:       aiName,
		Type:         a.Type,
		Topic:        a.Topic,
		Context:      a.Context,
		Variant:      a.Variant,
		Version:      a.Version,
		FileType:     ext,
		URL:          previewURL,
		Size:         size,
	}
}

// Inline preview support, by extension. Everything else renders as an opaque
// icon with no preview.
var (
	imageExtensions = map[string]struct{}{
		"jpg": {}, "jpeg": {}, "png": {}, "webp": {}, "gif": {},
	}
	videoExtensions = map[string]struct{}{
		"mp4": {}, "webm": {}, "mov": {},
	}
)

// IsImageExtension reports whether ext names an inline-renderable image type.
func IsImageExtension(ext string) bool {
	_, ok := imageExtensions[strings.ToLower(ext)]
	return ok
}

// IsVideoExtension reports whether ext names an inline-renderable video type.
func IsVideoExtension(ext string) bool {
	_, ok := videoExtensions[strings.ToLower(ext)]
	return ok
}
