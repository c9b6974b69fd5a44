// Package archive expands compressed uploads into in-memory file entries.
// Only text/code/markup formats are auto-expanded; binary media inside
// archives is intentionally excluded.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/ericthayer/devlog/internal/models"
)

// Entry is one extracted file: the name as recorded in the archive, its raw
// content and the lowercase extension used as a stand-in mime hint.
type Entry struct {
	Name    string
	Content []byte
	Ext     string
}

// allowed lists the extensions eligible for auto-expansion.
var allowed = map[string]struct{}{
	"md": {}, "js": {}, "jsx": {}, "ts": {}, "tsx": {}, "css": {}, "html": {},
	"json": {}, "txt": {}, "py": {}, "go": {}, "rs": {}, "svg": {}, "fig": {}, "sql": {},
}

// IsArchiveName reports whether name looks like an expandable archive.
func IsArchiveName(name string) bool {
	return models.FileExtension(name) == "zip"
}

// Expand reads a zip archive and returns its allow-listed file entries.
// Directory entries and files with other extensions are skipped. A corrupt
// or unreadable archive returns an error scoped to this one input; callers
// continue with the rest of their batch.
func Expand(data []byte) ([]Entry, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var entries []Entry
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		ext := models.FileExtension(f.Name)
		if _, ok := allowed[ext]; !ok {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read archive entry %s: %w", f.Name, err)
		}

		entries = append(entries, Entry{Name: f.Name, Content: content, Ext: ext})
	}

	return entries, nil
}
