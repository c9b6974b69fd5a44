// Package cache mirrors working state to a local badger store so a restart
// resumes with the last known studies and preferences even before the
// database is reachable.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/ericthayer/devlog/internal/models"
)

const (
	keyCaseStudies = "snapshot:case_studies"
	keyPreferences = "snapshot:preferences"
)

// Snapshot is the durable mirror of in-process working state. It is written
// on every change and read once at startup.
type Snapshot struct {
	db *badger.DB
}

// Open creates or reopens the badger store at path.
func Open(path string) (*Snapshot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return &Snapshot{db: db}, nil
}

func (s *Snapshot) Close() error {
	return s.db.Close()
}

// PutCaseStudies replaces the cached study list.
func (s *Snapshot) PutCaseStudies(studies []models.CaseStudy) error {
	return s.put(keyCaseStudies, studies)
}

// CaseStudies returns the cached study list, or nil when nothing is cached.
func (s *Snapshot) CaseStudies() ([]models.CaseStudy, error) {
	var studies []models.CaseStudy
	if err := s.get(keyCaseStudies, &studies); err != nil {
		return nil, err
	}
	return studies, nil
}

// PutPreferences replaces the cached preferences.
func (s *Snapshot) PutPreferences(p models.Preferences) error {
	return s.put(keyPreferences, p)
}

// Preferences returns the cached preferences, falling back to defaults when
// nothing is cached.
func (s *Snapshot) Preferences() (models.Preferences, error) {
	p := models.DefaultPreferences()
	if err := s.get(keyPreferences, &p); err != nil {
		return models.Preferences{}, err
	}
	return p, nil
}

// Clear drops everything cached.
func (s *Snapshot) Clear() error {
	return s.db.DropAll()
}

func (s *Snapshot) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// get unmarshals the value at key into v, leaving v untouched when the key
// is absent.
func (s *Snapshot) get(key string, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		return item.Value(func(data []byte) error {
			return json.Unmarshal(data, v)
		})
	})
}
