package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/timottowitz/covidvaccinedetox/internal/models"
)

// Sidecar owns the metadata.json file that persists resource records. All
// mutations go through a single mutex-held read-modify-write, so concurrent
// uploads, ingestion backfills, and reconciliation passes cannot clobber
// each other's updates. Writes are atomic (tmp file, fsync, rename).
type Sidecar struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewSidecar creates a sidecar store at path. The file may not exist yet.
func NewSidecar(path string, logger *slog.Logger) *Sidecar {
	return &Sidecar{path: path, logger: logger}
}

// Load returns the persisted resource list. A missing or unparseable file
// degrades to an empty list; parse failures are logged, never raised.
func (s *Sidecar) Load() []models.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Sidecar) loadLocked() []models.Resource {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("sidecar: read failed", slog.String("path", s.path), slog.String("error", err.Error()))
		}
		return []models.Resource{}
	}
	var out []models.Resource
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("sidecar: parse failed, serving empty catalog",
			slog.String("path", s.path), slog.String("error", err.Error()))
		return []models.Resource{}
	}
	if out == nil {
		out = []models.Resource{}
	}
	return out
}

func (s *Sidecar) saveLocked(resources []models.Resource) error {
	data, err := json.MarshalIndent(resources, "", "  ")
	if err != nil {
		return fmt.Errorf("sidecar: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sidecar: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".metadata-tmp-*")
	if err != nil {
		return fmt.Errorf("sidecar: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("sidecar: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sidecar: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sidecar: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("sidecar: rename: %w", err)
	}
	success = true
	return nil
}

// Mutate applies fn to the current resource list under the lock and
// persists the returned list. fn receives a copy it may modify freely.
func (s *Sidecar) Mutate(fn func(resources []models.Resource) []models.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := fn(s.loadLocked())
	return s.saveLocked(updated)
}

// Upsert merges res into the sidecar, matching an existing entry by
// filename or URL; otherwise res is appended. Returns the stored record.
func (s *Sidecar) Upsert(res models.Resource) (models.Resource, error) {
	res.Normalize(time.Now().UTC())
	err := s.Mutate(func(resources []models.Resource) []models.Resource {
		for i := range resources {
			if sameIdentity(resources[i], res) {
				res.ID = resources[i].ID
				resources[i] = res
				return resources
			}
		}
		return append(resources, res)
	})
	return res, err
}

// SetKnowledge backfills knowledge link fields onto the entry with the
// given resource id. Called by ingestion job completion, independent of
// upload task completion.
func (s *Sidecar) SetKnowledge(resourceID, knowledgeURL, knowledgeHash string) error {
	return s.Mutate(func(resources []models.Resource) []models.Resource {
		for i := range resources {
			if resources[i].ID == resourceID {
				resources[i].KnowledgeURL = knowledgeURL
				resources[i].KnowledgeHash = knowledgeHash
			}
		}
		return resources
	})
}

// SeedIfEmpty persists samples when the sidecar holds no resources yet.
func (s *Sidecar) SeedIfEmpty(samples []models.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.loadLocked()) > 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range samples {
		samples[i].Normalize(now)
	}
	return s.saveLocked(samples)
}

// sameIdentity matches resources by the (filename, url) identity pair:
// either component equal counts as the same record.
func sameIdentity(a, b models.Resource) bool {
	if a.Filename != "" && a.Filename == b.Filename {
		return true
	}
	return a.URL != "" && a.URL == b.URL
}
