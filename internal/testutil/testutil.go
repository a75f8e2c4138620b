// Package testutil provides shared test helpers for setting up stores and
// library directories.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/timottowitz/covidvaccinedetox/internal/catalog"
	"github.com/timottowitz/covidvaccinedetox/internal/store"
)

// TestStore creates a temporary SQLite content store that is automatically
// cleaned up.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "content-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Library is a temporary on-disk resource library for tests.
type Library struct {
	ResourcesDir string
	ThumbsDir    string
	KnowledgeDir string
	MetadataFile string
	Sidecar      *catalog.Sidecar
}

// TestLibrary creates a temporary library layout with an empty sidecar.
func TestLibrary(t *testing.T) *Library {
	t.Helper()
	root := t.TempDir()

	lib := &Library{
		ResourcesDir: filepath.Join(root, "resources"),
		ThumbsDir:    filepath.Join(root, "thumbs"),
		KnowledgeDir: filepath.Join(root, "knowledge"),
	}
	for _, dir := range []string{lib.ResourcesDir, lib.ThumbsDir, lib.KnowledgeDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	lib.MetadataFile = filepath.Join(lib.ResourcesDir, "metadata.json")
	lib.Sidecar = catalog.NewSidecar(lib.MetadataFile, DiscardLogger())
	return lib
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
