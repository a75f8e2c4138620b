package catalog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/timottowitz/covidvaccinedetox/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSidecar(t *testing.T) (*Sidecar, string) {
	t.Helper()
	dir := t.TempDir()
	return NewSidecar(filepath.Join(dir, "metadata.json"), discardLogger()), dir
}

func TestSidecar_LoadMissingFile(t *testing.T) {
	s, _ := newTestSidecar(t)
	if got := s.Load(); len(got) != 0 {
		t.Errorf("missing file should load empty, got %v", got)
	}
}

func TestSidecar_LoadCorruptedFileDegrades(t *testing.T) {
	s, dir := newTestSidecar(t)
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := s.Load(); len(got) != 0 {
		t.Errorf("corrupted file should load empty, got %v", got)
	}
}

func TestSidecar_UpsertMatchesByFilename(t *testing.T) {
	s, _ := newTestSidecar(t)

	first, err := s.Upsert(models.Resource{Title: "Doc", Filename: "doc.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Upsert(models.Resource{Title: "Doc v2", Filename: "doc.pdf"})
	if err != nil {
		t.Fatal(err)
	}

	if second.ID != first.ID {
		t.Errorf("update should keep the original id: %s vs %s", second.ID, first.ID)
	}
	all := s.Load()
	if len(all) != 1 {
		t.Fatalf("expected one record, got %d", len(all))
	}
	if all[0].Title != "Doc v2" {
		t.Errorf("title = %q, want Doc v2", all[0].Title)
	}
}

func TestSidecar_UpsertAppendsNewRecords(t *testing.T) {
	s, _ := newTestSidecar(t)
	if _, err := s.Upsert(models.Resource{Title: "A", Filename: "a.pdf"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upsert(models.Resource{Title: "B", Filename: "b.pdf"}); err != nil {
		t.Fatal(err)
	}
	if got := s.Load(); len(got) != 2 {
		t.Errorf("expected two records, got %d", len(got))
	}
}

func TestSidecar_SetKnowledge(t *testing.T) {
	s, _ := newTestSidecar(t)
	res, err := s.Upsert(models.Resource{Title: "A", Filename: "a.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetKnowledge(res.ID, "/knowledge/a.md", "hash123"); err != nil {
		t.Fatal(err)
	}
	got := s.Load()[0]
	if got.KnowledgeURL != "/knowledge/a.md" || got.KnowledgeHash != "hash123" {
		t.Errorf("knowledge fields not set: %+v", got)
	}
}

func TestSidecar_SeedIfEmptyOnlyOnce(t *testing.T) {
	s, _ := newTestSidecar(t)
	if err := s.SeedIfEmpty(SampleResources()); err != nil {
		t.Fatal(err)
	}
	n := len(s.Load())
	if n == 0 {
		t.Fatal("seed should populate the sidecar")
	}
	if err := s.SeedIfEmpty(SampleResources()); err != nil {
		t.Fatal(err)
	}
	if len(s.Load()) != n {
		t.Error("second seed should be a no-op")
	}
}

func TestCatalogList_MergesUnreferencedDiskFiles(t *testing.T) {
	s, _ := newTestSidecar(t)
	resourcesDir := t.TempDir()

	if _, err := s.Upsert(models.Resource{Title: "Known", Filename: "known.pdf"}); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"known.pdf", "stray.mp4", ".hidden", "metadata.json"} {
		if err := os.WriteFile(filepath.Join(resourcesDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cat := New(s, resourcesDir, nil, discardLogger())
	got := cat.List(context.Background(), "")

	if len(got) != 2 {
		t.Fatalf("expected sidecar entry plus stray file, got %d: %+v", len(got), got)
	}
	var sawStray bool
	for _, r := range got {
		if r.Filename == "stray.mp4" {
			sawStray = true
			if r.Kind != models.KindVideo {
				t.Errorf("stray kind = %q, want video", r.Kind)
			}
			if r.URL != "/resources/stray.mp4" {
				t.Errorf("stray url = %q", r.URL)
			}
		}
	}
	if !sawStray {
		t.Error("stray disk file should be listed")
	}
}

func TestCatalogList_TagFilter(t *testing.T) {
	s, _ := newTestSidecar(t)
	if _, err := s.Upsert(models.Resource{Title: "A", Filename: "a.pdf", Tags: []string{"Spike Protein"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upsert(models.Resource{Title: "B", Filename: "b.pdf", Tags: []string{"gut"}}); err != nil {
		t.Fatal(err)
	}

	cat := New(s, filepath.Join(t.TempDir(), "none"), nil, discardLogger())

	got := cat.List(context.Background(), "spike")
	if len(got) != 1 || got[0].Title != "A" {
		t.Errorf("substring tag filter should be case-insensitive, got %+v", got)
	}
	if got := cat.List(context.Background(), ""); len(got) != 2 {
		t.Errorf("empty filter should match all, got %d", len(got))
	}
}

func TestCatalogList_NewestFirst(t *testing.T) {
	s, _ := newTestSidecar(t)
	old := time.Now().UTC().Add(-24 * time.Hour)
	if _, err := s.Upsert(models.Resource{Title: "Old", Filename: "old.pdf", UploadedAt: old}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upsert(models.Resource{Title: "New", Filename: "new.pdf"}); err != nil {
		t.Fatal(err)
	}

	cat := New(s, filepath.Join(t.TempDir(), "none"), nil, discardLogger())
	got := cat.List(context.Background(), "")
	if len(got) != 2 || got[0].Title != "New" {
		t.Errorf("newest first expected, got %+v", got)
	}
}

type fakeThumbs struct{ calls int }

func (f *fakeThumbs) Ensure(_ context.Context, res models.Resource, _ float64) string {
	f.calls++
	return "/thumbs/" + res.Filename + ".jpg"
}

func TestCatalogList_LazyThumbnailsForPDFAndVideoOnly(t *testing.T) {
	s, _ := newTestSidecar(t)
	if _, err := s.Upsert(models.Resource{Title: "P", Filename: "p.pdf"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upsert(models.Resource{Title: "M", Filename: "m.mp3"}); err != nil {
		t.Fatal(err)
	}

	thumbs := &fakeThumbs{}
	cat := New(s, filepath.Join(t.TempDir(), "none"), thumbs, discardLogger())
	got := cat.List(context.Background(), "")

	if thumbs.calls != 1 {
		t.Errorf("thumbnailer calls = %d, want 1 (pdf only)", thumbs.calls)
	}
	for _, r := range got {
		if r.Filename == "p.pdf" && r.ThumbnailURL == "" {
			t.Error("pdf should get a lazy thumbnail url")
		}
		if r.Filename == "m.mp3" && r.ThumbnailURL != "" {
			t.Error("audio should not get a thumbnail")
		}
	}

	// Response-only: the sidecar record stays clean.
	for _, r := range s.Load() {
		if r.ThumbnailURL != "" {
			t.Error("thumbnail url must not be persisted by List")
		}
	}
}
