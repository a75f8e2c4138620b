package upload

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/timottowitz/covidvaccinedetox/internal/apperr"
	"github.com/timottowitz/covidvaccinedetox/internal/sse"
	"github.com/timottowitz/covidvaccinedetox/internal/testutil"
)

func newTestProcessor(t *testing.T) (*Processor, string) {
	t.Helper()
	lib := testutil.TestLibrary(t)

	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)

	p := NewProcessor(lib.ResourcesDir, DefaultMaxUploadBytes, NewTracker(),
		lib.Sidecar, nil, nil, broker, testutil.DiscardLogger())
	return p, lib.ResourcesDir
}

func uploadFile(t *testing.T, content []byte) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "upload-*")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(content); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func waitForTerminal(t *testing.T, p *Processor, taskID string) Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, ok := p.Tracker().Get(taskID)
		if !ok {
			t.Fatal("task disappeared")
		}
		if task.Status == StatusCompleted || task.Status == StatusFailed {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal state")
	return Task{}
}

func TestSubmit_PDFCompletesAndCatalogs(t *testing.T) {
	p, resourcesDir := newTestProcessor(t)

	content := []byte("%PDF-1.4\nfake pdf body\n")
	task, err := p.Submit(Request{
		File:         uploadFile(t, content),
		Filename:     "Spike Study.pdf",
		Size:         int64(len(content)),
		DeclaredType: "application/pdf",
		Title:        "Spike Study",
		Tags:         []string{"spike"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != StatusPending {
		t.Errorf("accepted status = %q, want pending", task.Status)
	}

	done := waitForTerminal(t, p, task.TaskID)
	if done.Status != StatusCompleted {
		t.Fatalf("task failed: %s", done.ErrorMessage)
	}
	if done.Result == nil || done.Result.Title != "Spike Study" {
		t.Fatalf("result = %+v", done.Result)
	}

	// The file landed in the resources directory under a slug name.
	if _, err := os.Stat(filepath.Join(resourcesDir, done.Result.Filename)); err != nil {
		t.Errorf("persisted file missing: %v", err)
	}
	if done.Result.Kind != "pdf" {
		t.Errorf("kind = %q, want pdf", done.Result.Kind)
	}
}

func TestSubmit_RejectsOversizeBeforeTaskCreation(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, err := p.Submit(Request{
		File:     uploadFile(t, []byte("%PDF-1.4")),
		Filename: "big.pdf",
		Size:     DefaultMaxUploadBytes + 1,
	})
	if !errors.Is(err, apperr.ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestSubmit_RejectsUnsupportedType(t *testing.T) {
	p, _ := newTestProcessor(t)

	content := []byte("plain text, definitely not a pdf")
	_, err := p.Submit(Request{
		File:         uploadFile(t, content),
		Filename:     "notes.txt",
		Size:         int64(len(content)),
		DeclaredType: "text/plain",
	})
	if !errors.Is(err, apperr.ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestSubmit_DeclaredTypeCoversOpaqueContainers(t *testing.T) {
	p, _ := newTestProcessor(t)

	// Binary that sniffs as octet-stream but declares a supported video type.
	content := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	task, err := p.Submit(Request{
		File:         uploadFile(t, content),
		Filename:     "clip.mov",
		Size:         int64(len(content)),
		DeclaredType: "video/quicktime",
	})
	if err != nil {
		t.Fatal(err)
	}
	waitForTerminal(t, p, task.TaskID)
}

func TestSubmit_IdempotentReplayReturnsSameTask(t *testing.T) {
	p, _ := newTestProcessor(t)
	content := []byte("%PDF-1.4\nbody\n")

	first, err := p.Submit(Request{
		File:           uploadFile(t, content),
		Filename:       "doc.pdf",
		Size:           int64(len(content)),
		IdempotencyKey: "retry-123",
	})
	if err != nil {
		t.Fatal(err)
	}
	waitForTerminal(t, p, first.TaskID)

	second, err := p.Submit(Request{
		File:           uploadFile(t, content),
		Filename:       "doc.pdf",
		Size:           int64(len(content)),
		IdempotencyKey: "retry-123",
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.TaskID != first.TaskID {
		t.Errorf("replay task id = %s, want %s", second.TaskID, first.TaskID)
	}

	// Only one catalogued resource despite two submissions.
	if got := len(catalogEntries(p)); got != 1 {
		t.Errorf("catalog entries = %d, want 1", got)
	}
}

func TestSubmit_ReplaySkipsPayloadValidation(t *testing.T) {
	p, _ := newTestProcessor(t)
	content := []byte("%PDF-1.4\nbody\n")

	first, err := p.Submit(Request{
		File:           uploadFile(t, content),
		Filename:       "doc.pdf",
		Size:           int64(len(content)),
		IdempotencyKey: "retry-456",
	})
	if err != nil {
		t.Fatal(err)
	}
	waitForTerminal(t, p, first.TaskID)

	// A retry with the same key returns the original task even when the
	// new payload would fail validation on its own.
	replay, err := p.Submit(Request{
		File:           uploadFile(t, []byte("plain text")),
		Filename:       "doc.pdf",
		Size:           DefaultMaxUploadBytes + 1,
		DeclaredType:   "text/plain",
		IdempotencyKey: "retry-456",
	})
	if err != nil {
		t.Fatalf("replay must not re-validate: %v", err)
	}
	if replay.TaskID != first.TaskID {
		t.Errorf("replay task id = %s, want %s", replay.TaskID, first.TaskID)
	}
}

func TestSubmit_AssignsKeyWhenHeaderAbsent(t *testing.T) {
	p, _ := newTestProcessor(t)
	content := []byte("%PDF-1.4\nbody\n")

	task, err := p.Submit(Request{
		File:     uploadFile(t, content),
		Filename: "doc.pdf",
		Size:     int64(len(content)),
	})
	if err != nil {
		t.Fatal(err)
	}
	if task.IdempotencyKey == "" {
		t.Error("accepted uploads should always carry an idempotency key")
	}
}

func catalogEntries(p *Processor) []string {
	var names []string
	for _, r := range p.sidecar.Load() {
		names = append(names, r.Filename)
	}
	return names
}

func TestUniqueName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "doc.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := uniqueName(dir, "doc.pdf"); got != "doc-1.pdf" {
		t.Errorf("uniqueName = %q, want doc-1.pdf", got)
	}
	if got := uniqueName(dir, "fresh.pdf"); got != "fresh.pdf" {
		t.Errorf("uniqueName = %q, want fresh.pdf", got)
	}
}
