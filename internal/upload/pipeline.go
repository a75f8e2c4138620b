package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/timottowitz/covidvaccinedetox/internal/apperr"
	"github.com/timottowitz/covidvaccinedetox/internal/catalog"
	"github.com/timottowitz/covidvaccinedetox/internal/ingest"
	"github.com/timottowitz/covidvaccinedetox/internal/models"
	"github.com/timottowitz/covidvaccinedetox/internal/sse"
	"github.com/timottowitz/covidvaccinedetox/internal/thumbnail"
)

const (
	// DefaultMaxUploadBytes bounds accepted uploads at 100 MB.
	DefaultMaxUploadBytes = 100 << 20

	sniffLen         = 512
	thumbSeekSeconds = 2.0
	processTimeout   = 10 * time.Minute
)

// allowedMIMETypes are the content types uploads may carry, either declared
// or sniffed.
var allowedMIMETypes = map[string]struct{}{
	"application/pdf": {},
	"video/mp4":       {},
	"video/quicktime": {},
	"video/webm":      {},
}

// Request carries one validated upload into the pipeline.
type Request struct {
	File           multipart.File
	Filename       string
	Size           int64
	DeclaredType   string
	Title          string
	Tags           []string
	Description    string
	IdempotencyKey string
}

// Processor validates uploads synchronously, then persists and catalogs
// them in the background while clients poll the task tracker.
type Processor struct {
	resourcesDir string
	maxBytes     int64
	tracker      *Tracker
	sidecar      *catalog.Sidecar
	thumbs       *thumbnail.Generator
	scheduler    *ingest.Scheduler
	broker       *sse.Broker
	logger       *slog.Logger
}

// NewProcessor wires the upload pipeline.
func NewProcessor(resourcesDir string, maxBytes int64, tracker *Tracker, sidecar *catalog.Sidecar,
	thumbs *thumbnail.Generator, scheduler *ingest.Scheduler, broker *sse.Broker, logger *slog.Logger) *Processor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Processor{
		resourcesDir: resourcesDir,
		maxBytes:     maxBytes,
		tracker:      tracker,
		sidecar:      sidecar,
		thumbs:       thumbs,
		scheduler:    scheduler,
		broker:       broker,
		logger:       logger,
	}
}

// Tracker exposes the task tracker for status lookups.
func (p *Processor) Tracker() *Tracker { return p.tracker }

// Submit either replays the matching idempotent task or validates req,
// registers a new task, and starts background processing. Replays return
// the existing task as-is, without looking at the new payload; validation
// failures happen before any task exists, so rejected uploads leave no
// trace.
func (p *Processor) Submit(req Request) (Task, error) {
	if req.IdempotencyKey != "" {
		if task, ok := p.tracker.GetByKey(req.IdempotencyKey); ok {
			return task, nil
		}
	}

	if req.Size > p.maxBytes {
		return Task{}, fmt.Errorf("%w: %d bytes (limit %d)", apperr.ErrTooLarge, req.Size, p.maxBytes)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(req.File, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Task{}, fmt.Errorf("upload: read: %w", err)
	}
	head = head[:n]
	if _, err := req.File.Seek(0, io.SeekStart); err != nil {
		return Task{}, fmt.Errorf("upload: rewind: %w", err)
	}

	if err := checkMIME(head, req.DeclaredType); err != nil {
		return Task{}, err
	}

	task, created := p.tracker.Create(req.IdempotencyKey, req.Filename)
	if !created {
		return task, nil
	}

	go p.process(task.TaskID, req)
	return task, nil
}

// checkMIME accepts the upload when either the sniffed or the declared
// content type is in the allow list. Sniffing wins for the common case;
// the declared type covers containers http.DetectContentType cannot name
// (e.g. some mov files sniff as application/octet-stream).
func checkMIME(head []byte, declared string) error {
	sniffed := http.DetectContentType(head)
	if _, ok := allowedMIMETypes[normalizeMIME(sniffed)]; ok {
		return nil
	}
	if _, ok := allowedMIMETypes[normalizeMIME(declared)]; ok {
		return nil
	}
	return fmt.Errorf("%w: %s", apperr.ErrUnsupportedType, sniffed)
}

func normalizeMIME(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// process runs the background stages: persist file, catalog it, generate a
// thumbnail, enqueue ingestion, then complete the task. Any stage failure
// fails the task with a client-safe message.
func (p *Processor) process(taskID string, req Request) {
	defer req.File.Close()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("upload: panic", slog.String("task_id", taskID), slog.Any("panic", r))
			p.fail(taskID, "internal error while processing upload")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	p.tracker.MarkProcessing(taskID)
	p.broker.PublishTaskEvent(taskID, StatusProcessing)

	filename, err := p.persistFile(req)
	if err != nil {
		p.logger.Error("upload: persist failed", slog.String("task_id", taskID), slog.String("error", err.Error()))
		p.fail(taskID, "could not store the uploaded file")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	res := models.Resource{
		Title:       title,
		Filename:    filename,
		URL:         path.Join("/resources", filename),
		Tags:        req.Tags,
		Description: strings.TrimSpace(req.Description),
	}

	jobID, jobType := "", ""
	res.Normalize(time.Now().UTC())
	if p.scheduler != nil {
		jobType = p.scheduler.JobTypeFor(res.Kind)
	}

	stored, err := p.sidecar.Upsert(res)
	if err != nil {
		p.logger.Error("upload: catalog failed", slog.String("task_id", taskID), slog.String("error", err.Error()))
		p.fail(taskID, "could not catalog the uploaded file")
		return
	}

	if p.thumbs != nil {
		if url := p.thumbs.Ensure(ctx, stored, thumbSeekSeconds); url != "" {
			stored.ThumbnailURL = url
			stored, _ = p.sidecar.Upsert(stored)
		}
	}

	if p.scheduler != nil && jobType != "" {
		jobID, jobType = p.scheduler.Schedule(stored)
		if jobID != "" {
			stored.KnowledgeJob = jobID
			stored.KnowledgeType = jobType
			stored, _ = p.sidecar.Upsert(stored)
		}
	}

	p.tracker.MarkCompleted(taskID, stored)
	p.broker.PublishTaskEvent(taskID, StatusCompleted)
	p.logger.Info("upload: completed",
		slog.String("task_id", taskID),
		slog.String("resource_id", stored.ID),
		slog.String("job_id", jobID))
}

func (p *Processor) fail(taskID, message string) {
	p.tracker.MarkFailed(taskID, message)
	p.broker.PublishTaskEvent(taskID, StatusFailed)
}

// persistFile streams the upload into the resources directory under a
// sanitized, collision-free name and returns that name.
func (p *Processor) persistFile(req Request) (string, error) {
	if err := os.MkdirAll(p.resourcesDir, 0o755); err != nil {
		return "", err
	}

	base := thumbnail.Slug(filepath.Base(req.Filename))
	if base == "" {
		base = "upload"
	}
	name := uniqueName(p.resourcesDir, base+strings.ToLower(filepath.Ext(req.Filename)))

	dst, err := os.Create(filepath.Join(p.resourcesDir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(req.File, p.maxBytes+1)); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Sync(); err != nil {
		return "", err
	}
	return name, nil
}

// uniqueName appends -1, -2, ... before the extension until the name is
// free in dir.
func uniqueName(dir, name string) string {
	if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
	}
}
