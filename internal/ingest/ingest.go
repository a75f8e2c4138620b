// Package ingest turns uploaded resources into markdown knowledge documents
// in the background.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/timottowitz/covidvaccinedetox/internal/catalog"
	"github.com/timottowitz/covidvaccinedetox/internal/frontmatter"
	"github.com/timottowitz/covidvaccinedetox/internal/knowledge"
	"github.com/timottowitz/covidvaccinedetox/internal/models"
	"github.com/timottowitz/covidvaccinedetox/internal/summarize"
	"github.com/timottowitz/covidvaccinedetox/internal/thumbnail"
)

const (
	// JobTypePDF extracts and summarizes PDF text.
	JobTypePDF = "pdf_chunks"
	// JobTypeVideo summarizes video title and description.
	JobTypeVideo = "video_summary"

	defaultJobTimeout = 5 * time.Minute
	summarySentences  = 8
	maxPDFPages       = 50
)

// Ingestor produces the markdown body of a knowledge document for one
// resource kind.
type Ingestor interface {
	JobType() string
	Ingest(ctx context.Context, res models.Resource) (string, error)
}

// Scheduler dispatches ingestion jobs by resource kind and supervises them
// with a shared errgroup so shutdown waits for in-flight documents.
type Scheduler struct {
	knowledgeDir string
	resourcesDir string
	sidecar      *catalog.Sidecar
	ingestors    map[string]Ingestor
	timeout      time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	group  *errgroup.Group
	runCtx context.Context
}

// NewScheduler creates a scheduler writing documents into knowledgeDir and
// reading uploaded files from resourcesDir.
func NewScheduler(knowledgeDir, resourcesDir string, sidecar *catalog.Sidecar, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		knowledgeDir: knowledgeDir,
		resourcesDir: resourcesDir,
		sidecar:      sidecar,
		timeout:      defaultJobTimeout,
		logger:       logger,
	}
	s.ingestors = map[string]Ingestor{
		models.KindPDF:   &pdfIngestor{resourcesDir: resourcesDir},
		models.KindVideo: &videoIngestor{},
	}
	return s
}

// Run ties job supervision to ctx. It blocks until ctx is cancelled and all
// in-flight jobs have finished. Jobs scheduled before Run starts run
// unsupervised on a background context.
func (s *Scheduler) Run(ctx context.Context) error {
	group, runCtx := errgroup.WithContext(ctx)
	s.mu.Lock()
	s.group = group
	s.runCtx = runCtx
	s.mu.Unlock()

	<-ctx.Done()
	return group.Wait()
}

// JobTypeFor returns the job type an upload of this kind will trigger, or
// empty string when the kind has no ingestor.
func (s *Scheduler) JobTypeFor(kind string) string {
	ing, ok := s.ingestors[kind]
	if !ok {
		return ""
	}
	return ing.JobType()
}

// Schedule starts a background ingestion job for res and returns the job id
// and type. Resources with no ingestor for their kind return empty values
// and no job.
func (s *Scheduler) Schedule(res models.Resource) (jobID, jobType string) {
	ing, ok := s.ingestors[res.Kind]
	if !ok {
		return "", ""
	}

	jobID = uuid.NewString()
	jobType = ing.JobType()

	s.mu.Lock()
	group, base := s.group, s.runCtx
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}

	run := func() error {
		ctx, cancel := context.WithTimeout(base, s.timeout)
		defer cancel()
		s.runJob(ctx, jobID, ing, res)
		return nil
	}

	if group != nil {
		group.Go(run)
	} else {
		go func() { _ = run() }()
	}
	return jobID, jobType
}

// runJob produces the document and backfills the sidecar link. Failures are
// logged; the resource simply stays without a knowledge document until a
// retry or manual reconcile.
func (s *Scheduler) runJob(ctx context.Context, jobID string, ing Ingestor, res models.Resource) {
	logger := s.logger.With(
		slog.String("job_id", jobID),
		slog.String("job_type", ing.JobType()),
		slog.String("resource_id", res.ID))
	logger.Info("ingest: job started")

	body, err := ing.Ingest(ctx, res)
	if err != nil {
		logger.Error("ingest: job failed", slog.String("error", err.Error()))
		return
	}

	name := docName(res)
	meta := map[string]interface{}{
		"title":       res.Title,
		"source":      res.URL,
		"type":        ing.JobType(),
		"date":        time.Now().UTC().Format("2006-01-02"),
		"resource_id": res.ID,
	}
	if len(res.Tags) > 0 {
		meta["tags"] = res.Tags
	}

	data, err := frontmatter.Compose(meta, body)
	if err != nil {
		logger.Error("ingest: compose failed", slog.String("error", err.Error()))
		return
	}
	if err := knowledge.WriteAtomic(filepath.Join(s.knowledgeDir, name), data); err != nil {
		logger.Error("ingest: write failed", slog.String("error", err.Error()))
		return
	}

	docURL := path.Join("/knowledge", name)
	hash := frontmatter.BodyHash(data)
	if err := s.sidecar.SetKnowledge(res.ID, docURL, hash); err != nil {
		logger.Error("ingest: sidecar backfill failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("ingest: job completed", slog.String("doc", name))
}

// docName derives a stable markdown filename from the resource title,
// falling back to its id for untitled resources.
func docName(res models.Resource) string {
	base := thumbnail.Slug(strings.TrimSuffix(res.Title, filepath.Ext(res.Title)))
	if base == "" {
		base = res.ID
	}
	return base + ".md"
}

// pdfIngestor extracts text from the uploaded PDF and emits an extractive
// summary plus key points.
type pdfIngestor struct {
	resourcesDir string
}

func (p *pdfIngestor) JobType() string { return JobTypePDF }

func (p *pdfIngestor) Ingest(ctx context.Context, res models.Resource) (string, error) {
	src := filepath.Join(p.resourcesDir, res.Filename)
	if res.Filename == "" {
		src = filepath.Join(p.resourcesDir, path.Base(res.URL))
	}

	text, err := extractPDFText(ctx, src)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("ingest: %s: no extractable text", res.Filename)
	}

	summary, points := summarize.Summarize(text, summarySentences)

	var b strings.Builder
	b.WriteString("# " + res.Title + "\n\n")
	b.WriteString("## Summary\n\n")
	b.WriteString(summary + "\n")
	if len(points) > 0 {
		b.WriteString("\n## Key Points\n\n")
		for _, kp := range points {
			b.WriteString("- " + kp + "\n")
		}
	}
	return b.String(), nil
}

func extractPDFText(ctx context.Context, src string) (string, error) {
	doc, err := fitz.New(src)
	if err != nil {
		return "", fmt.Errorf("ingest: open pdf: %w", err)
	}
	defer doc.Close()

	var b strings.Builder
	pages := doc.NumPage()
	if pages > maxPDFPages {
		pages = maxPDFPages
	}
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(i)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// videoIngestor summarizes whatever textual metadata the video carries.
// Frame or audio analysis is out of scope; title and description are what
// the catalog knows.
type videoIngestor struct{}

func (v *videoIngestor) JobType() string { return JobTypeVideo }

func (v *videoIngestor) Ingest(_ context.Context, res models.Resource) (string, error) {
	text := strings.TrimSpace(res.Title + ". " + res.Description)
	summary, points := summarize.Summarize(text, summarySentences)

	var b strings.Builder
	b.WriteString("# " + res.Title + "\n\n")
	b.WriteString("## Summary\n\n")
	b.WriteString(summary + "\n")
	if len(points) > 0 {
		b.WriteString("\n## Key Points\n\n")
		for _, kp := range points {
			b.WriteString("- " + kp + "\n")
		}
	}
	return b.String(), nil
}
