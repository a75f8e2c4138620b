// Package knowledge manages the generated markdown knowledge documents:
// reconciling them against resource records, listing them, and watching the
// directory for changes.
package knowledge

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/timottowitz/covidvaccinedetox/internal/catalog"
	"github.com/timottowitz/covidvaccinedetox/internal/checksum"
	"github.com/timottowitz/covidvaccinedetox/internal/frontmatter"
	"github.com/timottowitz/covidvaccinedetox/internal/models"
)

// publicPrefix is where knowledge documents are served from.
const publicPrefix = "/knowledge"

// ReconcileConfig carries the fuzzy-match tuning. The constants are
// empirical; they are configuration, not invariants.
type ReconcileConfig struct {
	Threshold   float64
	TitleWeight float64
	DateWeight  float64
}

// DefaultReconcileConfig returns the stock 0.5 / 0.7 / 0.3 tuning.
func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{Threshold: 0.5, TitleWeight: 0.7, DateWeight: 0.3}
}

// Reconciler links knowledge documents to resource records.
type Reconciler struct {
	dir     string
	sidecar *catalog.Sidecar
	cfg     ReconcileConfig
	logger  *slog.Logger
}

// NewReconciler creates a reconciler over the knowledge directory.
func NewReconciler(dir string, sidecar *catalog.Sidecar, cfg ReconcileConfig, logger *slog.Logger) *Reconciler {
	return &Reconciler{dir: dir, sidecar: sidecar, cfg: cfg, logger: logger}
}

// Reconcile runs one pass over every markdown file in the knowledge
// directory. Matching precedence per document: explicit resource_id, then
// stored content hash, then fuzzy title/date similarity. All sidecar
// changes are applied in a single batch write; a second pass over
// unchanged inputs reports everything as skipped. Existing knowledge links
// are never removed, only added or reported as conflicts.
func (r *Reconciler) Reconcile() (*models.ReconcileReport, error) {
	report := models.NewReconcileReport()

	names, err := r.listDocs()
	if err != nil {
		return report, err
	}
	if len(names) == 0 {
		return report, nil
	}

	err = r.sidecar.Mutate(func(resources []models.Resource) []models.Resource {
		for _, name := range names {
			r.reconcileDoc(name, resources, report)
		}
		return resources
	})
	if err != nil {
		return report, fmt.Errorf("reconcile: persist links: %w", err)
	}
	return report, nil
}

func (r *Reconciler) listDocs() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reconcile: read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// reconcileDoc processes one document against the resource list in place.
func (r *Reconciler) reconcileDoc(name string, resources []models.Resource, report *models.ReconcileReport) {
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		report.Skipped = append(report.Skipped, fmt.Sprintf("%s: unreadable (%v)", name, err))
		return
	}

	doc := frontmatter.Parse(data)
	hash := checksum.Sum([]byte(doc.Body))
	docURL := path.Join(publicPrefix, name)

	// Tier 1: explicit resource_id reference.
	if id := doc.ResourceID(); id != "" {
		if idx := indexByID(resources, id); idx >= 0 {
			r.applyMatch(name, docURL, hash, &resources[idx], "by resource_id", report)
			return
		}
	}

	// Tier 2: stored content hash.
	if idx := indexByHash(resources, hash); idx >= 0 {
		r.applyMatch(name, docURL, hash, &resources[idx], "by hash", report)
		return
	}

	// Tier 3: fuzzy title/date similarity against unlinked resources.
	idx, score := r.bestFuzzyMatch(doc, name, resources)
	if idx < 0 {
		report.Skipped = append(report.Skipped, fmt.Sprintf("%s: no match", name))
		return
	}

	res := &resources[idx]
	res.KnowledgeURL = docURL
	res.KnowledgeHash = hash
	report.Linked = append(report.Linked,
		fmt.Sprintf("%s -> %s (fuzzy %.2f)", name, res.Title, score))

	if doc.ResourceID() == "" {
		r.injectResourceID(name, data, res.ID)
	}
}

// applyMatch handles a document whose target resource is already known.
// The resource is linked if free, reported as a conflict if it points at a
// different document, or refreshed/skipped if it already points here.
func (r *Reconciler) applyMatch(name, docURL, hash string, res *models.Resource, how string, report *models.ReconcileReport) {
	switch res.KnowledgeURL {
	case "":
		res.KnowledgeURL = docURL
		res.KnowledgeHash = hash
		report.Linked = append(report.Linked, fmt.Sprintf("%s -> %s (%s)", name, res.Title, how))
	case docURL:
		if res.KnowledgeHash != hash {
			res.KnowledgeHash = hash
			report.Updated = append(report.Updated, fmt.Sprintf("%s: refreshed hash for %s", name, res.Title))
		} else {
			report.Skipped = append(report.Skipped, fmt.Sprintf("%s: already linked to %s", name, res.Title))
		}
	default:
		report.Conflicts = append(report.Conflicts,
			fmt.Sprintf("%s: %s already linked to %s", name, res.Title, res.KnowledgeURL))
	}
}

func (r *Reconciler) bestFuzzyMatch(doc *frontmatter.Doc, name string, resources []models.Resource) (int, float64) {
	title := doc.Title()
	if title == "" {
		title = strings.TrimSuffix(name, ".md")
	}
	docDate, hasDate := doc.Date()

	best := -1
	bestScore := 0.0
	for i := range resources {
		if resources[i].KnowledgeURL != "" {
			continue
		}
		score := r.cfg.TitleWeight * titleSimilarity(title, resources[i].Title)
		if hasDate {
			score += r.cfg.DateWeight * dateProximity(docDate, resources[i].UploadedAt)
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < r.cfg.Threshold {
		return -1, 0
	}
	return best, bestScore
}

// injectResourceID rewrites the document's front matter with a resource_id
// back-reference. Failures are logged; the link itself still stands.
func (r *Reconciler) injectResourceID(name string, data []byte, id string) {
	updated, err := frontmatter.WithResourceID(data, id)
	if err != nil {
		r.logger.Warn("reconcile: inject resource_id failed", slog.String("doc", name), slog.String("error", err.Error()))
		return
	}
	if err := WriteAtomic(filepath.Join(r.dir, name), updated); err != nil {
		r.logger.Warn("reconcile: rewrite failed", slog.String("doc", name), slog.String("error", err.Error()))
	}
}

func indexByID(resources []models.Resource, id string) int {
	for i := range resources {
		if resources[i].ID == id {
			return i
		}
	}
	return -1
}

func indexByHash(resources []models.Resource, hash string) int {
	if hash == "" {
		return -1
	}
	for i := range resources {
		if resources[i].KnowledgeHash == hash {
			return i
		}
	}
	return -1
}
