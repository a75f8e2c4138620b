package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/timottowitz/covidvaccinedetox/internal/models"
)

// Seed inserts the sample documents into any collection that is still
// empty. Safe to call on every startup; a non-empty collection is left
// untouched.
func Seed(ctx context.Context, db *DB, now time.Time) error {
	n, err := db.count(ctx, "feed_items")
	if err != nil {
		return err
	}
	if n == 0 {
		for _, it := range sampleFeed(now) {
			if err := db.InsertFeedItem(ctx, it); err != nil {
				return err
			}
		}
	}

	n, err = db.count(ctx, "articles")
	if err != nil {
		return err
	}
	if n == 0 {
		for _, a := range sampleArticles() {
			if err := db.InsertArticle(ctx, a); err != nil {
				return err
			}
		}
	}

	n, err = db.count(ctx, "treatments")
	if err != nil {
		return err
	}
	if n == 0 {
		for _, t := range sampleTreatments(now) {
			if err := db.InsertTreatment(ctx, t); err != nil {
				return err
			}
		}
	}

	n, err = db.count(ctx, "media_items")
	if err != nil {
		return err
	}
	if n == 0 {
		for _, m := range sampleMedia(now) {
			if err := db.InsertMediaItem(ctx, m); err != nil {
				return err
			}
		}
	}

	return nil
}

func sampleFeed(now time.Time) []models.FeedItem {
	return []models.FeedItem{
		{
			ID:          uuid.NewString(),
			Type:        "article",
			Title:       "Spike Protein and Mitochondrial Stress",
			Summary:     "Overview of mitotoxic pathways linked to spike exposure.",
			URL:         "https://doi.org/10.1101/2024.01.01.000001",
			Tags:        []string{"spike protein", "mitochondria", "mechanisms"},
			PublishedAt: now,
			Source:      "bioRxiv",
		},
		{
			ID:          uuid.NewString(),
			Type:        "video",
			Title:       "Microglial Activation Deep Dive",
			Summary:     "Neuroinflammation pathways explained.",
			URL:         "https://youtu.be/dQw4w9WgXcQ",
			Tags:        []string{"neuroinflammation", "microglia"},
			PublishedAt: now,
			Source:      "YouTube",
		},
		{
			ID:          uuid.NewString(),
			Type:        "resource",
			Title:       "Bifidobacterium Decline Dataset",
			Summary:     "Microbiome shifts post mRNA vaccination.",
			URL:         "/resources/bifidobacterium-decrease.mp4",
			Tags:        []string{"gut", "bifidobacterium", "dysbiosis"},
			PublishedAt: now,
		},
	}
}

func sampleArticles() []models.ResearchArticle {
	return []models.ResearchArticle{
		{
			ID:            uuid.NewString(),
			Title:         "Spike Protein Toxicity: A Systems Review",
			Authors:       []string{"Doe J", "Smith A"},
			PublishedDate: time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
			DOI:           "10.1234/sys.2024.0715",
			Link:          "https://pubmed.ncbi.nlm.nih.gov/000000/",
			Abstract:      "Summarizes mechanisms including endothelial dysfunction and mitochondrial impact.",
			Keywords:      []string{"spike protein", "endothelium", "mitochondria"},
			Tags:          []string{"#spike", "#mitochondria", "#vascular"},
			CitationCount: 42,
		},
		{
			ID:            uuid.NewString(),
			Title:         "IgG4 Elevation after Repeated Exposure",
			Authors:       []string{"Lee K", "Patel R"},
			PublishedDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			DOI:           "10.5555/igg4.2024.0501",
			Link:          "https://www.medrxiv.org/content/early/2024/05/01/",
			Abstract:      "Explores immune class-switching toward IgG4 and tolerance patterns.",
			Keywords:      []string{"IgG4", "immune tolerance"},
			Tags:          []string{"#IgG4", "#immune"},
			CitationCount: 15,
		},
	}
}

func sampleTreatments(now time.Time) []models.Treatment {
	return []models.Treatment{
		{
			ID:         uuid.NewString(),
			Name:       "Nattokinase",
			Category:   "enzyme",
			Protocol:   "2000 FU twice daily with meals; review after 3 months.",
			Evidence:   "preclinical",
			References: []string{"10.3390/biomedicines11051304"},
			Tags:       []string{"spike protein", "fibrinolysis"},
			CreatedAt:  now,
		},
		{
			ID:         uuid.NewString(),
			Name:       "N-Acetylcysteine",
			Category:   "supplement",
			Protocol:   "600 mg twice daily; supports glutathione synthesis.",
			Evidence:   "observational",
			References: []string{"10.1016/j.freeradbiomed.2021.05.007"},
			Tags:       []string{"glutathione", "oxidative stress"},
			CreatedAt:  now,
		},
	}
}

func sampleMedia(now time.Time) []models.MediaItem {
	return []models.MediaItem{
		{
			ID:          uuid.NewString(),
			Title:       "Microglial Activation Deep Dive",
			Kind:        models.KindVideo,
			URL:         "https://youtu.be/dQw4w9WgXcQ",
			Tags:        []string{"neuroinflammation", "microglia"},
			PublishedAt: now,
			Source:      "YouTube",
		},
		{
			ID:          uuid.NewString(),
			Title:       "Lecture excerpt on immune tolerance",
			Kind:        models.KindAudio,
			URL:         "https://samplelib.com/lib/preview/mp3/sample-3s.mp3",
			Tags:        []string{"podcast", "lecture"},
			PublishedAt: now,
			Source:      "podcast",
		},
	}
}
