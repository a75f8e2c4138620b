package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/timottowitz/covidvaccinedetox/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "content-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSeed_PopulatesEmptyCollectionsOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := Seed(ctx, db, now); err != nil {
		t.Fatal(err)
	}

	feed, err := db.ListFeed(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) == 0 {
		t.Fatal("seed should populate the feed")
	}

	// A second seed leaves counts unchanged.
	if err := Seed(ctx, db, now); err != nil {
		t.Fatal(err)
	}
	feed2, err := db.ListFeed(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(feed2) != len(feed) {
		t.Errorf("second seed changed feed count: %d vs %d", len(feed2), len(feed))
	}
}

func TestFeed_UpsertByURL(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	item := models.FeedItem{
		ID:          uuid.NewString(),
		Type:        "article",
		Title:       "First",
		URL:         "https://example.org/a",
		Tags:        []string{"x"},
		PublishedAt: time.Now().UTC(),
	}
	isNew, err := db.UpsertFeedItemByURL(ctx, item)
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Error("first upsert should insert")
	}

	item.ID = uuid.NewString()
	isNew, err = db.UpsertFeedItemByURL(ctx, item)
	if err != nil {
		t.Fatal(err)
	}
	if isNew {
		t.Error("same URL should not insert again")
	}

	feed, err := db.ListFeed(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 1 {
		t.Errorf("feed count = %d, want 1", len(feed))
	}
}

func TestFeed_TagFilterIsSubstringCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	items := []models.FeedItem{
		{ID: uuid.NewString(), Type: "article", Title: "A", URL: "u1", Tags: []string{"Spike Protein"}, PublishedAt: now},
		{ID: uuid.NewString(), Type: "article", Title: "B", URL: "u2", Tags: []string{"gut"}, PublishedAt: now},
	}
	for _, it := range items {
		if err := db.InsertFeedItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.ListFeed(ctx, "spike")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Title != "A" {
		t.Errorf("tag filter result = %+v", got)
	}
}

func TestArticles_SortByCitations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	older := models.ResearchArticle{
		ID: uuid.NewString(), Title: "Old but cited",
		PublishedDate: time.Now().UTC().Add(-48 * time.Hour), CitationCount: 100,
	}
	newer := models.ResearchArticle{
		ID: uuid.NewString(), Title: "New but uncited",
		PublishedDate: time.Now().UTC(), CitationCount: 1,
	}
	for _, a := range []models.ResearchArticle{older, newer} {
		if err := db.InsertArticle(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	byDate, err := db.ListArticles(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if byDate[0].Title != "New but uncited" {
		t.Errorf("default sort should be newest first, got %q", byDate[0].Title)
	}

	byCitations, err := db.ListArticles(ctx, "", "citation_count")
	if err != nil {
		t.Fatal(err)
	}
	if byCitations[0].Title != "Old but cited" {
		t.Errorf("citation sort should rank the cited article first, got %q", byCitations[0].Title)
	}
}

func TestTreatments_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tr := models.Treatment{
		ID:         uuid.NewString(),
		Name:       "Nattokinase",
		Category:   "supplement",
		Protocol:   "2000 FU twice daily",
		References: []string{"doi:10/example"},
		Tags:       []string{"fibrinolysis"},
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.InsertTreatment(ctx, tr); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListTreatments(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("treatments = %+v", got)
	}
	if got[0].Name != "Nattokinase" || len(got[0].References) != 1 {
		t.Errorf("round trip lost fields: %+v", got[0])
	}
}

func TestStatusChecks_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, name := range []string{"first", "second"} {
		check := models.StatusCheck{
			ID:         uuid.NewString(),
			ClientName: name,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.InsertStatusCheck(ctx, check); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.ListStatusChecks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ClientName != "second" {
		t.Errorf("status checks should be newest first: %+v", got)
	}
}
