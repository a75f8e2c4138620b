package summarize

import (
	"strings"
	"testing"
)

func TestSummarize_PicksDominantSentencesInDocumentOrder(t *testing.T) {
	text := "Mitochondria produce energy for the cell. " +
		"The committee met on Tuesday. " +
		"Mitochondria mitochondria support mitochondria recovery."

	summary, points := Summarize(text, 2)

	if !strings.Contains(summary, "Mitochondria produce energy") {
		t.Errorf("summary should include the first mitochondria sentence, got %q", summary)
	}
	if !strings.Contains(summary, "support mitochondria recovery") {
		t.Errorf("summary should include the repeated-term sentence, got %q", summary)
	}
	if strings.Contains(summary, "committee") {
		t.Errorf("low-signal sentence should be dropped, got %q", summary)
	}
	// Selected sentences come back in original order.
	first := strings.Index(summary, "produce energy")
	second := strings.Index(summary, "support mitochondria")
	if first > second {
		t.Errorf("sentences out of document order: %q", summary)
	}

	if len(points) == 0 || points[0] != "Mitochondria" {
		t.Errorf("top key point should be Mitochondria, got %v", points)
	}
	if len(points) > 6 {
		t.Errorf("at most 6 key points, got %d", len(points))
	}
}

func TestSummarize_Deterministic(t *testing.T) {
	text := "Spike protein binds receptors. Nattokinase degrades spike protein. " +
		"Glutathione supports clearance. Spike protein persists in tissue."

	s1, p1 := Summarize(text, 2)
	for i := 0; i < 10; i++ {
		s2, p2 := Summarize(text, 2)
		if s1 != s2 {
			t.Fatalf("summary not deterministic: %q vs %q", s1, s2)
		}
		if strings.Join(p1, "|") != strings.Join(p2, "|") {
			t.Fatalf("key points not deterministic: %v vs %v", p1, p2)
		}
	}
}

func TestSummarize_DegenerateTextFallsBackToTruncatedFirstLine(t *testing.T) {
	// Stop words only: no term weights, so the fallback path runs.
	text := strings.TrimSpace(strings.Repeat("the and of to ", 30))

	summary, points := Summarize(text, 3)

	if len(points) != 0 {
		t.Errorf("degenerate text should yield no key points, got %v", points)
	}
	runes := []rune(summary)
	if len(runes) != 280+3 {
		t.Errorf("fallback length = %d runes, want 283", len(runes))
	}
	if !strings.HasSuffix(summary, "...") {
		t.Errorf("truncated fallback should end with ellipsis, got %q", summary)
	}
}

func TestSummarize_ShortTextReturnedWhole(t *testing.T) {
	summary, _ := Summarize("Just one plain sentence here.", 3)
	if summary != "Just one plain sentence here." {
		t.Errorf("short text should survive untouched, got %q", summary)
	}
}

func TestAnswer_MatchesAndRanksDocuments(t *testing.T) {
	docs := []Document{
		{Title: "Baking bread", Text: "Flour, water, salt, and yeast make bread.", Link: "/knowledge/bread.md", Type: "knowledge"},
		{Title: "Nattokinase protocol", Text: "Nattokinase degrades spike protein and supports fibrinolysis. Nattokinase is dosed twice daily.", Link: "/knowledge/nattokinase.md", Type: "knowledge"},
		{Title: "Spike protein overview", Text: "The spike protein binds ACE2 receptors.", Link: "/knowledge/spike.md", Type: "knowledge"},
	}

	answer, refs := Answer("Does nattokinase degrade spike protein?", docs)

	if answer == NotFoundAnswer {
		t.Fatal("expected an answer, got not-found")
	}
	if len(refs) == 0 {
		t.Fatal("expected references")
	}
	if refs[0].Title != "Nattokinase protocol" {
		t.Errorf("best reference = %q, want Nattokinase protocol", refs[0].Title)
	}
	for _, r := range refs {
		if r.Title == "Baking bread" {
			t.Error("unrelated document should not be referenced")
		}
	}
}

func TestAnswer_NoMatchReturnsNotFound(t *testing.T) {
	docs := []Document{
		{Title: "Baking bread", Text: "Flour, water, salt, and yeast.", Type: "knowledge"},
	}
	answer, refs := Answer("What is quantum chromodynamics?", docs)
	if answer != NotFoundAnswer {
		t.Errorf("expected not-found answer, got %q", answer)
	}
	if len(refs) != 0 {
		t.Errorf("expected no references, got %v", refs)
	}
}

func TestAnswer_EmptyQuestionOrCorpus(t *testing.T) {
	if answer, _ := Answer("", []Document{{Title: "x", Text: "y"}}); answer != NotFoundAnswer {
		t.Errorf("empty question should be not-found, got %q", answer)
	}
	if answer, _ := Answer("nattokinase", nil); answer != NotFoundAnswer {
		t.Errorf("empty corpus should be not-found, got %q", answer)
	}
}

func TestSplitSentences_KeepsPunctuationAndDecimals(t *testing.T) {
	got := splitSentences("Take 2.5 mg daily. Does it help? Yes!")
	want := []string{"Take 2.5 mg daily.", "Does it help?", "Yes!"}
	if len(got) != len(want) {
		t.Fatalf("got %d sentences %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
