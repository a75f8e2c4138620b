package knowledge

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// titleSimilarity returns the Jaccard word-overlap ratio of two titles.
// Titles are case-folded, hyphens/underscores become spaces, and any file
// extension is stripped before tokenizing.
func titleSimilarity(a, b string) float64 {
	wa := titleWords(a)
	wb := titleWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	inter := 0
	union := len(wb)
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func titleWords(title string) map[string]struct{} {
	// Strip a trailing file extension but leave dotted phrases alone.
	if ext := filepath.Ext(title); ext != "" && len(ext) <= 6 && !strings.ContainsAny(ext, " \t") {
		title = strings.TrimSuffix(title, ext)
	}
	title = strings.ToLower(title)
	title = strings.NewReplacer("-", " ", "_", " ").Replace(title)

	out := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(title, -1) {
		out[w] = struct{}{}
	}
	return out
}

// dateProximity maps the gap between two dates onto [0,1]: same day 1.0,
// within a week 2/3, within a month 1/3, otherwise 0. Scaled by the
// configured date weight this yields the 0.3 / 0.2 / 0.1 contribution.
func dateProximity(a, b time.Time) float64 {
	days := a.Sub(b).Hours() / 24
	if days < 0 {
		days = -days
	}
	switch {
	case sameDay(a, b):
		return 1.0
	case days <= 7:
		return 2.0 / 3.0
	case days <= 30:
		return 1.0 / 3.0
	default:
		return 0
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
