// Package summarize implements the local extractive summarizer and the
// keyword-overlap answer engine. Everything runs in memory over plain text;
// no model or external service is involved.
package summarize

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	defaultMaxSentences = 3
	answerMaxSentences  = 5
	maxKeyPoints        = 6
	minKeywordLen       = 4 // keywords and key points must be longer than 3 chars
	fallbackRuneLimit   = 280
	maxAnswerSources    = 3
)

// NotFoundAnswer is returned when no document matches the question.
const NotFoundAnswer = "I could not find anything relevant in the local knowledge base for that question."

var (
	tokenRe = regexp.MustCompile(`[a-z0-9']+`)

	stopWords = map[string]struct{}{
		"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
		"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
		"he": {}, "her": {}, "his": {}, "in": {}, "is": {}, "it": {}, "its": {},
		"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "their": {},
		"them": {}, "there": {}, "these": {}, "they": {}, "this": {}, "to": {},
		"was": {}, "we": {}, "were": {}, "what": {}, "when": {}, "which": {},
		"who": {}, "will": {}, "with": {}, "you": {}, "your": {}, "how": {},
		"why": {}, "does": {}, "do": {}, "can": {}, "about": {}, "into": {},
		"than": {}, "then": {}, "also": {}, "not": {}, "been": {}, "after": {},
		"more": {}, "most": {}, "some": {}, "such": {}, "over": {}, "between": {},
	}
)

// Document is one answerable unit of the corpus, rendered flat.
type Document struct {
	Title string
	Text  string
	Link  string
	Type  string
}

// Reference points back at a source document used in an answer.
type Reference struct {
	Title string `json:"title"`
	Link  string `json:"link,omitempty"`
	Type  string `json:"type"`
}

// Summarize scores sentences by normalized term frequency and returns the
// top maxSentences in original document order, plus capitalized key points.
func Summarize(text string, maxSentences int) (string, []string) {
	if maxSentences <= 0 {
		maxSentences = defaultMaxSentences
	}

	sentences := splitSentences(text)
	weights := termWeights(tokenize(text))

	if len(sentences) == 0 || len(weights) == 0 {
		return fallbackSummary(text), []string{}
	}

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, 0, len(sentences))
	for i, s := range sentences {
		toks := tokenize(s)
		if len(toks) == 0 {
			continue
		}
		var sum float64
		for _, t := range toks {
			sum += weights[t]
		}
		// Length-normalized so long sentences are not favored.
		ranked = append(ranked, scored{index: i, score: sum / float64(len(toks))})
	}
	if len(ranked) == 0 {
		return fallbackSummary(text), []string{}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		return ranked[a].index < ranked[b].index
	})
	if len(ranked) > maxSentences {
		ranked = ranked[:maxSentences]
	}

	// Re-emit selected sentences in document order for readability.
	picked := make([]int, len(ranked))
	for i, r := range ranked {
		picked[i] = r.index
	}
	sort.Ints(picked)

	parts := make([]string, len(picked))
	for i, idx := range picked {
		parts[i] = sentences[idx]
	}

	return strings.Join(parts, " "), keyPoints(weights)
}

// Answer ranks documents by keyword overlap with the question and
// summarizes the best matches into a short answer with references.
func Answer(question string, docs []Document) (string, []Reference) {
	keywords := questionKeywords(question)
	if len(keywords) == 0 || len(docs) == 0 {
		return NotFoundAnswer, []Reference{}
	}

	type scored struct {
		index int
		score float64
	}
	var ranked []scored
	for i, doc := range docs {
		toks := tokenize(doc.Title + ". " + doc.Text)
		if len(toks) == 0 {
			continue
		}
		counts := make(map[string]int, len(toks))
		for _, t := range toks {
			counts[t]++
		}
		var matches, repeats int
		for _, kw := range keywords {
			if n := counts[kw]; n > 0 {
				matches++
				repeats += n - 1
			}
		}
		if matches == 0 {
			continue
		}
		score := (float64(matches) + 0.2*float64(repeats)) / math.Sqrt(float64(len(toks))+1)
		ranked = append(ranked, scored{index: i, score: score})
	}
	if len(ranked) == 0 {
		return NotFoundAnswer, []Reference{}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		return ranked[a].index < ranked[b].index
	})
	if len(ranked) > maxAnswerSources {
		ranked = ranked[:maxAnswerSources]
	}

	var combined strings.Builder
	refs := make([]Reference, 0, len(ranked))
	for _, r := range ranked {
		doc := docs[r.index]
		fmt.Fprintf(&combined, "%s. %s ", doc.Title, doc.Text)
		refs = append(refs, Reference{Title: doc.Title, Link: doc.Link, Type: doc.Type})
	}

	answer, _ := Summarize(combined.String(), answerMaxSentences)
	return answer, refs
}

// splitSentences cuts text on .!? boundaries followed by whitespace,
// keeping the terminal punctuation with each sentence.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		s := strings.TrimSpace(string(runes[start : i+1]))
		if s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

func tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// termWeights builds a stop-word-filtered frequency table normalized by the
// maximum observed frequency, so every weight lies in [0,1].
func termWeights(tokens []string) map[string]float64 {
	freq := make(map[string]int)
	max := 0
	for _, t := range tokens {
		if _, stop := stopWords[t]; stop {
			continue
		}
		freq[t]++
		if freq[t] > max {
			max = freq[t]
		}
	}
	if max == 0 {
		return nil
	}
	weights := make(map[string]float64, len(freq))
	for t, n := range freq {
		weights[t] = float64(n) / float64(max)
	}
	return weights
}

// keyPoints returns the top content words by weight, capitalized.
func keyPoints(weights map[string]float64) []string {
	type wt struct {
		word   string
		weight float64
	}
	var candidates []wt
	for w, v := range weights {
		if len(w) >= minKeywordLen {
			candidates = append(candidates, wt{word: w, weight: v})
		}
	}
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].weight != candidates[b].weight {
			return candidates[a].weight > candidates[b].weight
		}
		return candidates[a].word < candidates[b].word
	})
	if len(candidates) > maxKeyPoints {
		candidates = candidates[:maxKeyPoints]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = capitalize(c.word)
	}
	return out
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func questionKeywords(question string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, t := range tokenize(question) {
		if _, stop := stopWords[t]; stop {
			continue
		}
		if len(t) < minKeywordLen {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// fallbackSummary returns the first line truncated to 280 characters.
func fallbackSummary(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexAny(line, "\n\r"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	runes := []rune(line)
	if len(runes) > fallbackRuneLimit {
		return string(runes[:fallbackRuneLimit]) + "..."
	}
	return line
}
