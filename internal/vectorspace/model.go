// Package vectorspace implements the shared TF-IDF term-weighting model the
// correlation engine projects activities and messages through.
//
// Cosine similarity is only meaningful when both sides share one vocabulary
// and one set of document-frequency statistics, so the model is fitted over
// the union of all activity and message texts in the current batch and
// refitted whenever the corpus changes. Fitting is not incremental.
package vectorspace

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// tokenRegex splits on everything that is not a word character. Tokens
// shorter than two characters are dropped.
var tokenRegex = regexp.MustCompile(`[^a-z0-9_]+`)

// Options configures the vector-space model.
type Options struct {
	// NGramMin and NGramMax bound the n-gram span used as terms.
	NGramMin int
	NGramMax int
	// MinDocFreq drops terms seen in fewer documents than this.
	MinDocFreq int
}

// Vector is a sparse term-weight vector in the fitted space.
type Vector map[string]float64

// Model is a TF-IDF vectorizer with english stop-word removal. One model
// instance is owned by one engine; it is not safe for concurrent use while
// fitting.
type Model struct {
	opts     Options
	idf      map[string]float64
	docCount int
	fitted   bool
}

// NewModel creates an unfitted model.
func NewModel(opts Options) *Model {
	if opts.NGramMin < 1 {
		opts.NGramMin = 1
	}
	if opts.NGramMax < opts.NGramMin {
		opts.NGramMax = opts.NGramMin
	}
	if opts.MinDocFreq < 1 {
		opts.MinDocFreq = 1
	}
	return &Model{opts: opts}
}

// Fitted reports whether Fit has completed.
func (m *Model) Fitted() bool {
	return m.fitted
}

// Fit builds the vocabulary and inverse-document-frequency statistics over
// the given corpus. Terms below the minimum document frequency are dropped.
func (m *Model) Fit(texts []string) {
	docFreq := make(map[string]int)

	for _, text := range texts {
		seen := make(map[string]bool)
		for _, term := range m.terms(text) {
			if !seen[term] {
				seen[term] = true
				docFreq[term]++
			}
		}
	}

	n := len(texts)
	idf := make(map[string]float64, len(docFreq))
	for term, df := range docFreq {
		if df < m.opts.MinDocFreq {
			continue
		}
		// Smoothed IDF, so no term ever gets a zero weight.
		idf[term] = math.Log(float64(1+n)/float64(1+df)) + 1
	}

	m.idf = idf
	m.docCount = n
	m.fitted = true
}

// Transform projects one text into the fitted space as an L2-normalized
// sparse vector. Calling Transform before Fit is a programming error.
func (m *Model) Transform(text string) (Vector, error) {
	if !m.fitted {
		return nil, fmt.Errorf("vectorspace: Transform called before Fit")
	}

	counts := make(map[string]int)
	for _, term := range m.terms(text) {
		if _, ok := m.idf[term]; ok {
			counts[term]++
		}
	}

	vec := make(Vector, len(counts))
	var norm float64
	for term, count := range counts {
		w := float64(count) * m.idf[term]
		vec[term] = w
		norm += w * w
	}

	if norm > 0 {
		norm = math.Sqrt(norm)
		for term := range vec {
			vec[term] /= norm
		}
	}

	return vec, nil
}

// VocabularySize returns the number of terms kept after fitting.
func (m *Model) VocabularySize() int {
	return len(m.idf)
}

// terms tokenizes a text and expands it into n-grams within the configured
// span, after stop-word removal.
func (m *Model) terms(text string) []string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	var terms []string
	for n := m.opts.NGramMin; n <= m.opts.NGramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// tokenize lowercases and splits a text into word tokens, dropping single
// characters and stop words.
func tokenize(text string) []string {
	parts := tokenRegex.Split(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) < 2 || stopWords[p] {
			continue
		}
		tokens = append(tokens, p)
	}
	return tokens
}

// Cosine returns the cosine similarity of two vectors. For the non-negative
// weights produced by Transform the result lies in [0, 1].
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	// Iterate the smaller vector.
	if len(b) < len(a) {
		a, b = b, a
	}

	var dot, normA, normB float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
		normA += wa * wa
	}
	if dot == 0 {
		return 0
	}
	for _, wb := range b {
		normB += wb * wb
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	return sim
}
