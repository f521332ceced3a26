// Package semantic implements a lightweight near-duplicate text matcher:
// character n-gram vectors hashed into a fixed-size bucket space and
// compared by cosine similarity. It requires no external model or network
// call, trading precision for a zero-dependency, sub-millisecond match
// against a small set of known-bad examples.
package semantic

import (
	"math"
	"strings"

	"github.com/promptgate/gateway/internal/domain/policy"
)

const (
	defaultNgramMin = 3
	defaultNgramMax = 5
	buckets         = 128

	fnvOffset uint64 = 14695981039346656037
	fnvPrime  uint64 = 1099511628211
)

// Example is a compiled case example: its source text plus the dense,
// L2-normalized n-gram vector built from it.
type Example struct {
	Text   string
	Vector [buckets]float64
}

// Case is a compiled named cluster of examples.
type Case struct {
	ID          string
	Description string
	Examples    []Example
}

// Matcher is the compiled form of a policy.SemanticConfig, ready to score
// incoming text against every case's examples.
type Matcher struct {
	Enabled   bool
	AppliesTo policy.AppliesTo
	Action    policy.Action
	Threshold float64
	ngramMin  int
	ngramMax  int
	Cases     []Case
}

// Compile builds a Matcher from a semantic configuration block. Ngram
// bounds default to 3..5 characters, matching the reference detector this
// was ported from; NgramMax is floored to NgramMin if the document sets it
// lower.
func Compile(cfg policy.SemanticConfig) Matcher {
	nmin := defaultNgramMin
	if cfg.NgramMin != nil && *cfg.NgramMin > 0 {
		nmin = *cfg.NgramMin
	}
	nmax := defaultNgramMax
	if cfg.NgramMax != nil && *cfg.NgramMax > 0 {
		nmax = *cfg.NgramMax
	}
	if nmax < nmin {
		nmax = nmin
	}

	m := Matcher{
		Enabled:   cfg.Enabled,
		AppliesTo: cfg.AppliesTo,
		Action:    cfg.Action,
		Threshold: cfg.Threshold,
		ngramMin:  nmin,
		ngramMax:  nmax,
	}

	for _, c := range cfg.Cases {
		cc := Case{ID: c.ID, Description: c.Description}
		for _, ex := range c.Examples {
			cc.Examples = append(cc.Examples, Example{
				Text:   ex.Text,
				Vector: vectorize(ex.Text, nmin, nmax),
			})
		}
		m.Cases = append(m.Cases, cc)
	}

	return m
}

// Result is the best-scoring case match above threshold, if any.
type Result struct {
	CaseID      string
	Score       float64
	ExampleText string
}

// Evaluate scores text against every compiled case and returns the
// best-scoring match, or ok=false if nothing clears the configured
// threshold, the matcher is disabled, or it doesn't apply to kind.
//
// Input text is vectorized with the matcher's own configured n-gram range,
// consistent with how example texts were vectorized at compile time.
func (m Matcher) Evaluate(kind policy.Kind, text string) (Result, bool) {
	if !m.Enabled || !m.AppliesTo.Applies(kind) {
		return Result{}, false
	}

	input := vectorize(text, m.ngramMin, m.ngramMax)

	var best Result
	found := false
	for _, c := range m.Cases {
		for _, ex := range c.Examples {
			score := cosineSimilarity(input, ex.Vector)
			if !found || score > best.Score {
				best = Result{CaseID: c.ID, Score: score, ExampleText: ex.Text}
				found = true
			}
		}
	}

	if !found || best.Score < m.Threshold {
		return Result{}, false
	}
	return best, true
}

// vectorize normalizes text, slides an n-gram window of widths [nmin, nmax]
// across its characters, hashes each window with an FNV-1a-style mixer, and
// folds the result into a fixed-size L2-normalized dense vector.
func vectorize(text string, nmin, nmax int) [buckets]float64 {
	normalized := normalizeText(text)
	runes := []rune(normalized)

	counts := make(map[uint64]float64)
	for n := nmin; n <= nmax; n++ {
		if len(runes) < n {
			continue
		}
		for i := 0; i+n <= len(runes); i++ {
			h := fnvOffset
			for _, r := range runes[i : i+n] {
				h ^= uint64(r)
				h *= fnvPrime
			}
			counts[h]++
		}
	}

	var dense [buckets]float64
	for h, c := range counts {
		dense[h%buckets] += c
	}

	var norm float64
	for _, v := range dense {
		norm += v * v
	}
	if norm > 0 {
		inv := 1.0 / math.Sqrt(norm)
		for i := range dense {
			dense[i] *= inv
		}
	}
	return dense
}

// normalizeText lowercases s and collapses any run of whitespace to a
// single space, trimming leading/trailing space.
func normalizeText(s string) string {
	lower := strings.ToLower(s)
	fields := strings.Fields(lower)
	return strings.Join(fields, " ")
}

func cosineSimilarity(a, b [buckets]float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
