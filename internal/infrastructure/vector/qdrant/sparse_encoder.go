package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	bm25K          = 1.2
	maxSparseTerms = 256
	minTokenLen    = 2
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {}, "for": {},
	"from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "shall": {}, "that": {},
	"the": {}, "this": {}, "to": {}, "under": {}, "was": {}, "will": {}, "with": {},
}

// encodeSparse turns text into a BM25-saturated term vector keyed by
// hashed tokens. The same function serves chunks and queries so their
// indices line up.
func encodeSparse(text string) sparseVector {
	tf := make(map[uint32]float64, 64)
	for _, token := range tokenize(text) {
		tf[hashToken(token)]++
	}
	return termFreqToSparse(tf)
}

func termFreqToSparse(tf map[uint32]float64) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	if len(indices) > maxSparseTerms {
		// keep the most frequent terms
		sort.Slice(indices, func(i, j int) bool {
			if tf[indices[i]] != tf[indices[j]] {
				return tf[indices[i]] > tf[indices[j]]
			}
			return indices[i] < indices[j]
		})
		indices = indices[:maxSparseTerms]
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		f := tf[idx]
		weight := (f * (bm25K + 1.0)) / (f + bm25K)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}
	return sparseVector{Indices: indices, Values: values}
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	if sum := h.Sum32(); sum != 0 {
		return sum
	}
	return 1
}

// tokenize lowercases and splits on anything that is not a letter or
// digit, dropping stopwords and single characters.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	flush := func(b *strings.Builder) {
		if b.Len() == 0 {
			return
		}
		tok := b.String()
		b.Reset()
		if len([]rune(tok)) < minTokenLen {
			return
		}
		if _, stop := stopwords[tok]; stop {
			return
		}
		out = append(out, tok)
	}

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush(&b)
	}
	flush(&b)
	return out
}
