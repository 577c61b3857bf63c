package usecase

import (
	"fmt"
	"sort"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

const defaultRRFK = 60

// FuseRRF merges two best-first lists with Reciprocal Rank Fusion. A
// chunk scores 1/(k+rank+1) for each list it appears in. Equal scores
// keep first-seen order: every chunk of a, then the new chunks of b.
func FuseRRF(a, b []domain.SearchResult, k, topK int) []domain.SearchResult {
	if k <= 0 {
		k = defaultRRFK
	}

	order := make([]string, 0, len(a)+len(b))
	byKey := make(map[string]domain.SearchResult, len(a)+len(b))
	scores := make(map[string]float64, len(a)+len(b))

	addList := func(list []domain.SearchResult) {
		for rank, result := range list {
			key := searchResultKey(result)
			if _, seen := byKey[key]; !seen {
				order = append(order, key)
				byKey[key] = result
			}
			scores[key] += 1.0 / float64(k+rank+1)
		}
	}
	addList(a)
	addList(b)

	out := make([]domain.SearchResult, 0, len(order))
	for _, key := range order {
		result := byKey[key]
		result.Score = scores[key]
		out = append(out, result)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return trimResults(out, topK)
}

func trimResults(results []domain.SearchResult, limit int) []domain.SearchResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}

func searchResultKey(result domain.SearchResult) string {
	if result.ChunkID != "" {
		return result.ChunkID
	}
	return fmt.Sprintf("%s:%d", result.DocumentID, result.ChunkIndex)
}
