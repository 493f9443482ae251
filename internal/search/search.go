package search

import (
	"fmt"
	"math"
	"sort"

	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/models"
)

// Scored pairs a record with its similarity to the query.
type Scored struct {
	Record models.Record
	Score  float64
}

// Cosine computes the cosine similarity dot(a,b)/(|a|*|b|) between two
// vectors of equal dimensionality. A mismatch is an error, never a silent
// truncation.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Rank scores every record against the query vector and returns them in
// descending score order. Ties keep the records' original order, so results
// are reproducible for identical inputs.
func Rank(query []float32, records []models.Record) ([]Scored, error) {
	scored := make([]Scored, 0, len(records))
	for _, rec := range records {
		score, err := Cosine(query, rec.Embedding)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		scored = append(scored, Scored{Record: rec, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored, nil
}
