package rag

import (
	"math"
	"sort"
)

// Passage is one indexed chunk of a report together with its embedding.
type Passage struct {
	ReportID       string    `bson:"report_id" json:"report_id"`
	SequenceNumber int       `bson:"sequence_number" json:"sequence_number"`
	Text           string    `bson:"text" json:"text"`
	Vector         []float32 `bson:"vector" json:"vector"`
}

// PassageInput is a chunk awaiting indexing.
type PassageInput struct {
	SequenceNumber int
	Text           string
	Vector         []float32
}

// SearchResult pairs a passage with its similarity to the query vector.
type SearchResult struct {
	Passage Passage
	Score   float64
}

// VectorIndex is a flat per-report index searched by exhaustive cosine
// similarity. Report indexes are small enough that nothing fancier pays off.
type VectorIndex struct {
	ReportID  string
	Dimension int
	Passages  []Passage
}

// BuildIndex validates and assembles the index for one report. Every vector
// must share the dimension of the first; passages are stored in ascending
// sequence order regardless of input order.
func BuildIndex(reportID string, inputs []PassageInput) (*VectorIndex, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyIndex()
	}

	dim := len(inputs[0].Vector)
	if dim == 0 {
		return nil, ErrDimensionMismatch(1, 0)
	}

	passages := make([]Passage, 0, len(inputs))
	for _, in := range inputs {
		if len(in.Vector) != dim {
			return nil, ErrDimensionMismatch(dim, len(in.Vector))
		}
		passages = append(passages, Passage{
			ReportID:       reportID,
			SequenceNumber: in.SequenceNumber,
			Text:           in.Text,
			Vector:         in.Vector,
		})
	}

	sort.Slice(passages, func(i, j int) bool {
		return passages[i].SequenceNumber < passages[j].SequenceNumber
	})

	return &VectorIndex{ReportID: reportID, Dimension: dim, Passages: passages}, nil
}

// Search returns up to k passages ranked by cosine similarity, highest first.
// Equal scores break ties toward the earlier passage in the report.
func (idx *VectorIndex) Search(query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidArgument("k must be positive")
	}
	if len(query) != idx.Dimension {
		return nil, ErrDimensionMismatch(idx.Dimension, len(query))
	}

	results := make([]SearchResult, 0, len(idx.Passages))
	for _, p := range idx.Passages {
		results = append(results, SearchResult{
			Passage: p,
			Score:   cosineSimilarity(query, p.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Passage.SequenceNumber < results[j].Passage.SequenceNumber
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// cosineSimilarity accumulates in float64 so ranking is stable for the
// float32 vectors the embedding model produces. Zero vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
