package rag

import "testing"

func makeIndex(t *testing.T, vectors ...[]float32) *VectorIndex {
	t.Helper()
	inputs := make([]PassageInput, len(vectors))
	for i, v := range vectors {
		inputs[i] = PassageInput{SequenceNumber: i, Text: "passage", Vector: v}
	}
	idx, err := BuildIndex("RPT-20250101120000-ABCDEF12", inputs)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return idx
}

func TestBuildIndexEmpty(t *testing.T) {
	_, err := BuildIndex("r1", nil)
	if CodeOf(err) != CodeEmptyIndex {
		t.Fatalf("expected empty_index, got %v", err)
	}
}

func TestBuildIndexDimensionMismatch(t *testing.T) {
	_, err := BuildIndex("r1", []PassageInput{
		{SequenceNumber: 0, Vector: []float32{1, 0, 0}},
		{SequenceNumber: 1, Vector: []float32{1, 0}},
	})
	if CodeOf(err) != CodeDimensionMismatch {
		t.Fatalf("expected dimension_mismatch, got %v", err)
	}
}

func TestBuildIndexOrdersBySequence(t *testing.T) {
	idx, err := BuildIndex("r1", []PassageInput{
		{SequenceNumber: 2, Vector: []float32{1, 0}},
		{SequenceNumber: 0, Vector: []float32{0, 1}},
		{SequenceNumber: 1, Vector: []float32{1, 1}},
	})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	for i, p := range idx.Passages {
		if p.SequenceNumber != i {
			t.Errorf("passage %d has sequence %d", i, p.SequenceNumber)
		}
	}
}

func TestSearchRanksBySimilarity(t *testing.T) {
	idx := makeIndex(t,
		[]float32{1, 0, 0},
		[]float32{0, 1, 0},
		[]float32{0.9, 0.1, 0},
	)
	results, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Passage.SequenceNumber != 0 {
		t.Errorf("top result should be passage 0, got %d", results[0].Passage.SequenceNumber)
	}
	if results[1].Passage.SequenceNumber != 2 {
		t.Errorf("second result should be passage 2, got %d", results[1].Passage.SequenceNumber)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("scores not descending: %f < %f", results[0].Score, results[1].Score)
	}
}

func TestSearchTieBreaksBySequence(t *testing.T) {
	// identical vectors score identically; earlier passage wins
	idx := makeIndex(t,
		[]float32{1, 1},
		[]float32{1, 1},
		[]float32{1, 1},
	)
	results, err := idx.Search([]float32{1, 1}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i, r := range results {
		if r.Passage.SequenceNumber != i {
			t.Errorf("result %d has sequence %d, want %d", i, r.Passage.SequenceNumber, i)
		}
	}
}

func TestSearchKLargerThanIndex(t *testing.T) {
	idx := makeIndex(t, []float32{1, 0}, []float32{0, 1})
	results, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected all 2 passages, got %d", len(results))
	}
}

func TestSearchInvalidK(t *testing.T) {
	idx := makeIndex(t, []float32{1, 0})
	for _, k := range []int{0, -1} {
		_, err := idx.Search([]float32{1, 0}, k)
		if CodeOf(err) != CodeInvalidArgument {
			t.Errorf("k=%d: expected invalid_argument, got %v", k, err)
		}
	}
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	idx := makeIndex(t, []float32{1, 0, 0})
	_, err := idx.Search([]float32{1, 0}, 1)
	if CodeOf(err) != CodeDimensionMismatch {
		t.Fatalf("expected dimension_mismatch, got %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cosineSimilarity(tc.a, tc.b)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosineSimilarity = %f, want %f", got, tc.want)
			}
		})
	}
}
