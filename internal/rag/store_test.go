package rag

import (
	"context"
	"sync"
	"testing"
)

type memoryIndexStorage struct {
	mu      sync.Mutex
	indexes map[string]*VectorIndex
	loads   int
	saves   int
}

func newMemoryIndexStorage() *memoryIndexStorage {
	return &memoryIndexStorage{indexes: make(map[string]*VectorIndex)}
}

func (m *memoryIndexStorage) Load(_ context.Context, reportID string) (*VectorIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	idx, ok := m.indexes[reportID]
	if !ok {
		return nil, ErrIndexMissing
	}
	return idx, nil
}

func (m *memoryIndexStorage) Save(_ context.Context, index *VectorIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.indexes[index.ReportID] = index
	return nil
}

func (m *memoryIndexStorage) Delete(_ context.Context, reportID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.indexes, reportID)
	return nil
}

func testIndex(t *testing.T, reportID string, n int) *VectorIndex {
	t.Helper()
	inputs := make([]PassageInput, n)
	for i := range inputs {
		inputs[i] = PassageInput{SequenceNumber: i, Text: "passage", Vector: []float32{float32(i), 1}}
	}
	idx, err := BuildIndex(reportID, inputs)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return idx
}

func TestIndexStoreMiss(t *testing.T) {
	store := NewIndexStore(newMemoryIndexStorage(), 4)
	_, err := store.GetOrLoad(context.Background(), "missing")
	if CodeOf(err) != CodeReportNotProcessed {
		t.Fatalf("expected report_not_processed, got %v", err)
	}
}

func TestIndexStoreLoadsOnce(t *testing.T) {
	storage := newMemoryIndexStorage()
	store := NewIndexStore(storage, 4)
	ctx := context.Background()

	if err := store.Put(ctx, testIndex(t, "r1", 3)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	store.Evict("r1")

	for i := 0; i < 3; i++ {
		if _, err := store.GetOrLoad(ctx, "r1"); err != nil {
			t.Fatalf("GetOrLoad: %v", err)
		}
	}
	if storage.loads != 1 {
		t.Errorf("expected 1 storage load, got %d", storage.loads)
	}
}

func TestIndexStoreReplaceVisibleImmediately(t *testing.T) {
	storage := newMemoryIndexStorage()
	store := NewIndexStore(storage, 4)
	ctx := context.Background()

	if err := store.Put(ctx, testIndex(t, "r1", 2)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, testIndex(t, "r1", 5)); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	idx, err := store.GetOrLoad(ctx, "r1")
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if len(idx.Passages) != 5 {
		t.Errorf("expected replacement index with 5 passages, got %d", len(idx.Passages))
	}
	if storage.saves != 2 {
		t.Errorf("expected 2 saves, got %d", storage.saves)
	}
}

func TestIndexStoreEvictReloads(t *testing.T) {
	storage := newMemoryIndexStorage()
	store := NewIndexStore(storage, 4)
	ctx := context.Background()

	if err := store.Put(ctx, testIndex(t, "r1", 2)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	store.Evict("r1")
	if store.ResidentCount() != 0 {
		t.Fatalf("expected empty cache after evict, got %d", store.ResidentCount())
	}

	idx, err := store.GetOrLoad(ctx, "r1")
	if err != nil {
		t.Fatalf("GetOrLoad after evict: %v", err)
	}
	if len(idx.Passages) != 2 {
		t.Errorf("reloaded index has %d passages, want 2", len(idx.Passages))
	}
}

func TestIndexStoreBoundsResidents(t *testing.T) {
	storage := newMemoryIndexStorage()
	store := NewIndexStore(storage, 2)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := store.Put(ctx, testIndex(t, id, 1)); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}
	if store.ResidentCount() != 2 {
		t.Fatalf("expected 2 resident indexes, got %d", store.ResidentCount())
	}

	// r1 was least recently used; loading it again hits storage
	before := storage.loads
	if _, err := store.GetOrLoad(ctx, "r1"); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if storage.loads != before+1 {
		t.Errorf("expected evicted index to reload from storage")
	}
}

func TestIndexStoreLoadLocksPruned(t *testing.T) {
	storage := newMemoryIndexStorage()
	store := NewIndexStore(storage, 2)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		id := "r" + string(rune('a'+i))
		if err := store.Put(ctx, testIndex(t, id, 1)); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}

	store.loadMu.Lock()
	locks := len(store.loads)
	store.loadMu.Unlock()
	if locks > store.maxResident {
		t.Errorf("load lock map holds %d entries, want at most %d", locks, store.maxResident)
	}
}

func TestIndexStoreDrop(t *testing.T) {
	storage := newMemoryIndexStorage()
	store := NewIndexStore(storage, 4)
	ctx := context.Background()

	if err := store.Put(ctx, testIndex(t, "r1", 2)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Drop(ctx, "r1"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	_, err := store.GetOrLoad(ctx, "r1")
	if CodeOf(err) != CodeReportNotProcessed {
		t.Fatalf("expected report_not_processed after drop, got %v", err)
	}
}

func TestIndexStoreConcurrentAccess(t *testing.T) {
	storage := newMemoryIndexStorage()
	store := NewIndexStore(storage, 8)
	ctx := context.Background()

	if err := store.Put(ctx, testIndex(t, "r1", 3)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetOrLoad(ctx, "r1"); err != nil {
				t.Errorf("GetOrLoad: %v", err)
			}
		}()
	}
	wg.Wait()
}
