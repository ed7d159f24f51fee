package rag

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

// ErrIndexMissing is returned by IndexStorage implementations when no index
// document exists for a report. The store translates it for callers.
var ErrIndexMissing = errors.New("index not found")

// IndexStorage persists one index document per report.
type IndexStorage interface {
	Load(ctx context.Context, reportID string) (*VectorIndex, error)
	Save(ctx context.Context, index *VectorIndex) error
	Delete(ctx context.Context, reportID string) error
}

// IndexStore fronts IndexStorage with a bounded resident cache. At most
// MaxResident indexes stay in memory; the least recently used is evicted
// when the bound is hit. Loads for the same report are single-flighted.
type IndexStore struct {
	storage     IndexStorage
	maxResident int

	mu       sync.Mutex
	resident map[string]*residentEntry
	order    *list.List // front = most recently used

	loadMu sync.Mutex
	loads  map[string]*sync.Mutex
}

type residentEntry struct {
	index   *VectorIndex
	element *list.Element
}

const DefaultMaxResident = 32

func NewIndexStore(storage IndexStorage, maxResident int) *IndexStore {
	if maxResident <= 0 {
		maxResident = DefaultMaxResident
	}
	return &IndexStore{
		storage:     storage,
		maxResident: maxResident,
		resident:    make(map[string]*residentEntry),
		order:       list.New(),
		loads:       make(map[string]*sync.Mutex),
	}
}

// GetOrLoad returns the resident index for reportID, loading it from storage
// on a miss. A missing index surfaces as ErrReportNotProcessed.
func (s *IndexStore) GetOrLoad(ctx context.Context, reportID string) (*VectorIndex, error) {
	if idx := s.get(reportID); idx != nil {
		return idx, nil
	}

	lock := s.loadLock(reportID)
	lock.Lock()
	defer lock.Unlock()

	// another goroutine may have loaded it while we waited
	if idx := s.get(reportID); idx != nil {
		return idx, nil
	}

	idx, err := s.storage.Load(ctx, reportID)
	if err != nil {
		if errors.Is(err, ErrIndexMissing) {
			return nil, ErrReportNotProcessed(reportID)
		}
		return nil, err
	}
	s.put(reportID, idx)
	return idx, nil
}

// Put persists the index and replaces any resident copy atomically from the
// caller's point of view: readers see either the old index or the new one.
func (s *IndexStore) Put(ctx context.Context, index *VectorIndex) error {
	lock := s.loadLock(index.ReportID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.storage.Save(ctx, index); err != nil {
		return err
	}
	s.put(index.ReportID, index)
	return nil
}

// Evict drops the resident copy without touching storage.
func (s *IndexStore) Evict(reportID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(reportID)
}

// Drop removes the index from storage and memory.
func (s *IndexStore) Drop(ctx context.Context, reportID string) error {
	lock := s.loadLock(reportID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.storage.Delete(ctx, reportID); err != nil {
		return err
	}
	s.Evict(reportID)
	return nil
}

// ResidentCount reports how many indexes are currently in memory.
func (s *IndexStore) ResidentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resident)
}

func (s *IndexStore) get(reportID string) *VectorIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.resident[reportID]
	if !ok {
		return nil
	}
	s.order.MoveToFront(entry.element)
	return entry.index
}

func (s *IndexStore) put(reportID string, index *VectorIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.resident[reportID]; ok {
		entry.index = index
		s.order.MoveToFront(entry.element)
		return
	}

	for len(s.resident) >= s.maxResident {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.removeLocked(oldest.Value.(string))
	}

	elem := s.order.PushFront(reportID)
	s.resident[reportID] = &residentEntry{index: index, element: elem}
}

func (s *IndexStore) removeLocked(reportID string) {
	if entry, ok := s.resident[reportID]; ok {
		s.order.Remove(entry.element)
		delete(s.resident, reportID)
	}
	// prune the load lock too, so the lock map stays bounded with the
	// resident set; a waiter holding the old lock just loses single-flight
	s.loadMu.Lock()
	delete(s.loads, reportID)
	s.loadMu.Unlock()
}

func (s *IndexStore) loadLock(reportID string) *sync.Mutex {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	lock, ok := s.loads[reportID]
	if !ok {
		lock = &sync.Mutex{}
		s.loads[reportID] = lock
	}
	return lock
}
