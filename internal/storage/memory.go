package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/repomemory/dupcore/internal/types"
	"github.com/repomemory/dupcore/internal/vectormath"
)

// MemoryStorage is the volatile backend: a map keyed by identifier,
// with Search performing a full scan.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[int64]*types.Record
}

// NewMemoryStorage constructs an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[int64]*types.Record)}
}

func (m *MemoryStorage) Save(_ context.Context, rec *types.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := cloneRecord(rec)
	m.records[rec.ID] = clone
	return nil
}

func (m *MemoryStorage) Get(_ context.Context, id int64) (*types.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

func (m *MemoryStorage) GetAll(_ context.Context) ([]*types.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, cloneRecord(rec))
		if len(out) >= MaxBulkLoad {
			break
		}
	}
	return out, nil
}

func (m *MemoryStorage) Search(_ context.Context, queryVec []float64, k int) ([]ScoredID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]ScoredID, 0, len(m.records))
	for id, rec := range m.records {
		hits = append(hits, ScoredID{ID: id, Score: vectormath.Cosine(queryVec, rec.TextEmbedding)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryStorage) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) NativeSearch() bool { return false }

func cloneRecord(rec *types.Record) *types.Record {
	clone := *rec
	clone.Files = append([]string(nil), rec.Files...)
	clone.TextEmbedding = append([]float64(nil), rec.TextEmbedding...)
	clone.DiffEmbedding = append([]float64(nil), rec.DiffEmbedding...)
	return &clone
}
