// Package storage defines the uniform persistence contract used by the
// detector and ships four implementations: an in-memory backend, an
// embedded single-file relational backend (sqlite), a client/server
// relational backend with native vector ops (postgres/pgvector), and a
// file-snapshot backend that bypasses the per-record contract.
package storage

import (
	"context"

	"github.com/repomemory/dupcore/internal/types"
)

// MaxBulkLoad caps how many records GetAll returns in one call; callers
// must treat the result as a paginated snapshot, not a live cursor.
const MaxBulkLoad = 10000

// ScoredID is one hit of a vector search: an identifier and its cosine
// similarity against the stored text embedding.
type ScoredID struct {
	ID    int64
	Score float64
}

// Storage is the backend contract every duplicate-detection storage
// adapter implements.
type Storage interface {
	// Save upserts a record by identifier.
	Save(ctx context.Context, rec *types.Record) error
	// Get returns the record for id, or nil if it does not exist.
	Get(ctx context.Context, id int64) (*types.Record, error)
	// GetAll returns up to MaxBulkLoad records with embeddings intact.
	GetAll(ctx context.Context) ([]*types.Record, error)
	// Search returns the top-k ids by cosine similarity against the
	// stored text embedding, descending by score.
	Search(ctx context.Context, queryVec []float64, k int) ([]ScoredID, error)
	// Delete removes the record for id, if any.
	Delete(ctx context.Context, id int64) error
	// Close releases any resources (connection pools, file handles).
	Close() error
}

// AnalyticsStorage is the optional capability backends may expose for
// long-term observability. The core only calls these paths
// when the configured storage implements this interface.
type AnalyticsStorage interface {
	SaveCheck(ctx context.Context, rec types.CheckedRecord) error
	GetAnalytics(ctx context.Context) (Analytics, error)
}

// Analytics is the summary+timeline shape AnalyticsStorage.GetAnalytics
// returns.
type Analytics struct {
	Summary  AnalyticsSummary  `json:"summary"`
	Timeline []AnalyticsBucket `json:"timeline"`
}

// AnalyticsSummary aggregates check outcomes over the life of the index.
type AnalyticsSummary struct {
	TotalChecks    int `json:"total_checks"`
	DuplicateCount int `json:"duplicate_count"`
	PossibleCount  int `json:"possible_count"`
	UniqueCount    int `json:"unique_count"`
}

// AnalyticsBucket is one point on the check-outcome timeline.
type AnalyticsBucket struct {
	TimestampMs    int64 `json:"timestamp_ms"`
	DuplicateCount int   `json:"duplicate_count"`
	PossibleCount  int   `json:"possible_count"`
	UniqueCount    int   `json:"unique_count"`
}

// SupportsNativeSearch is implemented by backends whose Search delegates
// to a native index rather than a full in-process scan, letting the
// detector log whether it used an ANN index or degraded to a scan.
type SupportsNativeSearch interface {
	NativeSearch() bool
}
