// Package sqlite implements the embedded single-file relational storage
// backend on top of database/sql and mattn/go-sqlite3. It
// keeps an in-memory mirror of every record's text embedding for Search,
// following the cache-plus-scan shape used elsewhere in the pack for
// sqlite-backed vector stores.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/repomemory/dupcore/internal/storage"
	"github.com/repomemory/dupcore/internal/types"
)

type cachedVector struct {
	id   int64
	vec  []float64
	norm float64
}

// Storage implements storage.Storage and storage.AnalyticsStorage using
// a single sqlite file (or ":memory:" for an ephemeral instance).
type Storage struct {
	db *sql.DB

	mu     sync.RWMutex
	cache  []cachedVector
	loaded bool
}

// New opens (creating if necessary) the sqlite database at path and
// initializes its schema in WAL mode.
func New(path string) (*Storage, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Storage{db: db}, nil
}

func serializeVector(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func deserializeVector(data []byte) []float64 {
	vec := make([]float64, len(data)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vec
}

func vectorNorm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// loadCache reads every record's id and text embedding into memory.
// Must be called with mu held for writing.
func (s *Storage) loadCache(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text_embedding FROM records`)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var cache []cachedVector
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return fmt.Errorf("failed to scan record: %w", err)
		}
		vec := deserializeVector(blob)
		cache = append(cache, cachedVector{id: id, vec: vec, norm: vectorNorm(vec)})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating records: %w", err)
	}

	s.cache = cache
	s.loaded = true
	return nil
}

func (s *Storage) ensureCache(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.loadCache(ctx)
}

func (s *Storage) Save(ctx context.Context, rec *types.Record) error {
	filesJSON, err := json.Marshal(rec.Files)
	if err != nil {
		return fmt.Errorf("failed to encode files: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, title, description, files, text_embedding, diff_embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			files = excluded.files,
			text_embedding = excluded.text_embedding,
			diff_embedding = excluded.diff_embedding,
			created_at = excluded.created_at
	`, rec.ID, rec.Title, rec.Description, string(filesJSON),
		serializeVector(rec.TextEmbedding), serializeVector(rec.DiffEmbedding), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save record %d: %w", rec.ID, err)
	}

	if s.loaded {
		vec := rec.TextEmbedding
		entry := cachedVector{id: rec.ID, vec: vec, norm: vectorNorm(vec)}
		replaced := false
		for i := range s.cache {
			if s.cache[i].id == rec.ID {
				s.cache[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			s.cache = append(s.cache, entry)
		}
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, id int64) (*types.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, files, text_embedding, diff_embedding, created_at
		FROM records WHERE id = ?
	`, id)
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (*types.Record, error) {
	var rec types.Record
	var filesJSON string
	var textBlob, diffBlob []byte

	err := row.Scan(&rec.ID, &rec.Title, &rec.Description, &filesJSON, &textBlob, &diffBlob, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &rec.Files); err != nil {
		return nil, fmt.Errorf("failed to decode files: %w", err)
	}
	rec.TextEmbedding = deserializeVector(textBlob)
	rec.DiffEmbedding = deserializeVector(diffBlob)
	return &rec, nil
}

func (s *Storage) GetAll(ctx context.Context) ([]*types.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, files, text_embedding, diff_embedding, created_at
		FROM records ORDER BY created_at DESC LIMIT ?
	`, storage.MaxBulkLoad)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []*types.Record
	for rows.Next() {
		var rec types.Record
		var filesJSON string
		var textBlob, diffBlob []byte
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, &filesJSON, &textBlob, &diffBlob, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(filesJSON), &rec.Files); err != nil {
			return nil, fmt.Errorf("failed to decode files: %w", err)
		}
		rec.TextEmbedding = deserializeVector(textBlob)
		rec.DiffEmbedding = deserializeVector(diffBlob)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Search uses the in-memory cache loaded from sqlite and computes
// cosine similarity in-process; sqlite carries no native vector index.
func (s *Storage) Search(ctx context.Context, queryVec []float64, k int) ([]storage.ScoredID, error) {
	s.mu.Lock()
	if err := s.ensureCache(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	queryNorm := vectorNorm(queryVec)
	hits := make([]storage.ScoredID, 0, len(s.cache))
	for _, c := range s.cache {
		var score float64
		if queryNorm != 0 && c.norm != 0 {
			var dot float64
			n := len(queryVec)
			if len(c.vec) < n {
				n = len(c.vec)
			}
			for i := 0; i < n; i++ {
				dot += queryVec[i] * c.vec[i]
			}
			score = dot / (queryNorm * c.norm)
		}
		hits = append(hits, storage.ScoredID{ID: c.id, Score: score})
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

func (s *Storage) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete record %d: %w", id, err)
	}
	if s.loaded {
		filtered := s.cache[:0]
		for _, c := range s.cache {
			if c.id != id {
				filtered = append(filtered, c)
			}
		}
		s.cache = filtered
	}
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) NativeSearch() bool { return false }

// SaveCheck implements storage.AnalyticsStorage by appending one row to
// the check_results audit trail.
func (s *Storage) SaveCheck(ctx context.Context, rec types.CheckedRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO check_results (id, result_type, original_id, confidence, timestamp_ms)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, string(rec.ResultType), rec.OriginalID, rec.Confidence, rec.TimestampMs)
	if err != nil {
		return fmt.Errorf("failed to save check result: %w", err)
	}
	return nil
}

// GetAnalytics implements storage.AnalyticsStorage's aggregate summary
// plus a per-day timeline bucketed from timestamp_ms.
func (s *Storage) GetAnalytics(ctx context.Context) (storage.Analytics, error) {
	var summary storage.AnalyticsSummary
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN result_type = 'duplicate' THEN 1 ELSE 0 END),
			SUM(CASE WHEN result_type = 'possible' THEN 1 ELSE 0 END),
			SUM(CASE WHEN result_type = 'unique' THEN 1 ELSE 0 END)
		FROM check_results
	`)
	var dup, poss, uniq sql.NullInt64
	if err := row.Scan(&summary.TotalChecks, &dup, &poss, &uniq); err != nil {
		return storage.Analytics{}, fmt.Errorf("failed to summarize analytics: %w", err)
	}
	summary.DuplicateCount = int(dup.Int64)
	summary.PossibleCount = int(poss.Int64)
	summary.UniqueCount = int(uniq.Int64)

	const dayMs = 86400000
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			(timestamp_ms / ?) * ?,
			SUM(CASE WHEN result_type = 'duplicate' THEN 1 ELSE 0 END),
			SUM(CASE WHEN result_type = 'possible' THEN 1 ELSE 0 END),
			SUM(CASE WHEN result_type = 'unique' THEN 1 ELSE 0 END)
		FROM check_results
		GROUP BY 1
		ORDER BY 1 ASC
	`, dayMs, dayMs)
	if err != nil {
		return storage.Analytics{}, fmt.Errorf("failed to bucket analytics timeline: %w", err)
	}
	defer rows.Close()

	var timeline []storage.AnalyticsBucket
	for rows.Next() {
		var b storage.AnalyticsBucket
		if err := rows.Scan(&b.TimestampMs, &b.DuplicateCount, &b.PossibleCount, &b.UniqueCount); err != nil {
			return storage.Analytics{}, fmt.Errorf("failed to scan analytics bucket: %w", err)
		}
		timeline = append(timeline, b)
	}
	if err := rows.Err(); err != nil {
		return storage.Analytics{}, err
	}

	return storage.Analytics{Summary: summary, Timeline: timeline}, nil
}
