// Package postgres implements the client/server relational storage
// backend with a native vector type: a connection-
// pooled pgx client whose Search delegates to a pgvector ANN index when
// the extension is available, degrading to a full scan otherwise.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repomemory/dupcore/internal/storage"
	"github.com/repomemory/dupcore/internal/types"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// VectorDim is the embedding dimension this index's records will
	// carry, parameterized at schema-creation time. Inserts with a
	// mismatched embedding length fail with storage_error.
	VectorDim int

	// ConnectRetries and ConnectBackoff govern the exponential-backoff
	// retry loop New uses when the initial connection attempt fails.
	ConnectRetries int
	ConnectBackoff time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "dupcore",
		User:            "dupcore",
		SSLMode:         "prefer",
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		VectorDim:       512,
		ConnectRetries:  5,
		ConnectBackoff:  500 * time.Millisecond,
	}
}

// Storage implements storage.Storage and storage.AnalyticsStorage on
// top of a pgxpool connection pool.
type Storage struct {
	pool        *pgxpool.Pool
	dim         int
	hasPgvector bool
}

// New opens a connection pool to cfg, making up to cfg.ConnectRetries
// connection attempts in total with exponential backoff between them
// before surfacing a storage error. It
// then initializes the schema, attempting to create the
// pgvector extension and its ANN index; when the extension is absent
// the index creation degrades to a no-op and Search later falls back
// to a full scan.
func New(ctx context.Context, cfg *Config) (*Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.VectorDim <= 0 {
		cfg.VectorDim = 512
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, types.NewStorageError("postgres.New", fmt.Errorf("parse connection string: %w", err))
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := connectWithRetry(ctx, poolConfig, cfg.ConnectRetries, cfg.ConnectBackoff)
	if err != nil {
		return nil, err
	}

	s := &Storage{pool: pool, dim: cfg.VectorDim}

	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, types.NewStorageError("postgres.New", fmt.Errorf("initialize schema: %w", err))
	}

	return s, nil
}

// connectWithRetry implements a bounded exponential-backoff retry loop
// around the initial connection attempt.
func connectWithRetry(ctx context.Context, poolConfig *pgxpool.Config, retries int, backoff time.Duration) (*pgxpool.Pool, error) {
	if retries < 1 {
		retries = 1
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	wait := backoff
	for attempt := 0; attempt < retries; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				return pool, nil
			} else {
				pool.Close()
				lastErr = pingErr
			}
		} else {
			lastErr = err
		}

		if attempt == retries-1 {
			break
		}

		log.Printf("[STORAGE-POSTGRES] connect attempt %d/%d failed, retrying in %v: %v", attempt+1, retries, wait, lastErr)

		select {
		case <-ctx.Done():
			return nil, types.NewStorageError("postgres.connect", ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}

	return nil, types.NewStorageError("postgres.connect", fmt.Errorf("exhausted %d connection attempts: %w", retries, lastErr))
}

func (s *Storage) initSchema(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("[STORAGE-POSTGRES] pgvector extension unavailable, degrading to double precision[] + full scan: %v", err)
		s.hasPgvector = false
	} else {
		s.hasPgvector = true
	}

	columnType := vectorColumnType(s.dim, s.hasPgvector)
	stmt := fmt.Sprintf(schemaBase, columnType)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	if s.hasPgvector {
		if _, err := conn.Exec(ctx, vectorIndexSQL); err != nil {
			log.Printf("[STORAGE-POSTGRES] failed to create ANN index, degrading to full scan: %v", err)
			s.hasPgvector = false
		}
	}
	return nil
}

func (s *Storage) validateDim(rec *types.Record) error {
	if s.dim <= 0 {
		return nil
	}
	if len(rec.TextEmbedding) != s.dim || len(rec.DiffEmbedding) != s.dim {
		return types.NewStorageError("postgres.Save", fmt.Errorf(
			"embedding dimension mismatch: index is configured for D=%d, got text=%d diff=%d",
			s.dim, len(rec.TextEmbedding), len(rec.DiffEmbedding)))
	}
	return nil
}

func (s *Storage) Save(ctx context.Context, rec *types.Record) error {
	if err := s.validateDim(rec); err != nil {
		return err
	}

	filesJSON, err := json.Marshal(rec.Files)
	if err != nil {
		return types.NewStorageError("postgres.Save", fmt.Errorf("encode files: %w", err))
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO records (id, title, description, files, text_embedding, diff_embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			files = excluded.files,
			text_embedding = excluded.text_embedding,
			diff_embedding = excluded.diff_embedding,
			created_at = excluded.created_at
	`, rec.ID, rec.Title, rec.Description, filesJSON,
		encodeVector(rec.TextEmbedding, s.hasPgvector), encodeVector(rec.DiffEmbedding, s.hasPgvector), rec.CreatedAt)
	if err != nil {
		return types.NewStorageError("postgres.Save", fmt.Errorf("save record %d: %w", rec.ID, err))
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, id int64) (*types.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, description, files, text_embedding, diff_embedding, created_at
		FROM records WHERE id = $1
	`, id)
	rec, err := s.scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewStorageError("postgres.Get", err)
	}
	return rec, nil
}

func (s *Storage) scanRecord(row pgx.Row) (*types.Record, error) {
	var rec types.Record
	var filesJSON []byte
	var textVec, diffVec interface{}

	if err := row.Scan(&rec.ID, &rec.Title, &rec.Description, &filesJSON, &textVec, &diffVec, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(filesJSON, &rec.Files); err != nil {
		return nil, fmt.Errorf("decode files: %w", err)
	}
	rec.TextEmbedding = decodeVector(textVec)
	rec.DiffEmbedding = decodeVector(diffVec)
	return &rec, nil
}

func (s *Storage) GetAll(ctx context.Context) ([]*types.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, files, text_embedding, diff_embedding, created_at
		FROM records ORDER BY created_at DESC LIMIT $1
	`, storage.MaxBulkLoad)
	if err != nil {
		return nil, types.NewStorageError("postgres.GetAll", err)
	}
	defer rows.Close()

	var out []*types.Record
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, types.NewStorageError("postgres.GetAll", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("postgres.GetAll", err)
	}
	return out, nil
}

// Search delegates to the pgvector ANN index with ORDER BY <=> when
// available, and otherwise performs a full scan with cosine computed
// in-process, both producing equivalent descending-score ordering.
func (s *Storage) Search(ctx context.Context, queryVec []float64, k int) ([]storage.ScoredID, error) {
	if s.hasPgvector {
		return s.searchNative(ctx, queryVec, k)
	}
	return s.searchFullScan(ctx, queryVec, k)
}

func (s *Storage) searchNative(ctx context.Context, queryVec []float64, k int) ([]storage.ScoredID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, 1 - (text_embedding <=> $1) AS score
		FROM records
		ORDER BY text_embedding <=> $1
		LIMIT $2
	`, encodeVector(queryVec, true), k)
	if err != nil {
		return nil, types.NewStorageError("postgres.Search", err)
	}
	defer rows.Close()

	var hits []storage.ScoredID
	for rows.Next() {
		var h storage.ScoredID
		if err := rows.Scan(&h.ID, &h.Score); err != nil {
			return nil, types.NewStorageError("postgres.Search", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *Storage) searchFullScan(ctx context.Context, queryVec []float64, k int) ([]storage.ScoredID, error) {
	records, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	hits := make([]storage.ScoredID, 0, len(records))
	for _, rec := range records {
		hits = append(hits, storage.ScoredID{ID: rec.ID, Score: cosine(queryVec, rec.TextEmbedding)})
	}
	sortScoredDesc(hits)
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *Storage) Delete(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM records WHERE id = $1`, id); err != nil {
		return types.NewStorageError("postgres.Delete", fmt.Errorf("delete record %d: %w", id, err))
	}
	return nil
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

func (s *Storage) NativeSearch() bool { return s.hasPgvector }

func (s *Storage) BackendName() string { return "postgres" }

// SaveCheck implements storage.AnalyticsStorage.
func (s *Storage) SaveCheck(ctx context.Context, rec types.CheckedRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO check_results (id, result_type, original_id, confidence, timestamp_ms)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, string(rec.ResultType), rec.OriginalID, rec.Confidence, rec.TimestampMs)
	if err != nil {
		return types.NewStorageError("postgres.SaveCheck", err)
	}
	return nil
}

// GetAnalytics implements storage.AnalyticsStorage.
func (s *Storage) GetAnalytics(ctx context.Context) (storage.Analytics, error) {
	var summary storage.AnalyticsSummary
	var dup, poss, uniq *int
	row := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN result_type = 'duplicate' THEN 1 ELSE 0 END),
			SUM(CASE WHEN result_type = 'possible' THEN 1 ELSE 0 END),
			SUM(CASE WHEN result_type = 'unique' THEN 1 ELSE 0 END)
		FROM check_results
	`)
	if err := row.Scan(&summary.TotalChecks, &dup, &poss, &uniq); err != nil {
		return storage.Analytics{}, types.NewStorageError("postgres.GetAnalytics", err)
	}
	if dup != nil {
		summary.DuplicateCount = *dup
	}
	if poss != nil {
		summary.PossibleCount = *poss
	}
	if uniq != nil {
		summary.UniqueCount = *uniq
	}

	const dayMs = 86400000
	rows, err := s.pool.Query(ctx, `
		SELECT
			(timestamp_ms / $1) * $1 AS bucket,
			SUM(CASE WHEN result_type = 'duplicate' THEN 1 ELSE 0 END),
			SUM(CASE WHEN result_type = 'possible' THEN 1 ELSE 0 END),
			SUM(CASE WHEN result_type = 'unique' THEN 1 ELSE 0 END)
		FROM check_results
		GROUP BY 1
		ORDER BY 1 ASC
	`, int64(dayMs))
	if err != nil {
		return storage.Analytics{}, types.NewStorageError("postgres.GetAnalytics", err)
	}
	defer rows.Close()

	var timeline []storage.AnalyticsBucket
	for rows.Next() {
		var b storage.AnalyticsBucket
		if err := rows.Scan(&b.TimestampMs, &b.DuplicateCount, &b.PossibleCount, &b.UniqueCount); err != nil {
			return storage.Analytics{}, types.NewStorageError("postgres.GetAnalytics", err)
		}
		timeline = append(timeline, b)
	}
	return storage.Analytics{Summary: summary, Timeline: timeline}, rows.Err()
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func sortScoredDesc(hits []storage.ScoredID) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}
