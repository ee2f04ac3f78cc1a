package postgres

import "fmt"

const schemaBase = `
CREATE TABLE IF NOT EXISTS records (
    id BIGINT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    files JSONB NOT NULL DEFAULT '[]',
    text_embedding %[1]s,
    diff_embedding %[1]s,
    created_at BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at DESC);

CREATE TABLE IF NOT EXISTS check_results (
    seq BIGSERIAL PRIMARY KEY,
    id BIGINT NOT NULL,
    result_type TEXT NOT NULL,
    original_id BIGINT,
    confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    timestamp_ms BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_check_results_timestamp ON check_results(timestamp_ms DESC);
`

// vectorColumnType returns "vector(dim)" when the pgvector extension is
// available, or a plain DOUBLE PRECISION[] fallback otherwise. dim is
// parameterized at schema-creation time: the column width must match
// the configured embedding dimension, and mismatched inserts are
// rejected with storage_error (the mismatch rejection itself
// lives in Storage.validateDim).
func vectorColumnType(dim int, pgvector bool) string {
	if pgvector {
		return fmt.Sprintf("vector(%d)", dim)
	}
	return "double precision[]"
}

const vectorIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_records_text_embedding ON records
    USING hnsw (text_embedding vector_cosine_ops);
`
