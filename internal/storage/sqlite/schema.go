package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL CHECK(length(title) <= 500),
    description TEXT NOT NULL DEFAULT '',
    files TEXT NOT NULL DEFAULT '[]',
    text_embedding BLOB,
    diff_embedding BLOB,
    created_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at DESC);

CREATE TABLE IF NOT EXISTS check_results (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id INTEGER NOT NULL,
    result_type TEXT NOT NULL,
    original_id INTEGER,
    confidence REAL NOT NULL DEFAULT 0,
    timestamp_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_check_results_timestamp ON check_results(timestamp_ms DESC);
`
