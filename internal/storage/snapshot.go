package storage

// RecordSnapshot is one record's portable JSON shape inside a Snapshot.
type RecordSnapshot struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Files         []string  `json:"files"`
	TextEmbedding []float64 `json:"text_embedding"`
	DiffEmbedding []float64 `json:"diff_embedding"`
	CreatedAt     int64     `json:"created_at"`
}

// Snapshot is the self-contained export produced by the snapshot-to-file
// backend: every record plus the bloom filter's base64 export. It is
// produced by Detector.ExportState and is portable across
// processes, independent of whichever Storage backend is configured.
type Snapshot struct {
	Records []RecordSnapshot `json:"records"`
	Bloom   string           `json:"bloom"`
}
