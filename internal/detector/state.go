package detector

import (
	"github.com/repomemory/dupcore/internal/storage"
	"github.com/repomemory/dupcore/internal/types"
)

// ExportState snapshots the in-memory mirror and bloom filter into a
// self-contained, storage-independent document. It
// never touches the configured storage back-end.
func (d *Detector) ExportState() storage.Snapshot {
	d.mirrorMu.RLock()
	records := make([]storage.RecordSnapshot, 0, len(d.mirror))
	for _, rec := range d.mirror {
		records = append(records, storage.RecordSnapshot{
			ID:            rec.ID,
			Title:         rec.Title,
			Description:   rec.Description,
			Files:         append([]string(nil), rec.Files...),
			TextEmbedding: append([]float64(nil), rec.TextEmbedding...),
			DiffEmbedding: append([]float64(nil), rec.DiffEmbedding...),
			CreatedAt:     rec.CreatedAt,
		})
	}
	d.mirrorMu.RUnlock()

	return storage.Snapshot{Records: records, Bloom: d.bloom.Export()}
}

// ImportState repopulates the mirror and bloom from snap. It is intended for use on a
// freshly constructed Detector, but may be called at any time; it
// fully replaces the current mirror contents.
func (d *Detector) ImportState(snap storage.Snapshot) error {
	mirror := make(map[int64]*types.Record, len(snap.Records))
	for _, rs := range snap.Records {
		mirror[rs.ID] = &types.Record{
			ID:            rs.ID,
			Title:         rs.Title,
			Description:   rs.Description,
			Files:         append([]string(nil), rs.Files...),
			TextEmbedding: append([]float64(nil), rs.TextEmbedding...),
			DiffEmbedding: append([]float64(nil), rs.DiffEmbedding...),
			CreatedAt:     rs.CreatedAt,
		}
	}

	if snap.Bloom != "" {
		if err := d.bloom.Import(snap.Bloom); err != nil {
			return types.NewStorageError("detector.ImportState", err)
		}
	}

	d.mirrorMu.Lock()
	d.mirror = mirror
	d.mirrorMu.Unlock()
	return nil
}

// GetStats summarizes the current detector state.
func (d *Detector) GetStats() types.Stats {
	d.mirrorMu.RLock()
	total := len(d.mirror)
	d.mirrorMu.RUnlock()

	return types.Stats{
		TotalPRs:           total,
		BloomSize:          int(d.bloom.Size()),
		DuplicatePairs:     d.dag.EdgeCount(),
		StorageBackendName: d.storageBackendName(),
	}
}

// Named is implemented by storage backends that want GetStats to
// report a human-readable backend name instead of "none"/"custom".
type Named interface {
	BackendName() string
}

func (d *Detector) storageBackendName() string {
	if d.cfg.Storage == nil {
		return "none"
	}
	if n, ok := d.cfg.Storage.(Named); ok {
		return n.BackendName()
	}
	return "custom"
}

// Root returns the root identifier of id's attribution chain.
func (d *Detector) Root(id int64) int64 { return d.dag.Root(id) }

// Descendants returns every identifier transitively flagged as a
// duplicate of id.
func (d *Detector) Descendants(id int64) []int64 { return d.dag.Descendants(id) }

// BloomMightContain exposes the bloom filter's membership test for
// callers that want to probe it directly (e.g. tests, diagnostics);
// the core itself never uses it to reject candidates.
func (d *Detector) BloomMightContain(fingerprint string) bool {
	return d.bloom.MightContain(fingerprint)
}
