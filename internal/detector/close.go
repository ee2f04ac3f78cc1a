package detector

// Close releases the detector's resources, propagating to the
// configured storage back-end. A nil Storage makes
// Close a no-op.
func (d *Detector) Close() error {
	if d.cfg.Storage == nil {
		return nil
	}
	return d.cfg.Storage.Close()
}
