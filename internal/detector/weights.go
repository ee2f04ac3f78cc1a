package detector

import (
	"github.com/repomemory/dupcore/internal/ranker"
	"github.com/repomemory/dupcore/internal/types"
)

// SetWeights validates w, normalizing it to sum to 1.0. It
// rejects negative or all-zero weights with configuration_error.
func (d *Detector) SetWeights(w types.Weights) error {
	if err := w.Validate(); err != nil {
		return types.NewConfigError("detector.SetWeights", err)
	}

	nw := w.Normalized()

	d.weightsMu.Lock()
	d.weights = nw
	d.weightsMu.Unlock()
	return nil
}

// GetWeights returns the currently active, normalized weights.
func (d *Detector) GetWeights() types.Weights {
	d.weightsMu.RLock()
	defer d.weightsMu.RUnlock()
	return d.weights
}

// SetThresholds validates and installs new decision thresholds.
func (d *Detector) SetThresholds(t ranker.Thresholds) error {
	if err := t.Validate(); err != nil {
		return types.NewConfigError("detector.SetThresholds", err)
	}
	d.weightsMu.Lock()
	d.thresholds = t
	d.weightsMu.Unlock()
	return nil
}

// GetThresholds returns the currently active decision thresholds.
func (d *Detector) GetThresholds() ranker.Thresholds {
	d.weightsMu.RLock()
	defer d.weightsMu.RUnlock()
	return d.thresholds
}
