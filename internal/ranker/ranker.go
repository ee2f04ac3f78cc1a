// Package ranker combines the three re-ranking signals into a single
// score and applies the threshold-based duplicate/possible/unique
// decision. Both the ranker and the decision are pure
// functions of their inputs.
package ranker

import (
	"fmt"

	"github.com/repomemory/dupcore/internal/types"
)

// DefaultDuplicateThreshold and DefaultPossibleThreshold are the built-in
// tier boundaries used when a caller doesn't override them.
const (
	DefaultDuplicateThreshold = 0.90
	DefaultPossibleThreshold  = 0.82
)

// Score combines the three similarity scalars with w, normalized, into
// a final score and full per-signal breakdown.
func Score(textSim, diffSim, fileSim float64, w types.Weights) types.ScoreBreakdown {
	nw := w.Normalized()
	b := types.ScoreBreakdown{
		TextSim: textSim,
		DiffSim: diffSim,
		FileSim: fileSim,
		Weights: nw,
	}
	b.TextWeighted = nw.Text * textSim
	b.DiffWeighted = nw.Diff * diffSim
	b.FileWeighted = nw.File * fileSim
	b.FinalScore = b.TextWeighted + b.DiffWeighted + b.FileWeighted
	return b
}

// Thresholds holds the duplicate/possible decision boundaries. Both
// must lie in [0,1] and duplicate_threshold >= possible_threshold.
type Thresholds struct {
	Duplicate float64
	Possible  float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Duplicate: DefaultDuplicateThreshold, Possible: DefaultPossibleThreshold}
}

// Validate enforces the threshold invariants: both in [0,1], and
// duplicate_threshold >= possible_threshold.
func (t Thresholds) Validate() error {
	if t.Duplicate < 0 || t.Duplicate > 1 {
		return fmt.Errorf("duplicate_threshold must be between 0.0 and 1.0 (got %.4f)", t.Duplicate)
	}
	if t.Possible < 0 || t.Possible > 1 {
		return fmt.Errorf("possible_threshold must be between 0.0 and 1.0 (got %.4f)", t.Possible)
	}
	if t.Duplicate < t.Possible {
		return fmt.Errorf("duplicate_threshold (%.4f) must be >= possible_threshold (%.4f)", t.Duplicate, t.Possible)
	}
	return nil
}

// Decide classifies a final score against the current thresholds. The
// boundary is inclusive: a score exactly equal to a threshold lands at
// the higher tier.
func Decide(score float64, t Thresholds) types.ResultType {
	if score >= t.Duplicate {
		return types.ResultDuplicate
	}
	if score >= t.Possible {
		return types.ResultPossible
	}
	return types.ResultUnique
}
