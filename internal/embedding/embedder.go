// Package embedding defines the embedder capability the detector core
// depends on and ships two implementations: a deterministic
// local embedder usable without any remote service, and an HTTP client
// for a remote embedding service.
package embedding

import (
	"context"
	"strings"
)

// Embedder converts text into fixed-length vectors. Both methods are
// pure functions of their argument within a process lifetime: the
// same input yields the same output. Implementations are external
// collaborators the core depends on only through this interface.
type Embedder interface {
	EmbedText(ctx context.Context, s string) ([]float64, error)
	EmbedDiff(ctx context.Context, s string) ([]float64, error)
}

// maxDiffChars bounds how much preprocessed diff text is submitted to
// an embedder.
const maxDiffChars = 4000

// preprocessDiff keeps only change-carrying lines (+ / - prefixed, or
// context lines that aren't diff metadata), drops hunk headers
// (@@...@@), `diff...` and `index...` metadata lines, and truncates
// to a bounded length. It is shared by every Embedder implementation
// in this package so diff preprocessing is performed by the diff
// embedder, not the core, regardless of which embedder is wired in.
func preprocessDiff(diff string) string {
	if diff == "" {
		return ""
	}
	lines := strings.Split(diff, "\n")
	var kept []string
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			continue
		case strings.HasPrefix(line, "diff "):
			continue
		case strings.HasPrefix(line, "index "):
			continue
		case strings.HasPrefix(line, "+++ "):
			continue
		case strings.HasPrefix(line, "--- "):
			continue
		default:
			kept = append(kept, line)
		}
	}
	out := strings.Join(kept, "\n")
	if len(out) > maxDiffChars {
		out = out[:maxDiffChars]
	}
	return out
}
