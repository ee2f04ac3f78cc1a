package main

import (
	"context"

	"github.com/fatih/color"

	"github.com/repomemory/dupcore/internal/types"
)

func cmdContext() context.Context {
	return context.Background()
}

// tierColor picks the color fatih/color renders a result type in,
// following status.go's running/stopped green/red convention.
func tierColor(t types.ResultType) func(format string, a ...interface{}) string {
	switch t {
	case types.ResultDuplicate:
		return color.New(color.FgRed, color.Bold).SprintfFunc()
	case types.ResultPossible:
		return color.New(color.FgYellow).SprintfFunc()
	default:
		return color.New(color.FgGreen).SprintfFunc()
	}
}
