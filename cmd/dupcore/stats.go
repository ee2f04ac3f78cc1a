package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index size and attribution statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := det.GetStats()
		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

		fmt.Printf("\n%s\n", cyan("=== dupcore index stats ==="))
		fmt.Printf("total_prs:            %d\n", s.TotalPRs)
		fmt.Printf("bloom_size:           %d bits\n", s.BloomSize)
		fmt.Printf("duplicate_pairs:      %d\n", s.DuplicatePairs)
		fmt.Printf("storage_backend_name: %s\n", s.StorageBackendName)
		return nil
	},
}
