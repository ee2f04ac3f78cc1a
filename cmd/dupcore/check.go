package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/repomemory/dupcore/internal/detector"
	"github.com/repomemory/dupcore/internal/types"
)

var (
	checkID          int64
	checkTitle       string
	checkDescription string
	checkDiffFile    string
	checkFiles       []string
	checkDryRun      bool
	checkJSON        bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a pull request descriptor for duplicates against the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		desc := types.Descriptor{
			ID:          checkID,
			Title:       checkTitle,
			Description: checkDescription,
			Files:       checkFiles,
		}
		if checkDiffFile != "" {
			data, err := os.ReadFile(checkDiffFile)
			if err != nil {
				return fmt.Errorf("read diff file: %w", err)
			}
			desc.Diff = string(data)
		}

		result, err := det.CheckDetailed(cmdContext(), desc, detector.Options{DryRun: checkDryRun})
		if err != nil {
			return err
		}

		if checkJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		paint := tierColor(result.Type)
		fmt.Println(paint("%s", string(result.Type)))
		fmt.Printf("confidence: %.4f\n", result.Confidence)
		if result.OriginalID != nil {
			fmt.Printf("original_id: %d\n", *result.OriginalID)
		}
		fmt.Printf("text_sim=%.4f diff_sim=%.4f file_sim=%.4f\n",
			result.Breakdown.TextSim, result.Breakdown.DiffSim, result.Breakdown.FileSim)
		return nil
	},
}

func init() {
	checkCmd.Flags().Int64Var(&checkID, "id", 0, "descriptor id (required)")
	checkCmd.Flags().StringVar(&checkTitle, "title", "", "PR title (required)")
	checkCmd.Flags().StringVar(&checkDescription, "description", "", "PR description")
	checkCmd.Flags().StringVar(&checkDiffFile, "diff-file", "", "path to a file containing the unified diff")
	checkCmd.Flags().StringSliceVar(&checkFiles, "files", nil, "comma-separated list of touched file paths")
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "check without indexing the descriptor")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "emit the full result as JSON")
	_ = checkCmd.MarkFlagRequired("id")
	_ = checkCmd.MarkFlagRequired("title")
}
