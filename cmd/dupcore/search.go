package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var searchK int

var searchCmd = &cobra.Command{
	Use:   "search <query text>",
	Short: "Search the index for descriptors near a free-text query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		hits, err := det.Search(cmdContext(), query, searchK)
		if err != nil {
			return err
		}

		if len(hits) == 0 {
			fmt.Println(color.HiBlackString("no matches"))
			return nil
		}

		bold := color.New(color.Bold).SprintFunc()
		for _, h := range hits {
			fmt.Printf("%s  %-6.4f  %s\n", bold(fmt.Sprintf("#%d", h.ID)), h.Score, h.Title)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchK, "k", 10, "number of results to return")
}
