package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/repomemory/dupcore/internal/detector"
	"github.com/repomemory/dupcore/internal/types"
)

var serveReplCmd = &cobra.Command{
	Use:   "serve-repl",
	Short: "Start an interactive shell for checking and searching descriptors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepl()
	},
}

// dupcoreRepl mirrors internal/repl/repl.go's shape (a readline loop
// dispatching to a small command table), adapted to check/search/stats
// against a Detector instead of executor-instance storage.
type dupcoreRepl struct {
	rl       *readline.Instance
	commands map[string]func(args []string) error
}

func runRepl() error {
	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("dupcore> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("create readline: %w", err)
	}
	defer rl.Close()

	r := &dupcoreRepl{rl: rl, commands: make(map[string]func(args []string) error)}
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["check"] = r.cmdCheck
	r.commands["search"] = r.cmdSearch
	r.commands["stats"] = r.cmdStats
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Println("\ngoodbye")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		handler, ok := r.commands[parts[0]]
		if !ok {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s unknown command %q, type 'help'\n", yellow("note:"), parts[0])
			continue
		}
		if err := handler(parts[1:]); err != nil {
			if err == io.EOF {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("error:"), err)
		}
	}
}

func (r *dupcoreRepl) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("dupcore interactive shell"))
	fmt.Println("Type 'help' for available commands, 'exit' to quit.")
	fmt.Println()
}

func (r *dupcoreRepl) cmdHelp(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s check <id> <title...>   check a minimal descriptor (no files/diff)\n", green("check"))
	fmt.Printf("%s search <query...>       search the index by free text\n", green("search"))
	fmt.Printf("%s stats                   show index stats\n", green("stats"))
	fmt.Printf("%s exit, quit               leave the shell\n", green(""))
	return nil
}

func (r *dupcoreRepl) cmdCheck(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: check <id> <title...>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", args[0], err)
	}
	desc := types.Descriptor{ID: id, Title: strings.Join(args[1:], " ")}

	result, err := det.Check(cmdContext(), desc, detector.Options{})
	if err != nil {
		return err
	}
	paint := tierColor(result.Type)
	fmt.Printf("%s confidence=%.4f\n", paint("%s", string(result.Type)), result.Confidence)
	return nil
}

func (r *dupcoreRepl) cmdSearch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: search <query...>")
	}
	hits, err := det.Search(cmdContext(), strings.Join(args, " "), 10)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println(color.HiBlackString("no matches"))
		return nil
	}
	for _, h := range hits {
		fmt.Printf("#%-6d %-6.4f %s\n", h.ID, h.Score, h.Title)
	}
	return nil
}

func (r *dupcoreRepl) cmdStats(args []string) error {
	s := det.GetStats()
	fmt.Printf("total_prs=%d bloom_size=%d duplicate_pairs=%d backend=%s\n",
		s.TotalPRs, s.BloomSize, s.DuplicatePairs, s.StorageBackendName)
	return nil
}

func (r *dupcoreRepl) cmdExit(args []string) error {
	fmt.Println("goodbye")
	return io.EOF
}
