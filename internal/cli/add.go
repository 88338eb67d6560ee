package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/ripple-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [summary]",
		Short: "Store a summarised conversation",
		Long: "Embed a summary and store it with its conversation. The summary can be a " +
			"positional arg or piped via stdin; --history reads a JSON array of " +
			`{"role","content"} turns from a file, or from stdin with "-".`,
		Run: runAdd,
	}

	cmd.Flags().String("history", "", `Conversation JSON file, or "-" for stdin`)

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	historyPath, _ := cmd.Flags().GetString("history")

	var summary string
	if len(args) > 0 {
		summary = strings.Join(args, " ")
	} else if historyPath != "-" {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			summary = string(b)
		}
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		exitErr("add", fmt.Errorf("summary is required (positional arg or stdin)"))
	}

	turns, err := readHistory(historyPath)
	if err != nil {
		exitErr("read history", err)
	}

	e := mustOpenEnv(cmd, false)
	defer e.Close()

	rec, err := e.store.Add(cmd.Context(), summary, turns)
	if err != nil {
		exitErr("add", err)
	}

	b, _ := json.Marshal(rec)
	fmt.Println(string(b))
}

func readHistory(path string) ([]model.Turn, error) {
	if path == "" {
		return nil, nil
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var turns []model.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return turns, nil
}
