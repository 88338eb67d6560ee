package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Assemble the memory block for a prompt",
		Long:  "Join the summaries of the nearest memories, nearest first, within a character budget.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRecall,
	}

	cmd.Flags().IntP("top-k", "k", 0, "Number of memories (default: store.search_k)")
	cmd.Flags().IntP("budget", "b", 0, "Max characters (default: store.recall_budget)")
	cmd.Flags().Bool("json", false, "Wrap the output in a JSON object")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	k, _ := cmd.Flags().GetInt("top-k")
	budget, _ := cmd.Flags().GetInt("budget")
	asJSON, _ := cmd.Flags().GetBool("json")
	query := strings.Join(args, " ")

	e := mustOpenEnv(cmd, false)
	defer e.Close()

	if k == 0 {
		k = e.cfg.Store.SearchK
	}
	if budget == 0 {
		budget = e.cfg.Store.RecallBudget
	}
	text, err := e.store.Recall(cmd.Context(), query, k, budget)
	if err != nil {
		exitErr("recall", err)
	}
	if asJSON {
		printJSON(map[string]interface{}{"query": query, "budget": budget, "memory": text})
		return
	}
	fmt.Println(text)
}
