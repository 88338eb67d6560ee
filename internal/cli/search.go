package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find the nearest memories",
		Long:  "Embed the query and return the k closest memories by L2 distance, nearest first.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().IntP("top-k", "k", 0, "Number of results (default: store.search_k)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	k, _ := cmd.Flags().GetInt("top-k")
	query := strings.Join(args, " ")

	e := mustOpenEnv(cmd, false)
	defer e.Close()

	if k == 0 {
		k = e.cfg.Store.SearchK
	}
	results, err := e.store.Search(cmd.Context(), query, k)
	if err != nil {
		exitErr("search", err)
	}
	printJSON(results)
}
