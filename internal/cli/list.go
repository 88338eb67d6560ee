package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories in insertion order",
		Run:   runList,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Int("offset", 0, "Start position")
	cmd.Flags().Bool("summaries-only", false, "Only output position and summary")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	summariesOnly, _ := cmd.Flags().GetBool("summaries-only")

	e := mustOpenEnv(cmd, false)
	defer e.Close()

	records := e.store.Records(offset, limit)
	if summariesOnly {
		for i, r := range records {
			fmt.Printf("%d\t%s\n", offset+i, r.Summary)
		}
		return
	}
	printJSON(records)
}
