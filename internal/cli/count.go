package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of stored memories",
		Run:   runCount,
	}

	RootCmd.AddCommand(cmd)
}

func runCount(cmd *cobra.Command, args []string) {
	e := mustOpenEnv(cmd, false)
	defer e.Close()

	printJSON(map[string]interface{}{"success": true, "count": e.store.Count()})
}
