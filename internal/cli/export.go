package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long:  "Export every memory, in position order, as a JSON array accepted by import.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	e := mustOpenEnv(cmd, false)
	defer e.Close()

	printJSON(e.store.Records(0, 0))
}
