package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the index and metadata agree",
		Long:  "Load both artifacts, failing on any disagreement, then re-check alignment in memory.",
		Run:   runVerify,
	}

	RootCmd.AddCommand(cmd)
}

func runVerify(cmd *cobra.Command, args []string) {
	e := mustOpenEnv(cmd, false)
	defer e.Close()

	if err := e.store.Verify(); err != nil {
		exitErr("verify", err)
	}
	printJSON(map[string]interface{}{
		"ok":        true,
		"count":     e.store.Count(),
		"dimension": e.store.Dimension(),
	})
}
