package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <position>",
		Short: "Retrieve a memory by position",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	pos, err := strconv.Atoi(args[0])
	if err != nil {
		exitErr("get", fmt.Errorf("position must be an integer: %q", args[0]))
	}

	e := mustOpenEnv(cmd, false)
	defer e.Close()

	rec, err := e.store.Get(pos)
	if err != nil {
		exitErr("get", err)
	}
	printJSON(rec)
}
