package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Run:   runConfig,
	}

	RootCmd.AddCommand(cmd)
}

func runConfig(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	if cfg.Embedding.APIKey != "" {
		cfg.Embedding.APIKey = "****"
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		exitErr("encode config", err)
	}
	fmt.Print(string(b))
}
