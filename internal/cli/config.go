package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the config file, apply defaults and report problems",
	Run:   runConfigCheck,
}

func init() {
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigCheck(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config %s:\n%v\n", cfgPath, err)
		os.Exit(1)
	}

	ids := make([]string, 0, len(cfg.Workers))
	for _, w := range cfg.Workers {
		ids = append(ids, w.ID)
	}
	fmt.Printf("Config %s is valid\n", cfgPath)
	fmt.Printf("  max_concurrent: %d\n", cfg.Queue.MaxConcurrent)
	fmt.Printf("  max_retries:    %d\n", *cfg.Queue.MaxRetries)
	fmt.Printf("  stages:         %s\n", strings.Join(cfg.Queue.Stages, ", "))
	fmt.Printf("  workers:        %s\n", strings.Join(ids, ", "))
	fmt.Printf("  checkpoint:     %s every %s\n", cfg.Checkpoint.Backend, cfg.Checkpoint.Interval)
}
