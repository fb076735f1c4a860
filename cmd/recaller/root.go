package main

import (
	"fmt"

	"github.com/siherrmann/recaller"
	"github.com/siherrmann/recaller/model"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "recaller",
	Short: "Two-tier graph cache over a knowledge base",
	Long: "Recaller keeps an authoritative knowledge graph in a long-term store and " +
		"promotes entity sub-graphs into a TTL-scoped short-term working set. " +
		"Both stores are configured through the environment (LONGTERM_*, SHORTTERM_*, RECALLER_*).",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(wipeCmd)
}

// openRecaller builds a Recaller from the environment for CLI commands.
func openRecaller() (*recaller.Recaller, error) {
	config, err := model.NewRecallerConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	r, err := recaller.NewRecaller(config)
	if err != nil {
		return nil, fmt.Errorf("connect stores: %w", err)
	}
	return r, nil
}
