package main

import (
	"fmt"
	"os"

	"freelance-market/internal/config"
	"freelance-market/internal/database"
	"freelance-market/internal/services"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "marketctl",
	Short: "Operator tools for the freelance marketplace",
	Long: `marketctl inspects and repairs marketplace state from the command line.

It reads the same environment as the API server (DB_DRIVER, DB_HOST, DB_PATH, ...).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(verifyProjectCmd)
	rootCmd.AddCommand(outboxCmd)
	rootCmd.AddCommand(authCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadServices connects to the configured database and builds the service graph
func loadServices() (*config.Config, *services.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.Open(cfg.Database.Driver, cfg.GetDSN())
	if err != nil {
		return nil, nil, err
	}
	return cfg, services.New(db, cfg.App.InitialCredit), nil
}
