package main

import (
	"flag"
	"log"

	"freelance-market/internal/config"
	"freelance-market/internal/database"
)

func main() {
	command := flag.String("command", "up", "goose command: up, down, status, version")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Database.Driver != "postgres" {
		log.Fatalf("Versioned migrations target postgres; DB_DRIVER=%s uses automatic migration on startup", cfg.Database.Driver)
	}

	log.Printf("Running migrations: %s", *command)
	if err := database.RunMigrations(cfg.GetDSN(), *command); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations finished")
}
