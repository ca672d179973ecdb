package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"freelance-market/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the database for the given driver ("postgres" or "sqlite")
func Connect(driver, dsn string) error {
	db, err := Open(driver, dsn)
	if err != nil {
		return err
	}
	DB = db

	log.Printf("Database connection established successfully (driver=%s)", driver)
	return nil
}

// Open returns a new gorm handle without touching the package-level DB
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
			}
		}
		dialector = sqlite.Open(sqliteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// SQLite allows one writer; serialising through one connection avoids SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func sqliteDSN(path string) string {
	if path == ":memory:" {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Models lists every table owned by the service, in creation order
func Models() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.LoginChallenge{},
		&models.Project{},
		&models.Proposal{},
		&models.Transaction{},
		&models.ProposalDecision{},
		&models.Catalog{},
		&models.Order{},
		&models.OutboxEvent{},
		&models.Notification{},
	}
}

// Migrate brings the schema up to date. Postgres runs the versioned goose migrations,
// which carry the CHECK and partial unique constraints; sqlite uses AutoMigrateDB.
func Migrate(db *gorm.DB, driver, dsn string) error {
	if driver == "postgres" {
		if err := RunMigrations(dsn, "up"); err != nil {
			return err
		}
		log.Println("Database migrations completed successfully")
		return nil
	}
	return AutoMigrateDB(db)
}

// partialIndexes are the proposal invariants gorm tags cannot express. They mirror the
// goose migrations and are valid on both postgres and sqlite.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_proposals_accepted_per_project
		ON proposals (project_id) WHERE status = 'accepted'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_proposals_pending_per_freelancer
		ON proposals (project_id, freelancer_id) WHERE status = 'pending'`,
}

// AutoMigrateDB runs automatic migrations against db
func AutoMigrateDB(db *gorm.DB) error {
	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migration failed for %T: %w", model, err)
		}
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
