package store

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DB wraps the SQLite database of a profile (koichat.db). It holds the
// bearer token, so the file is kept private to the user.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("chmod db: %w", err)
	}
	return &DB{db}, nil
}

// OpenMigrated opens the database at path and applies pending migrations.
func OpenMigrated(path string, log *zap.Logger) (*DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	res, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if log != nil {
		log.Info("database ready",
			zap.String("path", path),
			zap.Uint("schema_version", res.Version),
			zap.Bool("migrated", res.Changed),
		)
	}
	return db, nil
}
