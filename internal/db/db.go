package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Connect opens the database named by dsn. libsql:// and http(s):// URLs go to
// Turso through the libsql driver, with token appended as authToken. Anything
// else is treated as a local SQLite file.
func Connect(dsn, token string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database url is not set")
	}

	driver := "sqlite"
	if isRemote(dsn) {
		driver = "libsql"
		if token == "" {
			slog.Error("auth token needs to be set for a remote database", "url", dsn)
			return nil, fmt.Errorf("auth token is not set for %s", dsn)
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = fmt.Sprintf("%s%sauthToken=%s", dsn, sep, url.QueryEscape(token))
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		// one writer at a time, or SQLite answers SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func isRemote(dsn string) bool {
	for _, p := range []string{"libsql://", "https://", "http://", "wss://", "ws://"} {
		if strings.HasPrefix(dsn, p) {
			return true
		}
	}
	return false
}

// InitSchema creates the necessary tables if they don't exist.
func InitSchema(db *sql.DB) error {
	slog.Info("initializing database schema")

	queries := []string{
		`CREATE TABLE IF NOT EXISTS workflow_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			started_at INTEGER,
			finished_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS workflow_audit_run ON workflow_audit (run_id)`,
		`CREATE TABLE IF NOT EXISTS agent_history (
			timestamp INTEGER,
			symbol TEXT,
			credits INTEGER,
			ships INTEGER,
			PRIMARY KEY (timestamp, symbol)
		)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", q, err)
		}
	}

	slog.Info("database schema initialized successfully")
	return nil
}
