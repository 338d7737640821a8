package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DB wraps the job ledger connection pool and remembers which SQL dialect it speaks
type DB struct {
	*sql.DB
	driver string
}

// Open connects to Postgres when databaseURL is set, otherwise to a local SQLite file
func Open(databaseURL, sqlitePath string) (*DB, error) {
	if databaseURL != "" {
		conn, err := sql.Open(DriverPostgres, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return &DB{DB: conn, driver: DriverPostgres}, nil
	}

	if dir := filepath.Dir(sqlitePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	conn, err := sql.Open(DriverSQLite, sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; WAL lets readers proceed alongside it
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode=WAL;`, `PRAGMA busy_timeout=5000;`} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}
	return &DB{DB: conn, driver: DriverSQLite}, nil
}

// Driver returns the database/sql driver name in use
func (db *DB) Driver() string {
	return db.driver
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $n placeholders into the dialect of the open connection
func (db *DB) rebind(query string) string {
	if db.driver == DriverSQLite {
		return placeholder.ReplaceAllString(query, "?$1")
	}
	return query
}

// Migrate creates the job ledger tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	eventID := "BIGSERIAL PRIMARY KEY"
	if db.driver == DriverSQLite {
		eventID = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			model_name TEXT NOT NULL,
			model_type TEXT NOT NULL,
			dataset_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('queued','in_progress','completed','failed')),
			progress DOUBLE PRECISION NOT NULL DEFAULT 0,
			model_id TEXT,
			metrics_json TEXT,
			error_message TEXT,
			request_json TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_tenant_start ON jobs(tenant_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS job_events (
			id %s,
			job_id TEXT NOT NULL REFERENCES jobs(id),
			at TIMESTAMP NOT NULL,
			from_status TEXT,
			to_status TEXT NOT NULL,
			reason TEXT NOT NULL
		)`, eventID),
		`CREATE INDEX IF NOT EXISTS idx_job_events_job ON job_events(job_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate job ledger: %w", err)
		}
	}
	return nil
}
