package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"strings"
	"time"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
	DriverGenji  = "genji"
	DriverDuckDB = "duckdb"
)

// Config selects the database/sql driver and where it stores data.
type Config struct {
	Driver string // sqlite, pgx, genji or duckdb
	Path   string // file path for embedded engines
	DSN    string // connection string for pgx
}

// Store persists snapshots and refresh runs through database/sql.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects, tunes and migrates the database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var dsn string
	switch driver {
	case DriverSQLite, DriverGenji, DriverDuckDB:
		dsn = cfg.Path
		if dsn == "" {
			dsn = "district-stats." + driver
		}
	case DriverPgx:
		dsn = strings.TrimSpace(cfg.DSN)
		if dsn == "" {
			return nil, fmt.Errorf("pgx driver needs a DSN")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	switch driver {
	case DriverSQLite, DriverGenji, DriverDuckDB:
		// embedded engines get exactly one connection for the life of the process
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	case DriverPgx:
		db.SetMaxOpenConns(4)
		db.SetConnMaxIdleTime(2 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		if err := tuneSQLite(pingCtx, db); err != nil {
			log.Printf("sqlite tuning skipped: %v", err)
		}
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Printf("Using %s snapshot store", driver)
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the normalized driver name.
func (s *Store) Driver() string { return s.driver }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func tuneSQLite(ctx context.Context, db *sql.DB) error {
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL;").Scan(&mode); err != nil {
		return fmt.Errorf("apply journal_mode: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	intType, floatType := "BIGINT", "DOUBLE"
	switch s.driver {
	case DriverGenji:
		intType = "INTEGER"
	case DriverPgx:
		floatType = "DOUBLE PRECISION"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			computed_at %[1]s NOT NULL,
			fingerprint TEXT NOT NULL,
			min_ratio %[2]s,
			max_ratio %[2]s,
			counters TEXT NOT NULL,
			warnings TEXT NOT NULL
		)`, intType, floatType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS district_stats (
			snapshot_id TEXT NOT NULL,
			district TEXT NOT NULL,
			confirmed_count %[1]s NOT NULL,
			population %[2]s NOT NULL,
			area %[2]s NOT NULL,
			density %[2]s,
			confirmed_ratio %[2]s,
			confirmed_ratio_adjusted %[2]s
		)`, intType, floatType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS refresh_runs (
			run_id TEXT PRIMARY KEY,
			trigger_name TEXT NOT NULL,
			status TEXT NOT NULL,
			snapshot_id TEXT NOT NULL,
			counters TEXT NOT NULL,
			error_message TEXT NOT NULL,
			started_at %[1]s NOT NULL,
			finished_at %[1]s NOT NULL
		)`, intType),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s schema: %w", s.driver, err)
		}
	}
	return nil
}

// ph returns the n-th bind placeholder for the active driver.
func (s *Store) ph(n int) string {
	if s.driver == DriverPgx {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Store) placeholders(from, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = s.ph(from + i)
	}
	return strings.Join(parts, ", ")
}

// nullable stores undefined floats as SQL NULL.
func nullable(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func nanIfNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
