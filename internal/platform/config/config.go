package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Snapshot store backends.
const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
	StoreSQLite    = "sqlite"
	StorePgx       = "pgx"
	StoreGenji     = "genji"
	StoreDuckDB    = "duckdb"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Port           string
	GinMode        string
	AllowedOrigins string

	DataDir              string
	BoundariesSource     string
	CasesSource          string
	PopulationSource     string
	AreaSource           string
	BoundaryNameProperty string
	CaseDistrictField    string
	PopulationNameColumn int
	PopulationValueCol   int
	AreaNameColumn       int
	AreaValueColumn      int
	TableEncoding        string
	SourceMaxRetries     int
	SourceBreakerMax     int

	SnapshotStore       string
	DBPath              string
	DBConn              string
	FirebaseProjectID   string
	FirebaseCredsBase64 string
	FirebaseCredsFile   string

	RefreshCron  string
	WatchDataDir bool
	CacheTTL     time.Duration
	Domain       string
	PublicURL    string
}

// Load reads environment variables into a Config with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "release"),
		AllowedOrigins: strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")),

		DataDir:              getEnv("DATA_DIR", "data"),
		BoundariesSource:     getEnv("BOUNDARIES_SOURCE", "SIG_202005/SIG_WGS84.json"),
		CasesSource:          getEnv("CASES_SOURCE", "서울시 코로나19 확진자 현황 201122.json"),
		PopulationSource:     getEnv("POPULATION_SOURCE", "population.txt"),
		AreaSource:           getEnv("AREA_SOURCE", "area.txt"),
		BoundaryNameProperty: getEnv("BOUNDARY_NAME_PROPERTY", "SIG_KOR_NM"),
		CaseDistrictField:    getEnv("CASE_DISTRICT_FIELD", "corona19_area"),
		TableEncoding:        strings.ToLower(getEnv("TABLE_ENCODING", "utf-8")),

		SnapshotStore:       strings.ToLower(getEnv("SNAPSHOT_STORE", StoreMemory)),
		DBPath:              getEnv("DB_PATH", "district-stats.db"),
		DBConn:              strings.TrimSpace(os.Getenv("DB_CONN")),
		FirebaseProjectID:   strings.TrimSpace(os.Getenv("FIREBASE_PROJECT_ID")),
		FirebaseCredsBase64: strings.TrimSpace(os.Getenv("FIREBASE_CREDS_BASE64")),
		FirebaseCredsFile:   strings.TrimSpace(os.Getenv("FIREBASE_CREDS_FILE")),

		RefreshCron: strings.TrimSpace(os.Getenv("REFRESH_CRON")),
		Domain:      strings.TrimSpace(os.Getenv("DOMAIN")),
		PublicURL:   strings.TrimSpace(os.Getenv("PUBLIC_URL")),
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"POPULATION_NAME_COLUMN", 1, &cfg.PopulationNameColumn},
		{"POPULATION_VALUE_COLUMN", 3, &cfg.PopulationValueCol},
		{"AREA_NAME_COLUMN", 1, &cfg.AreaNameColumn},
		{"AREA_VALUE_COLUMN", 2, &cfg.AreaValueColumn},
		{"SOURCE_MAX_RETRIES", 3, &cfg.SourceMaxRetries},
		{"SOURCE_BREAKER_MAX", 5, &cfg.SourceBreakerMax},
	}
	for _, v := range ints {
		n, err := parseIntEnv(v.key, v.def)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", v.key, err)
		}
		*v.dst = n
	}

	watch, err := parseBoolEnv("WATCH_DATA_DIR", true)
	if err != nil {
		return Config{}, fmt.Errorf("parse WATCH_DATA_DIR: %w", err)
	}
	cfg.WatchDataDir = watch

	ttl, err := parseDurationEnv("CACHE_TTL", 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = ttl

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures required fields are present.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	for name, col := range map[string]int{
		"POPULATION_NAME_COLUMN":  c.PopulationNameColumn,
		"POPULATION_VALUE_COLUMN": c.PopulationValueCol,
		"AREA_NAME_COLUMN":        c.AreaNameColumn,
		"AREA_VALUE_COLUMN":       c.AreaValueColumn,
	} {
		if col < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.PopulationNameColumn == c.PopulationValueCol {
		return errors.New("POPULATION_NAME_COLUMN and POPULATION_VALUE_COLUMN must differ")
	}
	if c.AreaNameColumn == c.AreaValueColumn {
		return errors.New("AREA_NAME_COLUMN and AREA_VALUE_COLUMN must differ")
	}
	if c.CacheTTL < 0 {
		return errors.New("CACHE_TTL must not be negative")
	}

	switch c.SnapshotStore {
	case StoreMemory, StoreSQLite, StoreGenji, StoreDuckDB:
	case StorePgx:
		if c.DBConn == "" {
			return errors.New("DB_CONN is required when SNAPSHOT_STORE=pgx")
		}
	case StoreFirestore:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required when SNAPSHOT_STORE=firestore")
		}
		if c.FirebaseCredsBase64 == "" && c.FirebaseCredsFile == "" {
			return errors.New("provide FIREBASE_CREDS_BASE64 or FIREBASE_CREDS_FILE for Firestore auth")
		}
	default:
		return fmt.Errorf("unknown SNAPSHOT_STORE %q", c.SnapshotStore)
	}
	return nil
}

// FirebaseCredentialsJSON returns the service account JSON bytes and the source used.
func (c Config) FirebaseCredentialsJSON() ([]byte, string, error) {
	if c.FirebaseCredsBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(c.FirebaseCredsBase64)
		if err != nil {
			return nil, "base64", fmt.Errorf("decode FIREBASE_CREDS_BASE64: %w", err)
		}
		return decoded, "base64", nil
	}
	if c.FirebaseCredsFile != "" {
		data, err := os.ReadFile(c.FirebaseCredsFile)
		if err != nil {
			return nil, "file", fmt.Errorf("read FIREBASE_CREDS_FILE: %w", err)
		}
		return data, "file", nil
	}
	return nil, "", errors.New("no firebase credentials found")
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func parseBoolEnv(key string, defaultVal bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseIntEnv(key string, defaultVal int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(val)
}

func parseDurationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(val)
}
