//go:build cgo && duckdb

// DuckDB needs CGO, so it is only registered with: CGO_ENABLED=1 go build -tags duckdb
package sqlstore

import (
	_ "github.com/marcboeker/go-duckdb"
)
