// Package sqlite opens SQLite databases through database/sql with either
// the pure Go driver (modernc.org/sqlite) or the CGO driver
// (mattn/go-sqlite3).
//
// Build modes:
//   - Default: pure Go modernc.org/sqlite, no CGO required
//   - CGO_ENABLED=1 -tags cgo_sqlite: mattn/go-sqlite3 via contrib/sqlite-external
//
// Use Open instead of sql.Open so the driver name always matches the
// compiled-in implementation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DriverName returns the SQL driver name to use.
func DriverName() string {
	return driverName
}

// DriverType returns "cgo" for mattn/go-sqlite3 and "purego" for
// modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database using the compiled-in driver.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// Pragmas are applied by Configure. busy_timeout is in milliseconds.
type Pragmas struct {
	JournalMode string
	BusyTimeout int
	Synchronous string
}

// DefaultPragmas suits a single-process key-value store.
func DefaultPragmas() Pragmas {
	return Pragmas{JournalMode: "WAL", BusyTimeout: 5000, Synchronous: "NORMAL"}
}

// Configure applies pragmas to db. SQLite pragmas are per connection, so
// the pool is limited to one connection.
func Configure(ctx context.Context, db *sql.DB, p Pragmas) error {
	db.SetMaxOpenConns(1)
	var stmts []string
	if p.JournalMode != "" {
		stmts = append(stmts, "PRAGMA journal_mode="+strings.ToUpper(p.JournalMode))
	}
	if p.BusyTimeout > 0 {
		stmts = append(stmts, fmt.Sprintf("PRAGMA busy_timeout=%d", p.BusyTimeout))
	}
	if p.Synchronous != "" {
		stmts = append(stmts, "PRAGMA synchronous="+strings.ToUpper(p.Synchronous))
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: %s: %w", stmt, err)
		}
	}
	return nil
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
