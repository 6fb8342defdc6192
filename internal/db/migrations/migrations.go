// Package migrations embeds the journal schema and applies it with goose.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/neboloop/pilot/internal/logging"
)

//go:embed schema/*.sql
var schema embed.FS

// goose keeps its configuration in package globals
var mu sync.Mutex

// Run applies every pending migration.
func Run(db *sql.DB) error {
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(schema)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "schema"); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func Version(db *sql.DB) (int64, error) {
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(schema)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db)
}

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	logging.Debugf("[Migrate] "+format, v...)
}

func (gooseLogger) Fatalf(format string, v ...any) {
	logging.Errorf("[Migrate] "+format, v...)
}
