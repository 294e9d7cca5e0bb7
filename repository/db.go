package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// DefaultDSN returns the session database under the user config directory
func DefaultDSN() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "r6tools")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return "file:" + filepath.Join(dir, "session.db") + "?cache=shared", nil
}

// Open connects to the SQLite database at dsn and makes sure the schema
// exists.
func Open(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping session database: %w", err)
	}

	if err := NewClientStorage(db).CreateSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}

	return db, nil
}
