package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/sealpay/internal/client/migrations"
	"github.com/dmitrijs2005/sealpay/internal/client/repositories/keys"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

type Repositories struct {
	Keys keys.Repository
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the keyring at dsn and brings its schema up to date.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{Keys: keys.NewSQLiteRepository(db)}
}
