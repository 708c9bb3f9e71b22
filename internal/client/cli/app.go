package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/sealpay/internal/client/client"
	"github.com/dmitrijs2005/sealpay/internal/client/config"
	"github.com/dmitrijs2005/sealpay/internal/client/repositories/keys"
	"github.com/dmitrijs2005/sealpay/internal/filex"
)

type App struct {
	config *config.Config
	client client.Client
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	return &App{config: c, out: os.Stdout}
}

// api returns the server client, creating it from the parsed flags on
// first use.
func (a *App) api() client.Client {
	if a.client == nil {
		a.client = client.NewHTTPClient(a.config.ServerURL, a.config.Token, a.config.Retries, a.config.Timeout)
	}
	return a.client
}

func (a *App) withKeyring(ctx context.Context, fn func(keys.Repository) error) error {
	db, err := client.InitDatabase(ctx, a.config.KeyringPath)
	if err != nil {
		return fmt.Errorf("open keyring %s: %w", a.config.KeyringPath, err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	return fn(client.NewRepositories(db).Keys)
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

// writeFileAtomic streams into a temp file next to dst and renames it into
// place, so a failed run never leaves a partial dst behind.
func writeFileAtomic(dst string, fn func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(dst), ".sealpay-*")
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}
	if err := filex.SyncAndRename(f, dst); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	return nil
}
