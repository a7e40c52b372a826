package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/jobtrack/migrator/internal/config"
)

// ErrSchemaFile is returned when the reset script cannot be read.
var ErrSchemaFile = errors.New("schema reset script unavailable")

// ResetSchema drops and recreates the destination schema by executing the
// SQL script at path as one multi-statement batch.
func ResetSchema(ctx context.Context, cfg config.Destination, path string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist", ErrSchemaFile, path)
		}
		return fmt.Errorf("%w: %v", ErrSchemaFile, err)
	}

	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open destination: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("failed to execute %s: %w", path, err)
	}
	return nil
}
