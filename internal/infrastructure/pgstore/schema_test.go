package pgstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jobtrack/migrator/internal/config"
)

func TestResetSchema_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sql")
	err := ResetSchema(context.Background(), config.Destination{Host: "localhost", Port: 5432}, path)
	if !errors.Is(err, ErrSchemaFile) {
		t.Errorf("ResetSchema() error = %v, want ErrSchemaFile", err)
	}
}
