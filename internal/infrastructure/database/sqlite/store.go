// Package sqlite provides a single-file feature store for local runs of the
// CLI, backed by the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/store"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS padel_features (
    key         TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    smiles      TEXT NOT NULL,
    features    BLOB NOT NULL,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_padel_features_fingerprint ON padel_features (fingerprint);
`

// Open creates (if needed) the database file at path, ensures the schema and
// returns a feature store over it.  The parent directory is created.
func Open(ctx context.Context, path string, log logging.Logger) (*store.SQLStore, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeValidation, "sqlite path is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot create sqlite directory").WithDetail(dir)
		}
	}

	db, err := sql.Open(DriverName, path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot open sqlite database").WithDetail(path)
	}
	// A single writer avoids SQLITE_BUSY under concurrent Put calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "cannot create sqlite schema").WithDetail(path)
	}
	log.Info("sqlite feature store opened", logging.String("path", path))
	return store.NewSQLStore(db, store.SQLiteDialect, nil, log), nil
}
