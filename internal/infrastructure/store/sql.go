package store

import (
	"context"
	"database/sql"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// maxKeysPerQuery bounds the IN list of a single lookup.
const maxKeysPerQuery = 500

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

var (
	PostgresDialect = Dialect{Name: "postgres", Placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}
	SQLiteDialect   = Dialect{Name: "sqlite", Placeholder: func(int) string { return "?" }}
)

// SQLStore keeps feature rows in the padel_features table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	closer  io.Closer
	logger  logging.Logger
}

var _ FeatureStore = (*SQLStore)(nil)

// NewSQLStore uses db with the given dialect.  Close calls closer when set,
// otherwise closes db.
func NewSQLStore(db *sql.DB, d Dialect, closer io.Closer, log logging.Logger) *SQLStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &SQLStore{db: db, dialect: d, closer: closer, logger: log}
}

func (s *SQLStore) upsertSQL() string {
	p := s.dialect.Placeholder
	return "INSERT INTO padel_features (key, fingerprint, smiles, features) VALUES (" +
		p(1) + ", " + p(2) + ", " + p(3) + ", " + p(4) + ") " +
		"ON CONFLICT (key) DO UPDATE SET features = EXCLUDED.features, updated_at = CURRENT_TIMESTAMP"
}

func (s *SQLStore) selectSQL(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = s.dialect.Placeholder(i + 1)
	}
	return "SELECT key, features FROM padel_features WHERE key IN (" + strings.Join(ph, ", ") + ")"
}

// Get looks keys up in chunks.
func (s *SQLStore) Get(ctx context.Context, keys []string) (map[string][]float64, error) {
	out := make(map[string][]float64, len(keys))
	for _, chunk := range lo.Chunk(keys, maxKeysPerQuery) {
		args := lo.Map(chunk, func(k string, _ int) any { return k })
		rows, err := s.db.QueryContext(ctx, s.selectSQL(len(chunk)), args...)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query feature rows")
		}
		for rows.Next() {
			var key string
			var blob []byte
			if err := rows.Scan(&key, &blob); err != nil {
				rows.Close()
				return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan feature row")
			}
			row, err := DecodeRow(blob)
			if err != nil {
				s.logger.Warn("Discarding corrupt feature row", logging.String("key", key), logging.Err(err))
				continue
			}
			out[key] = row
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate feature rows")
		}
	}
	return out, nil
}

// Put upserts rows in one transaction.
func (s *SQLStore) Put(ctx context.Context, rows map[string][]float64) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	stmt, err := tx.PrepareContext(ctx, s.upsertSQL())
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to prepare upsert")
	}
	defer stmt.Close()

	for key, row := range rows {
		fingerprint, smiles, _ := strings.Cut(key, ":")
		if _, err := stmt.ExecContext(ctx, key, fingerprint, smiles, EncodeRow(row)); err != nil {
			tx.Rollback()
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert feature row").WithDetail(key)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit feature rows")
	}
	return nil
}

// Close releases the database.
func (s *SQLStore) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return s.db.Close()
}
