package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/padel-featurizer/pkg/errors"
)

func stubOpen(t *testing.T, db *sql.DB, err error) {
	t.Helper()
	original := sqlOpen
	t.Cleanup(func() { sqlOpen = original })
	sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
		assert.Equal(t, DriverName, driverName)
		return db, err
	}
}

func TestNewConnection_Success(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	stubOpen(t, db, nil)

	mock.ExpectPing()

	conn, err := NewConnection(PostgresConfig{DSN: "postgres://u:p@localhost/padel"}, logging.NewNopLogger())
	assert.NoError(t, err)
	assert.NotNil(t, conn)
	assert.Equal(t, db, conn.DB())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnection_MissingDSN(t *testing.T) {
	_, err := NewConnection(PostgresConfig{}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestNewConnection_PingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	stubOpen(t, db, nil)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	conn, err := NewConnection(PostgresConfig{DSN: "postgres://localhost/padel"}, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, conn)

	var appErr *pkgerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, pkgerrors.ErrCodeDatabaseError, appErr.Code)
	assert.Equal(t, "database connection failed", appErr.Message)
	assert.Contains(t, appErr.Cause.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnection_OpenFailure(t *testing.T) {
	stubOpen(t, nil, errors.New("open failed"))

	conn, err := NewConnection(PostgresConfig{DSN: "postgres://localhost/padel"}, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, conn)
}

func TestConnection_HealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	conn := NewConnectionWithDB(db, nil)

	mock.ExpectPing()
	assert.NoError(t, conn.HealthCheck(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("timeout"))
	assert.Error(t, conn.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_Close_Idempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	conn := NewConnectionWithDB(db, logging.NewNopLogger())

	mock.ExpectClose()
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationFiles(t *testing.T) {
	files, err := MigrationFiles()
	require.NoError(t, err)
	assert.Contains(t, files, "000001_create_padel_features.up.sql")
	assert.Contains(t, files, "000001_create_padel_features.down.sql")
	assert.Contains(t, files, "000002_create_featurize_jobs.up.sql")
}

func TestRollbackMigration_InvalidSteps(t *testing.T) {
	conn := NewConnectionWithDB(nil, nil)
	assert.True(t, pkgerrors.IsCode(conn.RollbackMigration(0), pkgerrors.ErrCodeValidation))
}

func TestFeatureStore_ClosesConnection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	conn := NewConnectionWithDB(db, nil)
	fs := NewFeatureStore(conn)

	mock.ExpectClose()
	assert.NoError(t, fs.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

//Personal.AI order the ending
