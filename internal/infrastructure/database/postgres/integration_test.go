//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/store"
)

// startPostgres launches a PostgreSQL 16 container and returns a migrated
// connection.
func startPostgres(t *testing.T) *Connection {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "padel_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/padel_test?sslmode=disable", host, port.Port())
	conn, err := NewConnection(PostgresConfig{DSN: dsn}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.RunMigrations())
	return conn
}

func TestIntegration_FeatureStoreAndJobs(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()

	version, dirty, err := conn.MigrationStatus()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.EqualValues(t, 2, version)

	fs := NewFeatureStore(conn)
	k1 := store.Key("abc", "CCO")
	k2 := store.Key("abc", "CCN")
	require.NoError(t, fs.Put(ctx, map[string][]float64{k1: {1, math.NaN(), 3}}))
	require.NoError(t, fs.Put(ctx, map[string][]float64{k1: {1, 2, 3}}))

	got, err := fs.Get(ctx, []string{k1, k2})
	require.NoError(t, err)
	assert.Equal(t, map[string][]float64{k1: {1, 2, 3}}, got)

	jobs := NewJobRepository(conn)
	id := uuid.New()
	require.NoError(t, jobs.Start(ctx, id, 4))
	require.NoError(t, jobs.Finish(ctx, id, 3, id.String()+".npy", nil))

	job, err := jobs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusSucceeded, job.Status)
	assert.Equal(t, 4, job.Molecules)
	assert.Equal(t, 3, job.Kept)
	assert.NotNil(t, job.FinishedAt)

	failed := uuid.New()
	require.NoError(t, jobs.Start(ctx, failed, 1))
	require.NoError(t, jobs.Finish(ctx, failed, 0, "", errors.New("padel crashed")))
	job, err = jobs.Get(ctx, failed)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "padel crashed", job.Error)
}
