package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/padel-featurizer/internal/application/featurize"
	"github.com/turtacn/padel-featurizer/internal/config"
	"github.com/turtacn/padel-featurizer/internal/testutil"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

func TestNew_MemoryStore(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.StoreMemory
	fake := testutil.NewFakePadel()

	rt, err := New(context.Background(), cfg, testutil.NewMockLogger(), WithClient(fake))
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.Collector)
	require.NotNil(t, rt.Metrics)
	assert.Equal(t, "padel", rt.Service.Name())
	assert.Len(t, rt.Service.Columns(), 5)
	assert.Equal(t, 30, rt.Service.Params().Timeout)

	req := &featurize.Request{SMILES: []string{"CCO", "CCN"}}
	for i := 0; i < 2; i++ {
		resp, err := rt.Service.Featurize(context.Background(), req)
		require.NoError(t, err)
		assert.Len(t, resp.Rows, 2)
	}
	assert.Equal(t, 2, fake.CallCount())

	families, err := rt.Collector.Gatherer().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "padel_padel_calls_total")
	assert.Contains(t, names, "padel_store_access_total")
}

func TestNew_SQLiteStore(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	cfg.Store.Driver = config.StoreSQLite
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "features.db")

	rt, err := New(context.Background(), cfg, nil, WithClient(testutil.NewFakePadel()))
	require.NoError(t, err)
	assert.Nil(t, rt.Metrics)

	_, err = rt.Service.Featurize(context.Background(), &featurize.Request{SMILES: []string{"CCO"}})
	require.NoError(t, err)
	assert.NoError(t, rt.Close())
}

func TestNew_ProbeFailureClosesStore(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.StoreMemory
	fake := testutil.NewFakePadel()
	fake.FailOn = "CCCC"

	rt, err := New(context.Background(), cfg, nil, WithClient(fake))
	assert.Nil(t, rt)
	assert.True(t, errors.IsCode(err, errors.ErrCodePadelSchemaProbeFailed))
}

func TestNew_BadDType(t *testing.T) {
	cfg := config.Default()
	cfg.Transformer.DType = "complex128"
	_, err := New(context.Background(), cfg, nil, WithClient(testutil.NewFakePadel()))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParams))
}

func TestNew_MissingJar(t *testing.T) {
	cfg := config.Default()
	cfg.Padel.JarPath = filepath.Join(t.TempDir(), "missing.jar")
	_, err := New(context.Background(), cfg, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodePadelJarNotFound))
}

func TestParamsAndExecConfig(t *testing.T) {
	c := config.Default().Padel
	c.Timeout = 90 * time.Second
	c.ReplaceNaN = true
	p := Params(c)
	assert.Equal(t, 90, p.Timeout)
	assert.True(t, p.ReplaceNaN)
	assert.True(t, p.Descriptors)

	e := ExecConfig(c)
	assert.Equal(t, c.JarPath, e.JarPath)
	assert.Equal(t, c.Threads, e.Threads)
}
