package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
padel:
  java_path: /usr/bin/java
  jar_path: /opt/padel/PaDEL-Descriptor.jar
  threads: 4
  descriptors: true
  fingerprints: false
  timeout: 45s
  replace_nan: true
transformer:
  n_jobs: -1
  dtype: float32
log:
  level: debug
  format: console
store:
  driver: sqlite
  sqlite:
    path: /tmp/features.db
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "padelfeat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/java", cfg.Padel.JavaPath)
	assert.Equal(t, 4, cfg.Padel.Threads)
	assert.True(t, cfg.Padel.Descriptors)
	assert.False(t, cfg.Padel.Fingerprints)
	assert.Equal(t, 45*time.Second, cfg.Padel.Timeout)
	assert.True(t, cfg.Padel.ReplaceNaN)
	assert.Equal(t, -1, cfg.Transformer.NJobs)
	assert.Equal(t, "float32", cfg.Transformer.DType)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/features.db", cfg.Store.SQLite.Path)
	// untouched sections keep defaults
	assert.Equal(t, DefaultHTTPPort, cfg.Server.HTTP.Port)
	assert.Equal(t, DefaultResultTopic, cfg.Kafka.ResultTopic)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "padel: [unterminated"))
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, "store:\n  driver: cassandra\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PADELFEAT_PADEL_TIMEOUT", "90s")
	t.Setenv("PADELFEAT_TRANSFORMER_N_JOBS", "8")

	cfg, err := Load(writeConfig(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Padel.Timeout)
	assert.Equal(t, 8, cfg.Transformer.NJobs)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	t.Setenv("PADELFEAT_PADEL_JAR_PATH", "/srv/padel.jar")
	t.Setenv("PADELFEAT_STORE_DRIVER", "memory")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/srv/padel.jar", cfg.Padel.JarPath)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.True(t, cfg.Padel.Descriptors)
	assert.True(t, cfg.Padel.Fingerprints)
}

func TestSearch_FindsFile(t *testing.T) {
	path := writeConfig(t, validConfigYAML)
	cfg, used, err := Search(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 4, cfg.Padel.Threads)
}

func TestSearch_FallsBackToEnv(t *testing.T) {
	cfg, used, err := Search(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, DefaultJarPath, cfg.Padel.JarPath)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PADELFEAT_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PADELFEAT_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(envFile, filepath.Join(dir, "absent.env")))
	assert.Equal(t, "loaded", os.Getenv("PADELFEAT_TEST_DOTENV"))
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), func(*Config) {}, nil)
	assert.Error(t, err)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, validConfigYAML)

	changed := make(chan *Config, 16)
	require.NoError(t, Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil))

	updated := validConfigYAML + "\nmetrics:\n  namespace: reloaded\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if cfg.Metrics.Namespace == "reloaded" {
				return
			}
		case <-deadline:
			t.Skip("filesystem notifications unavailable")
		}
	}
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "padelfeat.yaml"))
	require.NoError(t, err)
	assert.Equal(t, StoreNone, cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.Padel.Timeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.NoError(t, cfg.ValidateWorker())
}
