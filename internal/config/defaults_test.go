package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultJavaPath, cfg.Padel.JavaPath)
	assert.Equal(t, DefaultJarPath, cfg.Padel.JarPath)
	assert.Equal(t, -1, cfg.Padel.Threads)
	assert.Equal(t, 30*time.Second, cfg.Padel.Timeout)
	assert.Equal(t, DefaultNJobs, cfg.Transformer.NJobs)
	assert.Equal(t, "float64", cfg.Transformer.DType)
	assert.Equal(t, StoreNone, cfg.Store.Driver)
	assert.Equal(t, DefaultRequestTopic, cfg.Kafka.RequestTopic)
	assert.Equal(t, "info", cfg.Log.Level)

	// booleans cannot be inferred from zero values
	assert.False(t, cfg.Padel.Descriptors)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Padel.JarPath = "/opt/padel/PaDEL-Descriptor.jar"
	cfg.Padel.Timeout = 2 * time.Minute
	cfg.Transformer.NJobs = -1
	cfg.Store.Driver = StoreRedis

	ApplyDefaults(cfg)

	assert.Equal(t, "/opt/padel/PaDEL-Descriptor.jar", cfg.Padel.JarPath)
	assert.Equal(t, 2*time.Minute, cfg.Padel.Timeout)
	assert.Equal(t, -1, cfg.Transformer.NJobs)
	assert.Equal(t, StoreRedis, cfg.Store.Driver)
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestDefault_EnablesBothFamilies(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Padel.Descriptors)
	assert.True(t, cfg.Padel.Fingerprints)
	assert.False(t, cfg.Padel.ReplaceNaN)
	assert.False(t, cfg.Padel.DoNotStandardize)
}
