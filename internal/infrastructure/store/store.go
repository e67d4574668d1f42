// Package store defines the feature store contract shared by the memory,
// redis, postgres and sqlite backends, plus the row encoding they use.
package store

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// Driver names accepted by configuration.
const (
	DriverNone     = "none"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// FeatureStore persists feature rows by key.  Get returns only the keys it
// holds; absent keys are misses, not errors.
type FeatureStore interface {
	Get(ctx context.Context, keys []string) (map[string][]float64, error)
	Put(ctx context.Context, rows map[string][]float64) error
	Close() error
}

// Key joins a calculator fingerprint and a canonical SMILES.
func Key(fingerprint, smiles string) string {
	return fingerprint + ":" + smiles
}

// EncodeRow packs a row as little-endian float64s.  NaN and ±Inf survive.
func EncodeRow(row []float64) []byte {
	buf := make([]byte, 8*len(row))
	for i, v := range row {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

// DecodeRow reverses EncodeRow.
func DecodeRow(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, errors.Newf(errors.ErrCodeSerialization, "feature row has %d bytes, not a multiple of 8", len(buf))
	}
	row := make([]float64, len(buf)/8)
	for i := range row {
		row[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return row, nil
}

// Nop stores nothing.
type Nop struct{}

func (Nop) Get(context.Context, []string) (map[string][]float64, error) {
	return map[string][]float64{}, nil
}
func (Nop) Put(context.Context, map[string][]float64) error { return nil }
func (Nop) Close() error                                    { return nil }
