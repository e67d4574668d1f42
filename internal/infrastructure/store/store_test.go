package store

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRow_NonFinite(t *testing.T) {
	row := []float64{1.25, math.NaN(), math.Inf(-1), 0}
	got, err := DecodeRow(EncodeRow(row))
	require.NoError(t, err)
	assert.Equal(t, 1.25, got[0])
	assert.True(t, math.IsNaN(got[1]))
	assert.True(t, math.IsInf(got[2], -1))
	assert.Equal(t, 0.0, got[3])
}

func TestDecodeRow_BadLength(t *testing.T) {
	_, err := DecodeRow([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "abc:CCO", Key("abc", "CCO"))
}

func TestMemoryStore_GetPut(t *testing.T) {
	s, err := NewMemoryStore(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, map[string][]float64{"a": {1}, "b": {2}}))
	got, err := s.Get(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]float64{"a": {1}, "b": {2}}, got)

	got["a"][0] = 99
	again, _ := s.Get(ctx, []string{"a"})
	assert.Equal(t, 1.0, again["a"][0])
}

func TestMemoryStore_Evicts(t *testing.T) {
	s, err := NewMemoryStore(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, map[string][]float64{"a": {1}}))
	require.NoError(t, s.Put(ctx, map[string][]float64{"b": {2}}))
	require.NoError(t, s.Put(ctx, map[string][]float64{"c": {3}}))
	assert.Equal(t, 2, s.Len())

	got, _ := s.Get(ctx, []string{"a"})
	assert.Empty(t, got)
	require.NoError(t, s.Close())
	assert.Equal(t, 0, s.Len())
}

func TestNop(t *testing.T) {
	var s FeatureStore = Nop{}
	require.NoError(t, s.Put(context.Background(), map[string][]float64{"a": {1}}))
	got, err := s.Get(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
