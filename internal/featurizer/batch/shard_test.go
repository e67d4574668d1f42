package batch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Workers(t *testing.T) {
	assert.Equal(t, 3, Options{NJobs: 3}.Workers())
	assert.Positive(t, Options{NJobs: -1}.Workers())
	assert.Positive(t, Options{}.Workers())
}

func TestOptions_ShardSize(t *testing.T) {
	assert.Equal(t, 4, Options{NJobs: 3}.shardSize(10))
	assert.Equal(t, 1, Options{NJobs: 8}.shardSize(3))
	assert.Equal(t, 5, Options{NJobs: 2, ShardSize: 5}.shardSize(100))
}

func TestSharded_PreservesOrder(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	var mu sync.Mutex
	var sizes []int
	out, errs, err := Sharded(context.Background(), items, Options{NJobs: 3}, func(ctx context.Context, shard []int) ([]int, error) {
		mu.Lock()
		sizes = append(sizes, len(shard))
		mu.Unlock()
		res := make([]int, len(shard))
		for i, v := range shard {
			res[i] = v * 10
		}
		return res, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}, out)
	for _, e := range errs {
		assert.NoError(t, e)
	}
	assert.ElementsMatch(t, []int{4, 4, 2}, sizes)
}

func TestSharded_FailedShardLeavesZeroRows(t *testing.T) {
	items := []string{"a", "b", "bad", "c"}
	boom := errors.New("boom")
	out, errs, err := Sharded(context.Background(), items, Options{NJobs: 2}, func(ctx context.Context, shard []string) ([]*string, error) {
		res := make([]*string, len(shard))
		for i := range shard {
			if shard[i] == "bad" {
				return nil, boom
			}
			s := shard[i]
			res[i] = &s
		}
		return res, nil
	})
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, "a", *out[0])
	assert.Equal(t, "b", *out[1])
	assert.Nil(t, out[2])
	assert.Nil(t, out[3])
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[2], boom)
	assert.ErrorIs(t, errs[3], boom)
}

func TestSharded_WrongRowCount(t *testing.T) {
	_, errs, err := Sharded(context.Background(), []int{1, 2}, Options{NJobs: 1}, func(ctx context.Context, shard []int) ([]int, error) {
		return []int{1}, nil
	})
	require.NoError(t, err)
	assert.Error(t, errs[0])
	assert.Error(t, errs[1])
}

func TestSharded_Empty(t *testing.T) {
	out, errs, err := Sharded(context.Background(), []int{}, Options{}, func(ctx context.Context, shard []int) ([]int, error) {
		t.Fatal("fn must not be called")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, errs)
}

func TestSharded_Backpressure(t *testing.T) {
	_, _, err := Sharded(context.Background(), []int{1, 2, 3}, Options{NJobs: 3, Backpressure: 1}, func(ctx context.Context, shard []int) ([]int, error) {
		return shard, nil
	})
	assert.ErrorIs(t, err, ErrBackpressure)
}
