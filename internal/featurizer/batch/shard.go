package batch

import (
	"context"
	"runtime"
	"time"

	"github.com/samber/lo"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// Options configures a sharded run.
type Options struct {
	// NJobs is the number of shards processed concurrently; <= 0 uses every
	// CPU.
	NJobs int
	// ShardSize overrides the number of items per shard.  Zero splits the
	// input evenly across NJobs shards.
	ShardSize    int
	ItemTimeout  time.Duration
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Backpressure int
	Verbose      bool
	Logger       logging.Logger
}

// Workers resolves NJobs to a positive worker count.
func (o Options) Workers() int {
	if o.NJobs <= 0 {
		return runtime.NumCPU()
	}
	return o.NJobs
}

func (o Options) shardSize(n int) int {
	if o.ShardSize > 0 {
		return o.ShardSize
	}
	w := o.Workers()
	size := (n + w - 1) / w
	if size < 1 {
		size = 1
	}
	return size
}

func (o Options) processorOptions() []Option {
	return []Option{
		WithMaxConcurrency(o.Workers()),
		WithItemTimeout(o.ItemTimeout),
		WithBatchTimeout(o.BatchTimeout),
		WithRetry(o.MaxRetries, o.RetryBackoff),
		WithBackpressure(o.Backpressure),
		WithLogger(o.Logger),
	}
}

// ShardFunc processes one shard and returns exactly one result per item.
type ShardFunc[T, R any] func(ctx context.Context, shard []T) ([]R, error)

// Sharded splits items into contiguous shards, runs fn on each shard
// concurrently and reassembles the results in input order.  Every item of a
// failed shard gets the zero R and the shard's error.  The returned error is
// only set when the run as a whole could not start.
func Sharded[T, R any](ctx context.Context, items []T, opts Options, fn ShardFunc[T, R]) ([]R, []error, error) {
	out := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return out, errs, nil
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	shards := lo.Chunk(items, opts.shardSize(len(items)))
	offsets := make([]int, len(shards))
	for i := 1; i < len(shards); i++ {
		offsets[i] = offsets[i-1] + len(shards[i-1])
	}

	p := NewProcessor[[]T, []R](opts.processorOptions()...)
	res, err := p.Process(ctx, shards, func(ctx context.Context, shard []T) ([]R, error) {
		rows, err := fn(ctx, shard)
		if err != nil {
			return nil, err
		}
		if len(rows) != len(shard) {
			return nil, errors.Newf(errors.ErrCodeInternal, "shard returned %d results for %d items", len(rows), len(shard))
		}
		return rows, nil
	})
	if err != nil {
		return nil, nil, err
	}

	for i, ir := range res.Items {
		off := offsets[i]
		if ir.Status != ItemStatusSuccess {
			logger.Warn("shard failed",
				logging.Int("shard", i),
				logging.Int("items", len(shards[i])),
				logging.String("status", ir.Status.String()),
				logging.Err(ir.Error))
			for j := range shards[i] {
				errs[off+j] = ir.Error
			}
			continue
		}
		copy(out[off:], ir.Result)
		if opts.Verbose {
			logger.Info("shard done",
				logging.Int("shard", i+1),
				logging.Int("of", len(shards)),
				logging.Duration("elapsed", ir.Duration))
		}
	}
	return out, errs, nil
}
