// Package batch runs a per-item function over a slice with bounded
// concurrency, optional per-item and per-batch timeouts, retry with
// exponential backoff, an optional circuit breaker and back-pressure.
// Results always come back in input order.
package batch

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

var (
	ErrShutdown     = stderrors.New("batch processor is shutting down")
	ErrBackpressure = stderrors.New("backpressure threshold exceeded")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
)

// ItemStatus is the outcome of a single item.
type ItemStatus int

const (
	ItemStatusSuccess ItemStatus = iota
	ItemStatusFailed
	ItemStatusTimeout
	ItemStatusCancelled
)

func (s ItemStatus) String() string {
	switch s {
	case ItemStatusSuccess:
		return "SUCCESS"
	case ItemStatusFailed:
		return "FAILED"
	case ItemStatusTimeout:
		return "TIMEOUT"
	case ItemStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ProcessFunc processes a single item.
type ProcessFunc[T, R any] func(ctx context.Context, item T) (R, error)

// ItemResult holds the outcome of one item.
type ItemResult[R any] struct {
	Index    int
	Result   R
	Error    error
	Duration time.Duration
	Status   ItemStatus
}

// Result aggregates a whole run.
type Result[R any] struct {
	Items        []*ItemResult[R]
	SuccessCount int
	FailureCount int
	Duration     time.Duration
}

// Processor runs batches.
type Processor[T, R any] interface {
	Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*Result[R], error)
	Shutdown(ctx context.Context) error
}

// RetryPolicy governs how failed items are retried.
type RetryPolicy struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// RetryableErrors limits retries to errors matching one of these; empty
	// retries everything.
	RetryableErrors []error
}

func (p *RetryPolicy) shouldRetry(err error) bool {
	if p == nil || err == nil {
		return false
	}
	if len(p.RetryableErrors) == 0 {
		return true
	}
	for _, re := range p.RetryableErrors {
		if stderrors.Is(err, re) {
			return true
		}
	}
	return false
}

// backoff returns the delay before retry number attempt (0-based), with
// ±25% jitter and capped at MaxBackoff.
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	if p == nil || p.InitialBackoff <= 0 {
		return 0
	}
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 2
	}
	base := float64(p.InitialBackoff) * math.Pow(mult, float64(attempt))
	if p.MaxBackoff > 0 && base > float64(p.MaxBackoff) {
		base = float64(p.MaxBackoff)
	}
	d := time.Duration(base + base*0.25*(rand.Float64()*2-1))
	if d < 0 {
		return 0
	}
	return d
}

const (
	cbClosed int32 = iota
	cbOpen
	cbHalfOpen
)

type circuitBreaker struct {
	state     atomic.Int32
	fails     atomic.Int32
	threshold int32
	reset     time.Duration
	openedAt  atomic.Int64
	permits   atomic.Int32
	logger    logging.Logger
}

func newCircuitBreaker(threshold int, reset time.Duration, logger logging.Logger) *circuitBreaker {
	return &circuitBreaker{threshold: int32(threshold), reset: reset, logger: logger}
}

func (cb *circuitBreaker) allow() bool {
	switch cb.state.Load() {
	case cbClosed:
		return true
	case cbOpen:
		if time.Since(time.Unix(0, cb.openedAt.Load())) < cb.reset {
			return false
		}
		if cb.state.CompareAndSwap(cbOpen, cbHalfOpen) {
			cb.permits.Store(1)
			cb.transition("OPEN", "HALF_OPEN")
		}
		return cb.permits.Add(-1) >= 0
	case cbHalfOpen:
		return cb.permits.Add(-1) >= 0
	}
	return false
}

func (cb *circuitBreaker) success() {
	cb.fails.Store(0)
	if cb.state.CompareAndSwap(cbHalfOpen, cbClosed) {
		cb.transition("HALF_OPEN", "CLOSED")
	}
}

func (cb *circuitBreaker) failure() {
	n := cb.fails.Add(1)
	switch cb.state.Load() {
	case cbClosed:
		if n >= cb.threshold && cb.state.CompareAndSwap(cbClosed, cbOpen) {
			cb.openedAt.Store(time.Now().UnixNano())
			cb.transition("CLOSED", "OPEN")
		}
	case cbHalfOpen:
		if cb.state.CompareAndSwap(cbHalfOpen, cbOpen) {
			cb.openedAt.Store(time.Now().UnixNano())
			cb.transition("HALF_OPEN", "OPEN")
		}
	}
}

func (cb *circuitBreaker) transition(from, to string) {
	cb.logger.Info("circuit breaker state change", logging.String("from", from), logging.String("to", to))
}

type config struct {
	maxConcurrency int
	itemTimeout    time.Duration
	batchTimeout   time.Duration
	retry          *RetryPolicy
	cbThreshold    int
	cbReset        time.Duration
	backpressure   int
	logger         logging.Logger
}

// Option configures a Processor.
type Option func(*config)

// WithMaxConcurrency bounds the number of items in flight.  Non-positive
// values keep the default of runtime.NumCPU().
func WithMaxConcurrency(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithItemTimeout bounds each item.  Zero disables the limit.
func WithItemTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.itemTimeout = d
		}
	}
}

// WithBatchTimeout bounds the whole batch.  Zero disables the limit.
func WithBatchTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.batchTimeout = d
		}
	}
}

// WithRetry retries failed items up to maxRetries extra times.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *config) {
		if maxRetries > 0 {
			c.retry = &RetryPolicy{
				MaxRetries:        maxRetries,
				InitialBackoff:    backoff,
				MaxBackoff:        backoff * 16,
				BackoffMultiplier: 2,
			}
		}
	}
}

// WithRetryPolicy installs a complete retry policy.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(c *config) { c.retry = p }
}

// WithCircuitBreaker trips after threshold consecutive failures and probes
// again after reset.
func WithCircuitBreaker(threshold int, reset time.Duration) Option {
	return func(c *config) {
		if threshold > 0 && reset > 0 {
			c.cbThreshold = threshold
			c.cbReset = reset
		}
	}
}

// WithBackpressure rejects a batch when it would push the number of pending
// items above n.
func WithBackpressure(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.backpressure = n
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

type processor[T, R any] struct {
	cfg *config
	cb  *circuitBreaker

	shutdownOnce sync.Once
	isShutdown   atomic.Bool
	active       sync.WaitGroup
	pending      atomic.Int64
}

// NewProcessor returns a Processor configured by opts.
func NewProcessor[T, R any](opts ...Option) Processor[T, R] {
	cfg := &config{
		maxConcurrency: runtime.NumCPU(),
		logger:         logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(cfg)
	}
	p := &processor[T, R]{cfg: cfg}
	if cfg.cbThreshold > 0 {
		p.cb = newCircuitBreaker(cfg.cbThreshold, cfg.cbReset, cfg.logger)
	}
	return p
}

func (p *processor[T, R]) Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*Result[R], error) {
	if fn == nil {
		return nil, errors.New(errors.ErrCodeBadRequest, "process function must not be nil")
	}
	if p.isShutdown.Load() {
		return nil, ErrShutdown
	}
	n := len(items)
	if n == 0 {
		return &Result[R]{Items: []*ItemResult[R]{}}, nil
	}

	if p.cfg.backpressure > 0 && p.pending.Load()+int64(n) > int64(p.cfg.backpressure) {
		return nil, ErrBackpressure
	}
	p.pending.Add(int64(n))
	defer p.pending.Add(-int64(n))

	p.active.Add(1)
	defer p.active.Done()

	start := time.Now()
	batchCtx := ctx
	if p.cfg.batchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, p.cfg.batchTimeout)
		defer cancel()
	}

	results := make([]*ItemResult[R], n)
	sem := semaphore.NewWeighted(int64(p.cfg.maxConcurrency))
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if err := sem.Acquire(batchCtx, 1); err != nil {
			for j := i; j < n; j++ {
				results[j] = &ItemResult[R]{Index: j, Error: err, Status: classify(batchCtx, err)}
			}
			break
		}
		wg.Add(1)
		go func(idx int, item T) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx] = p.processOne(batchCtx, idx, item, fn)
		}(i, items[i])
	}
	wg.Wait()

	out := &Result[R]{Items: results, Duration: time.Since(start)}
	for _, r := range results {
		if r.Status == ItemStatusSuccess {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
	}
	return out, nil
}

func (p *processor[T, R]) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() { p.isShutdown.Store(true) })

	done := make(chan struct{})
	go func() {
		p.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "batch processor shutdown timed out")
	}
}

func (p *processor[T, R]) processOne(batchCtx context.Context, idx int, item T, fn ProcessFunc[T, R]) *ItemResult[R] {
	start := time.Now()
	if p.cb != nil && !p.cb.allow() {
		return &ItemResult[R]{Index: idx, Error: ErrCircuitOpen, Status: ItemStatusFailed}
	}

	attempts := 1
	if p.cfg.retry != nil && p.cfg.retry.MaxRetries > 0 {
		attempts += p.cfg.retry.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if d := p.cfg.retry.backoff(attempt - 1); d > 0 {
				select {
				case <-batchCtx.Done():
					err := batchCtx.Err()
					return &ItemResult[R]{Index: idx, Error: err, Status: classify(batchCtx, err), Duration: time.Since(start)}
				case <-time.After(d):
				}
			}
		}

		itemCtx, cancel := batchCtx, context.CancelFunc(func() {})
		if p.cfg.itemTimeout > 0 {
			itemCtx, cancel = context.WithTimeout(batchCtx, p.cfg.itemTimeout)
		}
		res, err := fn(itemCtx, item)
		cancel()

		if err == nil {
			if p.cb != nil {
				p.cb.success()
			}
			return &ItemResult[R]{Index: idx, Result: res, Status: ItemStatusSuccess, Duration: time.Since(start)}
		}
		lastErr = err
		if p.cb != nil {
			p.cb.failure()
		}
		if attempt < attempts-1 && p.cfg.retry.shouldRetry(err) {
			p.cfg.logger.Debug("retrying batch item", logging.Int("index", idx), logging.Int("attempt", attempt+1), logging.Err(err))
			continue
		}
		break
	}
	return &ItemResult[R]{Index: idx, Error: lastErr, Status: classify(batchCtx, lastErr), Duration: time.Since(start)}
}

func classify(batchCtx context.Context, err error) ItemStatus {
	switch {
	case err == nil:
		return ItemStatusSuccess
	case stderrors.Is(err, context.DeadlineExceeded) || errors.IsCode(err, errors.ErrCodePadelTimeout):
		return ItemStatusTimeout
	case stderrors.Is(err, context.Canceled):
		return ItemStatusCancelled
	case stderrors.Is(batchCtx.Err(), context.DeadlineExceeded):
		return ItemStatusTimeout
	case batchCtx.Err() != nil:
		return ItemStatusCancelled
	}
	return ItemStatusFailed
}
