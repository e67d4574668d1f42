// Package cached puts a feature store in front of the PaDEL calculator so
// molecules already featurized with the same parameters and schema skip the
// external program.
package cached

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/padel-featurizer/internal/domain/molecule"
	"github.com/turtacn/padel-featurizer/internal/featurizer/batch"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/store"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// Source is the part of calc.PadelDescriptors the cache wraps.
type Source interface {
	Columns() []string
	Len() int
	Fingerprint() string
	Canonicalize(inputs molecule.Inputs) ([]string, error)
	ComputeSMILES(ctx context.Context, smiles []string) ([][]float64, error)
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records hits and misses under the given store label.
func WithMetrics(m *prometheus.FeaturizerMetrics, storeName string) Option {
	return func(c *Calculator) {
		c.metrics = m
		c.storeName = storeName
	}
}

// Calculator serves rows from a FeatureStore and computes only the misses.
// It satisfies trans.Calculator.
type Calculator struct {
	src       Source
	store     store.FeatureStore
	fp        string
	group     singleflight.Group
	logger    logging.Logger
	metrics   *prometheus.FeaturizerMetrics
	storeName string
}

// New wraps src.  A nil store disables caching.
func New(src Source, st store.FeatureStore, opts ...Option) *Calculator {
	if st == nil {
		st = store.Nop{}
	}
	c := &Calculator{
		src:       src,
		store:     st,
		fp:        src.Fingerprint(),
		logger:    logging.NewNopLogger(),
		storeName: "unknown",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calculator) Columns() []string { return c.src.Columns() }
func (c *Calculator) Len() int          { return c.src.Len() }

// Compute featurizes inputs, failing on the first molecule that cannot be
// canonicalized or computed.
func (c *Calculator) Compute(ctx context.Context, inputs molecule.Inputs) ([][]float64, error) {
	smiles, err := c.src.Canonicalize(inputs)
	if err != nil {
		return nil, err
	}
	return c.lookup(ctx, smiles, func(ctx context.Context, miss []string) ([][]float64, error) {
		return c.src.ComputeSMILES(ctx, miss)
	})
}

// BatchCompute returns one row per input.  Inputs that cannot be
// canonicalized and misses whose shard failed yield nil rows.
func (c *Calculator) BatchCompute(ctx context.Context, inputs molecule.Inputs, opts batch.Options) ([][]float64, error) {
	rows, _, err := c.BatchComputeRows(ctx, inputs, opts)
	return rows, err
}

// BatchComputeRows is BatchCompute with the cause of every nil row.
func (c *Calculator) BatchComputeRows(ctx context.Context, inputs molecule.Inputs, opts batch.Options) ([][]float64, []error, error) {
	if opts.Logger == nil {
		opts.Logger = c.logger
	}
	errs := make([]error, len(inputs))
	smiles := make([]string, len(inputs))
	for i, in := range inputs {
		s, err := c.src.Canonicalize(molecule.Single(in))
		if err != nil {
			errs[i] = errors.Wrap(err, errors.GetCode(err), "cannot canonicalize molecule").
				WithDetailf("index %d: %q", i, in.SMILES())
			c.logger.Warn("cannot canonicalize molecule", logging.Int("index", i), logging.Err(err))
			continue
		}
		smiles[i] = s[0]
	}
	valid := lo.Filter(smiles, func(s string, _ int) bool { return s != "" })
	if len(valid) == 0 {
		return make([][]float64, len(inputs)), errs, nil
	}

	failed := map[string]error{}
	rows, err := c.lookup(ctx, valid, func(ctx context.Context, miss []string) ([][]float64, error) {
		out, shardErrs, err := batch.Sharded(ctx, miss, opts, c.src.ComputeSMILES)
		for i, e := range shardErrs {
			if e != nil {
				failed[miss[i]] = e
			}
		}
		return out, err
	})
	if err != nil {
		return nil, nil, err
	}

	out := make([][]float64, len(inputs))
	k := 0
	for i, s := range smiles {
		if s == "" {
			continue
		}
		out[i] = rows[k]
		if out[i] == nil {
			errs[i] = failed[s]
			if errs[i] == nil {
				errs[i] = errors.New(errors.ErrCodePadelExecutionFailed, "molecule could not be computed").
					WithDetailf("index %d", i)
			}
		}
		k++
	}
	return out, errs, nil
}

type computeFunc func(ctx context.Context, smiles []string) ([][]float64, error)

// lookup resolves smiles against the store, computes the distinct misses
// with compute and writes successful rows back.  Rows are returned in input
// order; a nil row from compute stays nil.
func (c *Calculator) lookup(ctx context.Context, smiles []string, compute computeFunc) ([][]float64, error) {
	keys := lo.Map(smiles, func(s string, _ int) string { return store.Key(c.fp, s) })
	uniq := lo.Uniq(keys)

	hits, err := c.store.Get(ctx, uniq)
	if err != nil {
		c.logger.Warn("feature store lookup failed, computing every molecule", logging.Err(err))
		hits = map[string][]float64{}
	}
	for k, row := range hits {
		if len(row) != c.src.Len() {
			c.logger.Warn("discarding cached row with wrong width", logging.String("key", k), logging.Int("width", len(row)))
			delete(hits, k)
		}
	}
	missKeys := lo.Filter(uniq, func(k string, _ int) bool { _, ok := hits[k]; return !ok })
	c.metrics.RecordStoreAccess(c.storeName, len(uniq)-len(missKeys), len(missKeys), err)

	if len(missKeys) > 0 {
		computed, err := c.computeMisses(ctx, missKeys, compute)
		if err != nil {
			return nil, err
		}
		for k, row := range computed {
			hits[k] = row
		}
	}

	out := make([][]float64, len(keys))
	for i, k := range keys {
		if row, ok := hits[k]; ok && row != nil {
			out[i] = append([]float64(nil), row...)
		}
	}
	return out, nil
}

// computeMisses runs compute once for a given miss set even when several
// callers ask concurrently.
func (c *Calculator) computeMisses(ctx context.Context, missKeys []string, compute computeFunc) (map[string][]float64, error) {
	v, err, shared := c.group.Do(strings.Join(missKeys, "\n"), func() (any, error) {
		miss := lo.Map(missKeys, func(k string, _ int) string { return strings.TrimPrefix(k, c.fp+":") })
		rows, err := compute(ctx, miss)
		if err != nil {
			return nil, err
		}
		computed := make(map[string][]float64, len(rows))
		fresh := make(map[string][]float64, len(rows))
		for i, row := range rows {
			computed[missKeys[i]] = row
			if row != nil {
				fresh[missKeys[i]] = row
			}
		}
		if err := c.store.Put(ctx, fresh); err != nil {
			c.logger.Warn("feature store write failed", logging.Int("rows", len(fresh)), logging.Err(err))
		}
		return computed, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("shared in-flight computation", logging.Int("molecules", len(missKeys)))
	}
	return v.(map[string][]float64), nil
}
