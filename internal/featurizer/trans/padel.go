package trans

import (
	"context"
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/turtacn/padel-featurizer/internal/domain/molecule"
	"github.com/turtacn/padel-featurizer/internal/featurizer/batch"
	"github.com/turtacn/padel-featurizer/internal/featurizer/calc"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/padel-featurizer/internal/padel"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// Parallel keyword names understood by ParallelKwargs.
const (
	KwItemTimeout  = "item_timeout"
	KwBatchTimeout = "batch_timeout"
	KwMaxRetries   = "max_retries"
	KwBackpressure = "backpressure"
	KwShardSize    = "shard_size"
)

// TransformerConfig configures a PadelTransformer.
type TransformerConfig struct {
	// NJobs is the number of concurrent PaDEL calls; <= 0 uses every CPU.
	NJobs   int
	Verbose bool
	DType   DType
	// ParallelKwargs tunes the batch dispatcher; see the Kw constants.
	ParallelKwargs map[string]any
	Params         calc.Params
	Logger         logging.Logger
	Metrics        *prometheus.FeaturizerMetrics
}

// DefaultTransformerConfig runs one job with default calculator params.
func DefaultTransformerConfig() TransformerConfig {
	return TransformerConfig{NJobs: 1, DType: Float64, Params: calc.DefaultParams()}
}

// Calculator is the part of calc.PadelDescriptors the transformer needs.
type Calculator interface {
	Columns() []string
	Len() int
	BatchCompute(ctx context.Context, inputs molecule.Inputs, opts batch.Options) ([][]float64, error)
	BatchComputeRows(ctx context.Context, inputs molecule.Inputs, opts batch.Options) ([][]float64, []error, error)
}

// PadelTransformer featurizes batches of molecules with PaDEL, sharding the
// batch so each worker makes one PaDEL call.
type PadelTransformer struct {
	*MoleculeTransformer
	calc    Calculator
	opts    batch.Options
	logger  logging.Logger
	metrics *prometheus.FeaturizerMetrics
}

// NewPadelTransformer builds the calculator, probing PaDEL once, and wraps
// it.
func NewPadelTransformer(ctx context.Context, client padel.Client, toolkit molecule.Toolkit, cfg TransformerConfig) (*PadelTransformer, error) {
	c, err := calc.New(ctx, client, toolkit, cfg.Params, calc.WithLogger(cfg.Logger), calc.WithMetrics(cfg.Metrics))
	if err != nil {
		return nil, err
	}
	return Wrap(c, cfg)
}

// Wrap builds a transformer around an existing calculator.
func Wrap(c Calculator, cfg TransformerConfig) (*PadelTransformer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	opts, err := batchOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	t := &PadelTransformer{
		calc:    c,
		opts:    opts,
		logger:  logger,
		metrics: cfg.Metrics,
	}
	t.MoleculeTransformer = NewMoleculeTransformer(calc.Name, t,
		WithDType(cfg.DType), WithBaseLogger(logger), WithBaseMetrics(cfg.Metrics))
	return t, nil
}

// Calculator returns the wrapped calculator.
func (t *PadelTransformer) Calculator() Calculator { return t.calc }

// Columns delegates to the calculator.
func (t *PadelTransformer) Columns() []string { return t.calc.Columns() }

// BatchOptions returns the resolved dispatcher options.
func (t *PadelTransformer) BatchOptions() batch.Options { return t.opts }

// Transform featurizes inputs.  Unless ignoreErrors, a failed row or a row
// containing NaN fails the whole batch with FEAT_001, wrapping the row's
// cause when there is one; with ignoreErrors the rows are returned as
// computed.
func (t *PadelTransformer) Transform(ctx context.Context, inputs molecule.Inputs, ignoreErrors bool) ([][]float64, error) {
	rows, errs, err := t.calc.BatchComputeRows(ctx, inputs, t.opts)
	if err != nil {
		return nil, err
	}
	if ignoreErrors {
		return rows, nil
	}
	for i, row := range rows {
		if row != nil && !lo.SomeBy(row, math.IsNaN) {
			continue
		}
		t.metrics.RecordBatchValidationFailure(calc.Name)
		msg := fmt.Sprintf("cannot transform molecule at index %d", i)
		if row == nil && errs[i] != nil {
			return nil, errors.Wrap(errs[i], errors.ErrCodeBatchValidation, msg)
		}
		return nil, errors.New(errors.ErrCodeBatchValidation, msg)
	}
	return rows, nil
}

// TransformOne featurizes a single input.
func (t *PadelTransformer) TransformOne(ctx context.Context, in molecule.Input, ignoreErrors bool) ([][]float64, error) {
	return t.Transform(ctx, molecule.Single(in), ignoreErrors)
}

func batchOptions(cfg TransformerConfig, logger logging.Logger) (batch.Options, error) {
	opts := batch.Options{NJobs: cfg.NJobs, Verbose: cfg.Verbose, Logger: logger}
	var err error
	for k, v := range cfg.ParallelKwargs {
		switch k {
		case KwItemTimeout:
			opts.ItemTimeout, err = cast.ToDurationE(v)
		case KwBatchTimeout:
			opts.BatchTimeout, err = cast.ToDurationE(v)
		case KwMaxRetries:
			opts.MaxRetries, err = cast.ToIntE(v)
		case KwBackpressure:
			opts.Backpressure, err = cast.ToIntE(v)
		case KwShardSize:
			opts.ShardSize, err = cast.ToIntE(v)
		default:
			logger.Debug("ignoring unknown parallel kwarg", logging.String("key", k))
		}
		if err != nil {
			return batch.Options{}, errors.Wrap(err, errors.ErrCodeInvalidParams, "invalid parallel kwarg").
				WithDetailf("%s=%v", k, v)
		}
	}
	return opts, nil
}
