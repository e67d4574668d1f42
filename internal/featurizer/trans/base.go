// Package trans adapts featurizers to the batch transformer contract:
// inputs are normalized to a sequence, featurized in parallel, optionally
// filtered of failures and cast to the requested dtype.
package trans

import (
	"context"
	"time"

	"github.com/turtacn/padel-featurizer/internal/domain/molecule"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/prometheus"
)

// Featurizer produces one row per input.  Failed rows are nil.
type Featurizer interface {
	Columns() []string
	Transform(ctx context.Context, inputs molecule.Inputs, ignoreErrors bool) ([][]float64, error)
}

// CallOptions controls a Call.
type CallOptions struct {
	// IgnoreErrors drops failed rows instead of failing the batch.
	IgnoreErrors bool
	// EnforceDType casts rows to the transformer's dtype.
	EnforceDType bool
}

// Output is the result of a Call.
type Output struct {
	Columns []string
	// Rows are the float64 features, one per kept input.
	Rows [][]float64
	// Values holds Rows cast to the dtype when EnforceDType was set,
	// otherwise Rows itself.
	Values any
	// Kept maps each row back to its input index.
	Kept     []int
	DType    DType
	Duration time.Duration
}

// MoleculeTransformer is the shared batch-transformer behaviour.
type MoleculeTransformer struct {
	featurizer Featurizer
	name       string
	dtype      DType
	logger     logging.Logger
	metrics    *prometheus.FeaturizerMetrics
}

// BaseOption configures a MoleculeTransformer.
type BaseOption func(*MoleculeTransformer)

// WithDType sets the output dtype.
func WithDType(d DType) BaseOption {
	return func(t *MoleculeTransformer) { t.dtype = d }
}

// WithBaseLogger sets the logger.
func WithBaseLogger(l logging.Logger) BaseOption {
	return func(t *MoleculeTransformer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithBaseMetrics records batch validation failures.
func WithBaseMetrics(m *prometheus.FeaturizerMetrics) BaseOption {
	return func(t *MoleculeTransformer) { t.metrics = m }
}

// NewMoleculeTransformer wraps f.
func NewMoleculeTransformer(name string, f Featurizer, opts ...BaseOption) *MoleculeTransformer {
	t := &MoleculeTransformer{
		featurizer: f,
		name:       name,
		dtype:      Float64,
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the featurizer name.
func (t *MoleculeTransformer) Name() string { return t.name }

// DType returns the configured dtype.
func (t *MoleculeTransformer) DType() DType { return t.dtype }

// Columns returns the feature names.
func (t *MoleculeTransformer) Columns() []string { return t.featurizer.Columns() }

// Call featurizes inputs and applies the error policy and dtype.
func (t *MoleculeTransformer) Call(ctx context.Context, inputs molecule.Inputs, opts CallOptions) (*Output, error) {
	start := time.Now()
	rows, err := t.featurizer.Transform(ctx, inputs, opts.IgnoreErrors)
	if err != nil {
		return nil, err
	}

	kept := make([]int, 0, len(rows))
	out := make([][]float64, 0, len(rows))
	for i, row := range rows {
		if row == nil && opts.IgnoreErrors {
			continue
		}
		kept = append(kept, i)
		out = append(out, row)
	}
	if dropped := len(rows) - len(out); dropped > 0 {
		t.logger.Warn("dropped molecules that failed to featurize",
			logging.String("featurizer", t.name),
			logging.Int("dropped", dropped),
			logging.Int("total", len(rows)))
	}

	res := &Output{
		Columns: t.featurizer.Columns(),
		Rows:    out,
		Values:  out,
		Kept:    kept,
		DType:   Float64,
	}
	if opts.EnforceDType {
		v, err := t.dtype.Cast(out)
		if err != nil {
			return nil, err
		}
		res.Values = v
		res.DType = t.dtype
	}
	res.Duration = time.Since(start)
	return res, nil
}
