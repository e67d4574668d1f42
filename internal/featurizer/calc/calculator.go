// Package calc implements the PaDEL descriptor calculator: molecules in,
// numeric feature rows out, with the descriptor computation delegated to the
// external PaDEL-Descriptor program.
package calc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/padel-featurizer/internal/domain/molecule"
	"github.com/turtacn/padel-featurizer/internal/featurizer/batch"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/padel-featurizer/internal/padel"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

const (
	// Name is the featurizer name used in metrics and the registry.
	Name = "padel"
	// ColumnPrefix is prepended to every PaDEL descriptor name.
	ColumnPrefix = "PaDEL_"
	// ProbeSMILES is the molecule used to discover the descriptor schema.
	ProbeSMILES = "CCCC"
)

// Schema is the ordered list of raw descriptor names reported by PaDEL for
// a given parameter set.
type Schema struct {
	Names []string
}

// Len returns the number of descriptors.
func (s Schema) Len() int { return len(s.Names) }

// Option configures a PadelDescriptors.
type Option func(*PadelDescriptors)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *PadelDescriptors) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records featurized molecule counts.
func WithMetrics(m *prometheus.FeaturizerMetrics) Option {
	return func(c *PadelDescriptors) { c.metrics = m }
}

// PadelDescriptors computes PaDEL descriptors and fingerprints.  It is
// read-only after construction and safe for concurrent use.
type PadelDescriptors struct {
	client  padel.Client
	toolkit molecule.Toolkit
	params  Params
	schema  Schema
	columns []string
	logger  logging.Logger
	metrics *prometheus.FeaturizerMetrics
}

// New validates params and probes PaDEL once to discover the descriptor
// schema.
func New(ctx context.Context, client padel.Client, toolkit molecule.Toolkit, params Params, opts ...Option) (*PadelDescriptors, error) {
	if client == nil {
		return nil, errors.New(errors.ErrCodeValidation, "padel client is required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if toolkit == nil {
		toolkit = molecule.NewToolkit()
	}
	c := &PadelDescriptors{
		client:  client,
		toolkit: toolkit,
		params:  params,
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	recs, err := c.call(ctx, []string{ProbeSMILES})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePadelSchemaProbeFailed, "schema probe failed")
	}
	if len(recs) != 1 || recs[0].Len() == 0 {
		return nil, errors.New(errors.ErrCodePadelSchemaProbeFailed, "schema probe returned no descriptors")
	}
	c.schema = Schema{Names: append([]string(nil), recs[0].Names...)}
	c.columns = lo.Map(c.schema.Names, func(n string, _ int) string { return ColumnPrefix + n })
	c.metrics.SetReady(Name, true)
	c.logger.Info("padel schema discovered",
		logging.Int("descriptors", c.schema.Len()),
		logging.Bool("fingerprints", params.Fingerprints))
	return c, nil
}

// Restore rebuilds a calculator from serialized params and re-probes the
// schema.
func Restore(ctx context.Context, client padel.Client, toolkit molecule.Toolkit, data []byte, opts ...Option) (*PadelDescriptors, error) {
	p, err := DecodeParams(data)
	if err != nil {
		return nil, err
	}
	return New(ctx, client, toolkit, p, opts...)
}

// Columns returns the prefixed descriptor names.  The slice is a copy.
func (c *PadelDescriptors) Columns() []string {
	return append([]string(nil), c.columns...)
}

// Len returns the number of feature columns.
func (c *PadelDescriptors) Len() int { return c.schema.Len() }

// Schema returns the raw descriptor schema.
func (c *PadelDescriptors) Schema() Schema {
	return Schema{Names: append([]string(nil), c.schema.Names...)}
}

// Params returns the constructor parameters.
func (c *PadelDescriptors) Params() Params { return c.params }

// Fingerprint identifies the parameter set and the discovered schema.  Two
// calculators with equal fingerprints produce interchangeable rows.
func (c *PadelDescriptors) Fingerprint() string {
	h := sha256.New()
	p, _ := json.Marshal(c.params)
	h.Write(p)
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(c.schema.Names, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}

// MarshalJSON serializes the parameters only.
func (c *PadelDescriptors) MarshalJSON() ([]byte, error) { return json.Marshal(c.params) }

// MarshalYAML serializes the parameters only.
func (c *PadelDescriptors) MarshalYAML() (interface{}, error) { return c.params, nil }

// EncodeYAML renders the parameters as a YAML document.
func (c *PadelDescriptors) EncodeYAML() ([]byte, error) { return yaml.Marshal(c.params) }

// Canonicalize turns each input into the canonical SMILES sent to PaDEL,
// standardizing it first unless disabled.
func (c *PadelDescriptors) Canonicalize(inputs molecule.Inputs) ([]string, error) {
	if len(inputs) == 0 {
		return nil, errors.New(errors.ErrCodeMoleculeEmptyInput, "no molecules to featurize")
	}
	out := make([]string, len(inputs))
	for i, in := range inputs {
		s, err := molecule.Canonicalize(c.toolkit, in, !c.params.DoNotStandardize)
		if err != nil {
			return nil, errors.Wrap(err, errors.GetCode(err), "cannot canonicalize molecule").
				WithDetailf("index %d: %q", i, in.SMILES())
		}
		out[i] = s
	}
	return out, nil
}

// Compute featurizes inputs with a single PaDEL call.
func (c *PadelDescriptors) Compute(ctx context.Context, inputs molecule.Inputs) (Result, error) {
	smiles, err := c.Canonicalize(inputs)
	if err != nil {
		return Result{}, err
	}
	rows, err := c.ComputeSMILES(ctx, smiles)
	if err != nil {
		return Result{}, err
	}
	return newResult(rows, c.Len()), nil
}

// ComputeSMILES featurizes already canonical SMILES.  It performs no
// standardization.
func (c *PadelDescriptors) ComputeSMILES(ctx context.Context, smiles []string) ([][]float64, error) {
	if len(smiles) == 0 {
		return nil, errors.New(errors.ErrCodeMoleculeEmptyInput, "no molecules to featurize")
	}
	recs, err := c.call(ctx, smiles)
	if err != nil {
		return nil, err
	}
	if len(recs) != len(smiles) {
		return nil, errors.Newf(errors.ErrCodePadelRecordCountMismatch,
			"padel returned %d records for %d molecules", len(recs), len(smiles))
	}
	rows := make([][]float64, len(recs))
	for i, rec := range recs {
		if err := c.checkSchema(rec); err != nil {
			return nil, err.WithDetailf("record %d", i)
		}
		rows[i] = c.toFloats(rec.Values)
	}
	c.metrics.RecordFeaturized(Name, len(rows))
	return rows, nil
}

// ComputeRow featurizes a single input.
func (c *PadelDescriptors) ComputeRow(ctx context.Context, in molecule.Input) ([]float64, error) {
	res, err := c.Compute(ctx, molecule.Single(in))
	if err != nil {
		return nil, err
	}
	return res.Vector(), nil
}

// BatchCompute shards inputs across workers and returns one row per input.
// Rows that could not be computed are nil.
func (c *PadelDescriptors) BatchCompute(ctx context.Context, inputs molecule.Inputs, opts batch.Options) ([][]float64, error) {
	rows, _, err := c.BatchComputeRows(ctx, inputs, opts)
	return rows, err
}

// BatchComputeRows is BatchCompute with the cause of every nil row.  Each
// input is canonicalized on its own, so a bad molecule only nils its own
// row; a failed PaDEL shard nils the rows of that shard.
func (c *PadelDescriptors) BatchComputeRows(ctx context.Context, inputs molecule.Inputs, opts batch.Options) ([][]float64, []error, error) {
	if opts.Logger == nil {
		opts.Logger = c.logger
	}
	rows := make([][]float64, len(inputs))
	errs := make([]error, len(inputs))
	var valid []string
	var index []int
	for i, in := range inputs {
		s, err := molecule.Canonicalize(c.toolkit, in, !c.params.DoNotStandardize)
		if err != nil {
			errs[i] = errors.Wrap(err, errors.GetCode(err), "cannot canonicalize molecule").
				WithDetailf("index %d: %q", i, in.SMILES())
			c.logger.Warn("cannot canonicalize molecule", logging.Int("index", i), logging.Err(err))
			continue
		}
		valid = append(valid, s)
		index = append(index, i)
	}
	if len(valid) == 0 {
		return rows, errs, nil
	}

	computed, shardErrs, err := batch.Sharded(ctx, valid, opts, c.ComputeSMILES)
	if err != nil {
		return nil, nil, err
	}
	for k, i := range index {
		rows[i] = computed[k]
		errs[i] = shardErrs[k]
	}
	return rows, errs, nil
}

func (c *PadelDescriptors) call(ctx context.Context, smiles []string) ([]padel.Record, error) {
	timeout := c.params.TimeoutDuration()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.client.FromSMILES(ctx, smiles, padel.Options{
		Descriptors:  c.params.Descriptors,
		Fingerprints: c.params.Fingerprints,
		Timeout:      timeout,
	})
}

func (c *PadelDescriptors) checkSchema(rec padel.Record) *errors.AppError {
	if rec.Len() != c.schema.Len() || len(rec.Names) != len(rec.Values) {
		return errors.Newf(errors.ErrCodePadelSchemaMismatch,
			"expected %d descriptors, got %d", c.schema.Len(), rec.Len())
	}
	for j, n := range rec.Names {
		if n != c.schema.Names[j] {
			return errors.Newf(errors.ErrCodePadelSchemaMismatch,
				"descriptor %d is %q, expected %q", j, n, c.schema.Names[j])
		}
	}
	return nil
}

func (c *PadelDescriptors) toFloats(values []string) []float64 {
	row := make([]float64, len(values))
	for j, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			f = math.NaN()
		}
		if c.params.ReplaceNaN && math.IsNaN(f) {
			f = 0
		}
		row[j] = f
	}
	return row
}
