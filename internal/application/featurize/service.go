// Package featurize provides the application-level featurization service
// shared by the HTTP API, the job worker and the CLI.
package featurize

import (
	"context"
	"time"

	"github.com/turtacn/padel-featurizer/internal/domain/molecule"
	"github.com/turtacn/padel-featurizer/internal/featurizer/calc"
	"github.com/turtacn/padel-featurizer/internal/featurizer/export"
	"github.com/turtacn/padel-featurizer/internal/featurizer/registry"
	"github.com/turtacn/padel-featurizer/internal/featurizer/trans"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// DefaultMaxMolecules bounds a single request.
const DefaultMaxMolecules = 10000

// Service defines the featurization use cases.
type Service interface {
	Featurize(ctx context.Context, req *Request) (*Response, error)
	Columns() []string
	Params() calc.Params
	Name() string
}

// Request is one featurization request.
type Request struct {
	SMILES       []string `json:"smiles"`
	IgnoreErrors bool     `json:"ignore_errors"`
}

// Response carries the featurized rows.  Kept maps each row to its index in
// Request.SMILES.
type Response struct {
	Featurizer string
	Columns    []string
	Rows       [][]float64
	Kept       []int
	Requested  int
	Duration   time.Duration
}

// Failed returns the request indices that produced no row.
func (r *Response) Failed() []int {
	kept := make(map[int]bool, len(r.Kept))
	for _, k := range r.Kept {
		kept[k] = true
	}
	var failed []int
	for i := 0; i < r.Requested; i++ {
		if !kept[i] {
			failed = append(failed, i)
		}
	}
	return failed
}

// Table returns the rows labelled with their input SMILES.
func (r *Response) Table(req *Request) export.Table {
	ids := make([]string, len(r.Kept))
	for i, k := range r.Kept {
		ids[i] = req.SMILES[k]
	}
	return export.Table{Columns: r.Columns, IDs: ids, Rows: r.Rows}
}

// Option configures the service.
type Option func(*serviceImpl)

// WithMaxMolecules overrides DefaultMaxMolecules.  n <= 0 removes the limit.
func WithMaxMolecules(n int) Option {
	return func(s *serviceImpl) { s.maxMolecules = n }
}

type serviceImpl struct {
	featurizer   registry.Featurizer
	params       calc.Params
	maxMolecules int
	logger       logging.Logger
}

// NewService creates the service around a built featurizer.  params are the
// featurizer's constructor parameters, reported by Params.
func NewService(f registry.Featurizer, params calc.Params, logger logging.Logger, opts ...Option) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &serviceImpl{
		featurizer:   f,
		params:       params,
		maxMolecules: DefaultMaxMolecules,
		logger:       logger.Named("featurize"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceImpl) Name() string        { return s.featurizer.Name() }
func (s *serviceImpl) Columns() []string   { return s.featurizer.Columns() }
func (s *serviceImpl) Params() calc.Params { return s.params }

func (s *serviceImpl) Featurize(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || len(req.SMILES) == 0 {
		return nil, errors.New(errors.ErrCodeMoleculeEmptyInput, "smiles is required")
	}
	if s.maxMolecules > 0 && len(req.SMILES) > s.maxMolecules {
		return nil, errors.Newf(errors.ErrCodeBadRequest, "too many molecules: %d > %d", len(req.SMILES), s.maxMolecules)
	}
	for i, smi := range req.SMILES {
		if smi == "" {
			return nil, errors.New(errors.ErrCodeMoleculeInvalidSMILES, "empty smiles").WithDetailf("index %d", i)
		}
	}

	out, err := s.featurizer.Call(ctx, molecule.SMILESList(req.SMILES...), trans.CallOptions{IgnoreErrors: req.IgnoreErrors})
	if err != nil {
		s.logger.Warn("featurization failed",
			logging.Int("molecules", len(req.SMILES)),
			logging.String("code", string(errors.GetCode(err))),
			logging.Err(err))
		return nil, err
	}

	resp := &Response{
		Featurizer: s.featurizer.Name(),
		Columns:    out.Columns,
		Rows:       out.Rows,
		Kept:       out.Kept,
		Requested:  len(req.SMILES),
		Duration:   out.Duration,
	}
	s.logger.Info("featurized molecules",
		logging.Int("requested", resp.Requested),
		logging.Int("kept", len(resp.Kept)),
		logging.Duration("duration", resp.Duration))
	return resp, nil
}
