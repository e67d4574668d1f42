package trans

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/padel-featurizer/internal/domain/molecule"
	"github.com/turtacn/padel-featurizer/internal/featurizer/batch"
	"github.com/turtacn/padel-featurizer/internal/testutil"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

type PadelTransformerSuite struct {
	suite.Suite
	ctx  context.Context
	fake *testutil.FakePadel
	tk   molecule.Toolkit
	tr   *PadelTransformer
}

func TestPadelTransformerSuite(t *testing.T) {
	suite.Run(t, new(PadelTransformerSuite))
}

func (s *PadelTransformerSuite) SetupTest() {
	s.ctx = context.Background()
	s.fake = testutil.NewFakePadel()
	s.tk = molecule.NewToolkit()
	cfg := DefaultTransformerConfig()
	cfg.NJobs = 2
	tr, err := NewPadelTransformer(s.ctx, s.fake, s.tk, cfg)
	s.Require().NoError(err)
	s.tr = tr
}

func (s *PadelTransformerSuite) canonical(smiles string) string {
	out, err := molecule.Canonicalize(s.tk, molecule.FromSMILES(smiles), false)
	s.Require().NoError(err)
	return out
}

func (s *PadelTransformerSuite) TestTransformShape() {
	rows, err := s.tr.Transform(s.ctx, molecule.SMILESList("CCO", "CCN", "CCC", "c1ccccc1"), false)
	s.Require().NoError(err)
	s.Len(rows, 4)
	for _, r := range rows {
		s.Len(r, len(s.tr.Columns()))
	}
}

func (s *PadelTransformerSuite) TestSingleEqualsOneElementList() {
	one, err := s.tr.TransformOne(s.ctx, molecule.FromSMILES("CCO"), false)
	s.Require().NoError(err)
	list, err := s.tr.Transform(s.ctx, molecule.SMILESList("CCO"), false)
	s.Require().NoError(err)
	s.Equal(list, one)
}

func (s *PadelTransformerSuite) TestTransformEqualsBatchCompute() {
	inputs := molecule.SMILESList("CCO", "CCN", "CCC", "CC(=O)O", "c1ccccc1")
	rows, err := s.tr.Transform(s.ctx, inputs, false)
	s.Require().NoError(err)
	want, err := s.tr.Calculator().BatchCompute(s.ctx, inputs, batch.Options{NJobs: 1})
	s.Require().NoError(err)
	s.Equal(want, rows)
}

func (s *PadelTransformerSuite) TestBadMoleculeNamesIndexAndCause() {
	inputs := molecule.SMILESList("CCO", "CCN", "C1CC", "CCC")
	_, err := s.tr.Transform(s.ctx, inputs, false)
	s.Require().Error(err)
	s.True(errors.IsCode(err, errors.ErrCodeBatchValidation))
	s.Contains(err.Error(), "cannot transform molecule at index 2")
	s.True(errors.IsCode(err, errors.ErrCodeMoleculeParsingFailed) || errors.IsCode(err, errors.ErrCodeMoleculeInvalidSMILES))

	rows, err := s.tr.Transform(s.ctx, inputs, true)
	s.Require().NoError(err)
	s.Require().Len(rows, 4)
	s.NotNil(rows[0])
	s.NotNil(rows[1])
	s.Nil(rows[2])
	s.NotNil(rows[3])
}

func (s *PadelTransformerSuite) TestNaNFailsBatch() {
	s.fake.Blank[s.canonical("CCN")] = true
	_, err := s.tr.Transform(s.ctx, molecule.SMILESList("CCO", "CCN"), false)
	s.Require().Error(err)
	s.True(errors.IsCode(err, errors.ErrCodeBatchValidation))
	s.Contains(err.Error(), "cannot transform molecule at index 1")
}

func (s *PadelTransformerSuite) TestFailedShardFailsBatch() {
	s.fake.FailOn = s.canonical("CCC")
	_, err := s.tr.Transform(s.ctx, molecule.SMILESList("CCO", "CCN", "CCC", "CCCC"), false)
	s.Require().Error(err)
	s.Contains(err.Error(), "index 2")
	s.True(errors.IsCode(err, errors.ErrCodePadelExecutionFailed))
}

func (s *PadelTransformerSuite) TestIgnoreErrorsReturnsRowsUnexamined() {
	s.fake.Blank[s.canonical("CCN")] = true
	s.fake.FailOn = s.canonical("CCCC")
	rows, err := s.tr.Transform(s.ctx, molecule.SMILESList("CCO", "CCN", "CCC", "CCCC"), true)
	s.Require().NoError(err)
	s.Len(rows, 4)
	s.True(math.IsNaN(rows[1][1]))
	s.Nil(rows[2])
	s.Nil(rows[3])
}

func (s *PadelTransformerSuite) TestCallDropsFailedRows() {
	s.fake.FailOn = s.canonical("CCCC")
	out, err := s.tr.Call(s.ctx, molecule.SMILESList("CCO", "CCN", "CCC", "CCCC"), CallOptions{IgnoreErrors: true})
	s.Require().NoError(err)
	s.Equal([]int{0, 1}, out.Kept)
	s.Len(out.Rows, 2)
	s.Equal(s.tr.Columns(), out.Columns)
}

func (s *PadelTransformerSuite) TestCallCastsDType() {
	cfg := DefaultTransformerConfig()
	cfg.DType = Float32
	tr, err := NewPadelTransformer(s.ctx, s.fake, s.tk, cfg)
	s.Require().NoError(err)

	out, err := tr.Call(s.ctx, molecule.SMILESList("CCO"), CallOptions{EnforceDType: true})
	s.Require().NoError(err)
	vals, ok := out.Values.([][]float32)
	s.Require().True(ok)
	s.Equal(float32(len(s.canonical("CCO"))), vals[0][0])
	s.Equal("float32", out.DType.String())
}

func TestBatchOptions_ParallelKwargs(t *testing.T) {
	cfg := DefaultTransformerConfig()
	cfg.NJobs = -1
	cfg.ParallelKwargs = map[string]any{
		KwItemTimeout:  "2s",
		KwBatchTimeout: "1m",
		KwMaxRetries:   "2",
		KwBackpressure: 100,
		"backend":      "loky",
	}
	logger := testutil.NewMockLogger()
	opts, err := batchOptions(cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, opts.ItemTimeout)
	assert.Equal(t, time.Minute, opts.BatchTimeout)
	assert.Equal(t, 2, opts.MaxRetries)
	assert.Equal(t, 100, opts.Backpressure)
	assert.Positive(t, opts.Workers())
	assert.True(t, logger.HasMessage("debug", "ignoring unknown parallel kwarg"))
}

func TestBatchOptions_InvalidKwarg(t *testing.T) {
	cfg := DefaultTransformerConfig()
	cfg.ParallelKwargs = map[string]any{KwMaxRetries: "lots"}
	_, err := batchOptions(cfg, testutil.NewMockLogger())
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParams))
}
