package featurize

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/padel-featurizer/internal/domain/molecule"
	"github.com/turtacn/padel-featurizer/internal/featurizer/calc"
	"github.com/turtacn/padel-featurizer/internal/featurizer/registry"
	"github.com/turtacn/padel-featurizer/internal/featurizer/trans"
	"github.com/turtacn/padel-featurizer/internal/testutil"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

type MockFeaturizer struct {
	mock.Mock
}

func (m *MockFeaturizer) Name() string { return "mock" }

func (m *MockFeaturizer) Columns() []string {
	return m.Called().Get(0).([]string)
}

func (m *MockFeaturizer) Call(ctx context.Context, inputs molecule.Inputs, opts trans.CallOptions) (*trans.Output, error) {
	args := m.Called(ctx, inputs, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trans.Output), args.Error(1)
}

func TestFeaturize_Validation(t *testing.T) {
	svc := NewService(new(MockFeaturizer), calc.DefaultParams(), nil, WithMaxMolecules(2))
	ctx := context.Background()

	_, err := svc.Featurize(ctx, &Request{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeEmptyInput))

	_, err = svc.Featurize(ctx, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeEmptyInput))

	_, err = svc.Featurize(ctx, &Request{SMILES: []string{"C", "CC", "CCC"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, err = svc.Featurize(ctx, &Request{SMILES: []string{"C", ""}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeInvalidSMILES))
}

func TestFeaturize_PassesIgnoreErrors(t *testing.T) {
	f := new(MockFeaturizer)
	ctx := context.Background()
	out := &trans.Output{Columns: []string{"PaDEL_a"}, Rows: [][]float64{{1}}, Kept: []int{1}}
	f.On("Call", ctx, molecule.SMILESList("C1CC", "CCO"), trans.CallOptions{IgnoreErrors: true}).Return(out, nil)

	svc := NewService(f, calc.DefaultParams(), testutil.NewMockLogger())
	req := &Request{SMILES: []string{"C1CC", "CCO"}, IgnoreErrors: true}
	resp, err := svc.Featurize(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "mock", resp.Featurizer)
	assert.Equal(t, []int{1}, resp.Kept)
	assert.Equal(t, []int{0}, resp.Failed())
	tbl := resp.Table(req)
	assert.Equal(t, []string{"CCO"}, tbl.IDs)
	f.AssertExpectations(t)
}

func TestFeaturize_ErrorIsReturnedAndLogged(t *testing.T) {
	f := new(MockFeaturizer)
	log := testutil.NewMockLogger()
	ctx := context.Background()
	f.On("Call", ctx, mock.Anything, mock.Anything).
		Return(nil, errors.New(errors.ErrCodeBatchValidation, "cannot transform molecule at index 0"))

	svc := NewService(f, calc.DefaultParams(), log)
	_, err := svc.Featurize(ctx, &Request{SMILES: []string{"CCO"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeBatchValidation))
	assert.True(t, log.HasMessage("warn", "featurization failed"))
}

func TestFeaturize_EndToEndWithPadel(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakePadel()
	blank, err := molecule.Canonicalize(molecule.NewToolkit(), molecule.FromSMILES("NCC"), true)
	require.NoError(t, err)
	fake.Blank[blank] = true

	f, err := registry.Default().New(ctx, calc.Name, registry.Deps{Client: fake, Transformer: trans.DefaultTransformerConfig()}, nil)
	require.NoError(t, err)
	svc := NewService(f, calc.DefaultParams(), nil)

	assert.Equal(t, calc.Name, svc.Name())
	assert.Len(t, svc.Columns(), 5)
	assert.True(t, svc.Params().Descriptors)

	resp, err := svc.Featurize(ctx, &Request{SMILES: []string{"CCO", "NCC"}, IgnoreErrors: true})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 2)
	assert.True(t, math.IsNaN(resp.Rows[1][1]))
	assert.Empty(t, resp.Failed())

	_, err = svc.Featurize(ctx, &Request{SMILES: []string{"CCO", "NCC"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeBatchValidation))
	assert.Contains(t, err.Error(), "cannot transform molecule at index 1")
}
