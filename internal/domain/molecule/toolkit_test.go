package molecule

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

func TestInput_Variants(t *testing.T) {
	s := FromSMILES("CCO")
	assert.False(t, s.IsMolecule())
	assert.Equal(t, "CCO", s.SMILES())
	assert.Nil(t, s.Molecule())

	m, err := Parse("OCC")
	require.NoError(t, err)
	in := FromMolecule(m)
	assert.True(t, in.IsMolecule())
	assert.Equal(t, "OCC", in.SMILES())
	assert.Same(t, m, in.Molecule())
}

func TestInputs_Constructors(t *testing.T) {
	assert.Len(t, Single(FromSMILES("C")), 1)

	list := SMILESList("C", "CC", "CCC")
	require.Len(t, list, 3)
	assert.Equal(t, "CC", list[1].SMILES())

	m1, _ := Parse("C")
	m2, _ := Parse("N")
	mols := Molecules(m1, m2)
	require.Len(t, mols, 2)
	assert.True(t, mols[1].IsMolecule())
}

func TestInput_Resolve(t *testing.T) {
	tk := NewToolkit()

	m, err := FromSMILES("CCO").Resolve(tk)
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumAtoms())

	_, err = FromSMILES("").Resolve(tk)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeEmptyInput))

	_, err = FromSMILES("C1CC").Resolve(tk)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeParsingFailed))
}

func TestCanonicalize(t *testing.T) {
	tk := NewToolkit()

	got, err := Canonicalize(tk, FromSMILES("OCC"), false)
	require.NoError(t, err)
	assert.Equal(t, "CCO", got)

	got, err = Canonicalize(tk, FromSMILES("CCN.Cl"), false)
	require.NoError(t, err)
	assert.Equal(t, "CCN.Cl", got)

	got, err = Canonicalize(tk, FromSMILES("CCN.Cl"), true)
	require.NoError(t, err)
	assert.Equal(t, "CCN", got)

	m, err := Parse("CC(=O)O[Na]")
	require.NoError(t, err)
	got, err = Canonicalize(tk, FromMolecule(m), true)
	require.NoError(t, err)
	assert.Equal(t, canonical(t, "CC(=O)[O-]"), got)
}

type failingToolkit struct {
	DefaultToolkit
	err error
}

func (f failingToolkit) Standardize(*Molecule, StandardizeOptions) (*Molecule, error) {
	return nil, f.err
}

func TestCanonicalize_WrapsForeignStandardizeErrors(t *testing.T) {
	tk := failingToolkit{err: stderrors.New("boom")}
	_, err := Canonicalize(tk, FromSMILES("CCO"), true)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeStandardizationFailed))

	tk = failingToolkit{err: errors.New(errors.ErrCodeMoleculeEmptyInput, "empty")}
	_, err = Canonicalize(tk, FromSMILES("CCO"), true)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeEmptyInput))
	assert.False(t, errors.IsCode(err, errors.ErrCodeMoleculeStandardizationFailed))
}
