package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

func TestParse_Simple(t *testing.T) {
	m, err := Parse("CCO")
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumAtoms())
	assert.Equal(t, 2, m.NumBonds())
	assert.Equal(t, "CCO", m.Source())
	assert.Equal(t, 3, m.ImplicitHydrogens(0))
	assert.Equal(t, 2, m.ImplicitHydrogens(1))
	assert.Equal(t, 1, m.ImplicitHydrogens(2))
}

func TestParse_Aromatic(t *testing.T) {
	m, err := Parse("c1ccccc1")
	require.NoError(t, err)
	assert.Equal(t, 6, m.NumAtoms())
	assert.Equal(t, 6, m.NumBonds())
	for i := 0; i < m.NumAtoms(); i++ {
		assert.True(t, m.Atom(i).Aromatic)
		assert.Equal(t, 1, m.ImplicitHydrogens(i))
	}
	for _, b := range m.Bonds() {
		assert.Equal(t, BondAromatic, b.Order)
	}
}

func TestParse_BondOrders(t *testing.T) {
	m, err := Parse("C=CC#N")
	require.NoError(t, err)
	bonds := m.Bonds()
	require.Len(t, bonds, 3)
	assert.Equal(t, BondDouble, bonds[0].Order)
	assert.Equal(t, BondSingle, bonds[1].Order)
	assert.Equal(t, BondTriple, bonds[2].Order)
	assert.Equal(t, 2, m.ImplicitHydrogens(0))
	assert.Equal(t, 0, m.ImplicitHydrogens(3))
}

func TestParse_Branches(t *testing.T) {
	m, err := Parse("CC(C)(C)O")
	require.NoError(t, err)
	assert.Equal(t, 5, m.NumAtoms())
	assert.ElementsMatch(t, []int{0, 2, 3, 4}, m.Neighbors(1))
}

func TestParse_BracketAtoms(t *testing.T) {
	tests := []struct {
		smiles  string
		symbol  string
		isotope int
		hcount  int
		charge  int
		chiral  string
		class   int
	}{
		{"[NH4+]", "N", 0, 4, 1, "", 0},
		{"[13CH4]", "C", 13, 4, 0, "", 0},
		{"[Fe+2]", "Fe", 0, 0, 2, "", 0},
		{"[O--]", "O", 0, 0, -2, "", 0},
		{"[O-2]", "O", 0, 0, -2, "", 0},
		{"[C@@H](F)(Cl)Br", "C", 0, 1, 0, "@@", 0},
		{"[CH3:7]C", "C", 0, 3, 0, "", 7},
		{"[Na+]", "Na", 0, 0, 1, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.smiles, func(t *testing.T) {
			m, err := Parse(tt.smiles)
			require.NoError(t, err)
			a := m.Atom(0)
			assert.True(t, a.Bracket)
			assert.Equal(t, tt.symbol, a.Symbol)
			assert.Equal(t, tt.isotope, a.Isotope)
			assert.Equal(t, tt.hcount, a.HCount)
			assert.Equal(t, tt.charge, a.Charge)
			assert.Equal(t, tt.chiral, a.Chirality)
			assert.Equal(t, tt.class, a.Class)
			assert.Equal(t, tt.hcount, m.TotalHydrogens(0))
		})
	}
}

func TestParse_AromaticBracket(t *testing.T) {
	m, err := Parse("c1cc[nH]c1")
	require.NoError(t, err)
	n := m.Atom(3)
	assert.Equal(t, "N", n.Symbol)
	assert.True(t, n.Aromatic)
	assert.Equal(t, 1, n.HCount)

	m, err = Parse("c1cc[se]c1")
	require.NoError(t, err)
	assert.Equal(t, "Se", m.Atom(3).Symbol)
}

func TestParse_RingClosures(t *testing.T) {
	m, err := Parse("C%10CC%10")
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumBonds())

	m, err = Parse("C=1CCCCC1")
	require.NoError(t, err)
	assert.Equal(t, BondDouble, m.Bonds()[5].Order)

	m, err = Parse("C1CC1C1CC1")
	require.NoError(t, err)
	assert.Equal(t, 6, m.NumAtoms())
	assert.Equal(t, 7, m.NumBonds())
}

func TestParse_Fragments(t *testing.T) {
	m, err := Parse("CC(=O)[O-].[Na+]")
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumFragments())
	frags := m.Fragments()
	require.Len(t, frags, 2)
	assert.Equal(t, 4, frags[0].NumAtoms())
	assert.Equal(t, "Na", frags[1].Atom(0).Symbol)
}

func TestParse_TrimsTitle(t *testing.T) {
	m, err := Parse("  CCO ethanol\n")
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumAtoms())
	assert.Equal(t, "CCO", m.Source())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		smiles string
		code   errors.ErrorCode
	}{
		{"empty", "", errors.ErrCodeMoleculeInvalidSMILES},
		{"whitespace", "   ", errors.ErrCodeMoleculeInvalidSMILES},
		{"invalid char", "CC&C", errors.ErrCodeMoleculeInvalidSMILES},
		{"unknown organic", "CQC", errors.ErrCodeMoleculeParsingFailed},
		{"unclosed ring", "C1CC", errors.ErrCodeMoleculeParsingFailed},
		{"unclosed branch", "CC(C", errors.ErrCodeMoleculeParsingFailed},
		{"unbalanced paren", "CC)C", errors.ErrCodeMoleculeParsingFailed},
		{"leading bond", "=CC", errors.ErrCodeMoleculeParsingFailed},
		{"dangling bond", "CC=", errors.ErrCodeMoleculeParsingFailed},
		{"double bond symbol", "C==C", errors.ErrCodeMoleculeParsingFailed},
		{"leading branch", "(C)C", errors.ErrCodeMoleculeParsingFailed},
		{"unclosed bracket", "C[NH4+", errors.ErrCodeMoleculeParsingFailed},
		{"unknown element", "[Xx]", errors.ErrCodeMoleculeParsingFailed},
		{"bad bracket tail", "[C?]", errors.ErrCodeMoleculeInvalidSMILES},
		{"bracket garbage", "[CHH]", errors.ErrCodeMoleculeParsingFailed},
		{"self ring", "C11", errors.ErrCodeMoleculeParsingFailed},
		{"ring bond conflict", "C=1CCC#1", errors.ErrCodeMoleculeParsingFailed},
		{"hypervalent carbon", "C(=O)(=O)=O", errors.ErrCodeMoleculeParsingFailed},
		{"acyclic aromatic", "cc", errors.ErrCodeMoleculeParsingFailed},
		{"dot first", ".C", errors.ErrCodeMoleculeParsingFailed},
		{"short percent", "C%1CC%1", errors.ErrCodeMoleculeParsingFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.smiles)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestParse_ChiralNeighbourOrder(t *testing.T) {
	m, err := Parse("F[C@H](Cl)Br")
	require.NoError(t, err)
	assert.Equal(t, []int{0, implicitHydrogen, 2, 3}, m.nbrOrder[1])

	m, err = Parse("[C@@H](F)(Cl)Br")
	require.NoError(t, err)
	assert.Equal(t, []int{implicitHydrogen, 1, 2, 3}, m.nbrOrder[0])

	m, err = Parse("C[C@H]1CCO1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, implicitHydrogen, 4, 2}, m.nbrOrder[1])
}

func TestClone_Independent(t *testing.T) {
	m, err := Parse("CCO")
	require.NoError(t, err)
	c := m.Clone()
	c.atoms[0].Charge = 1
	assert.Equal(t, 0, m.Atom(0).Charge)
	assert.Equal(t, m.Source(), c.Source())
}
