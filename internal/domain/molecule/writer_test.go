package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

func canonical(t *testing.T, smiles string) string {
	t.Helper()
	m, err := Parse(smiles)
	require.NoError(t, err)
	out, err := CanonicalSMILES(m)
	require.NoError(t, err)
	return out
}

func TestCanonicalSMILES_Known(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"OCC", "CCO"},
		{"C(O)C", "CCO"},
		{"c1ccccc1", "c1ccccc1"},
		{"c1ccccc1C", "Cc1ccccc1"},
		{"OC(=O)C", "CC(=O)O"},
		{"F/C=C/F", "F/C=C/F"},
		{"F/C=C\\F", "F/C=C\\F"},
		{"[Na+]", "[Na+]"},
		{"[CH4]", "C"},
		{"[NH4+]", "[NH4+]"},
		{"Cl.OCC", "CCO.Cl"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, canonical(t, tt.in))
		})
	}
}

func TestCanonicalSMILES_InputOrderInvariant(t *testing.T) {
	groups := [][]string{
		{"CCO", "OCC", "C(O)C", "[CH3][CH2][OH]"},
		{"CC(=O)Oc1ccccc1C(=O)O", "OC(=O)c1ccccc1OC(C)=O", "c1cccc(OC(C)=O)c1C(O)=O"},
		{"C1CCNCC1", "N1CCCCC1", "C1CNCCC1"},
		{"Nc1ccncc1", "c1cc(N)ccn1", "n1ccc(N)cc1"},
		{"F[C@H](Cl)Br", "F[C@@H](Br)Cl", "[C@@H](F)(Cl)Br", "Cl[C@@H](F)Br"},
	}
	for _, g := range groups {
		want := canonical(t, g[0])
		for _, s := range g[1:] {
			assert.Equal(t, want, canonical(t, s), "input %s", s)
		}
	}
}

func TestCanonicalSMILES_DistinguishesStereo(t *testing.T) {
	assert.NotEqual(t, canonical(t, "F[C@H](Cl)Br"), canonical(t, "F[C@@H](Cl)Br"))
	assert.NotEqual(t, canonical(t, "F/C=C/F"), canonical(t, "F/C=C\\F"))
}

func TestCanonicalSMILES_DirectionalBondsNormalized(t *testing.T) {
	assert.Equal(t, canonical(t, "F/C=C/F"), canonical(t, "F\\C=C\\F"))
	assert.Equal(t, canonical(t, "F/C=C\\F"), canonical(t, "F\\C=C/F"))
	assert.Equal(t, canonical(t, "C/C=C/C=C/C"), canonical(t, "C\\C=C\\C=C\\C"))
	assert.Equal(t, "F/C=C/F", canonical(t, "F\\C=C\\F"))
}

func TestCanonicalSMILES_Idempotent(t *testing.T) {
	for _, s := range []string{
		"C1CC1C1CC1",
		"c1ccc2ccccc2c1",
		"CN1C=NC2=C1C(=O)N(C(=O)N2C)C",
		"C[C@H]1CCO1",
		"O=C(O)CC(O)(CC(=O)O)C(=O)O",
		"C%10CC%10",
		"[13CH3]C(=O)[O-].[K+]",
		"C12C3C4C1C5C2C3C45",
	} {
		t.Run(s, func(t *testing.T) {
			once := canonical(t, s)
			assert.Equal(t, once, canonical(t, once))
		})
	}
}

func TestCanonicalSMILES_ExplicitAromaticSingle(t *testing.T) {
	out := canonical(t, "c1ccccc1-c1ccccc1")
	assert.Contains(t, out, "-")
	assert.Equal(t, out, canonical(t, out))
}

func TestCanonicalSMILES_Empty(t *testing.T) {
	_, err := CanonicalSMILES(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeEmptyInput))
}

func TestRingLabel(t *testing.T) {
	assert.Equal(t, "1", ringLabel(1))
	assert.Equal(t, "9", ringLabel(9))
	assert.Equal(t, "%10", ringLabel(10))
	assert.Equal(t, "%42", ringLabel(42))
}

func TestDenseRanks(t *testing.T) {
	ranks, n := denseRanks([][]int{{2}, {1}, {2}, {0, 1}})
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{2, 1, 2, 0}, ranks)

	ranks, n = denseRanks(nil)
	assert.Equal(t, 0, n)
	assert.Empty(t, ranks)
}
