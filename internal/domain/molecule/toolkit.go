package molecule

import (
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// Toolkit is the chemistry backend used by the featurizers.
type Toolkit interface {
	Parse(smiles string) (*Molecule, error)
	Standardize(m *Molecule, opts StandardizeOptions) (*Molecule, error)
	ToSMILES(m *Molecule) (string, error)
}

// DefaultToolkit is the built-in SMILES toolkit.
type DefaultToolkit struct{}

// NewToolkit returns the built-in toolkit.
func NewToolkit() Toolkit { return DefaultToolkit{} }

func (DefaultToolkit) Parse(smiles string) (*Molecule, error) { return Parse(smiles) }

func (DefaultToolkit) Standardize(m *Molecule, opts StandardizeOptions) (*Molecule, error) {
	return Standardize(m, opts)
}

func (DefaultToolkit) ToSMILES(m *Molecule) (string, error) { return CanonicalSMILES(m) }

// Input is either a SMILES string or an already parsed molecule.
type Input struct {
	smiles string
	mol    *Molecule
}

// FromSMILES wraps a SMILES string.
func FromSMILES(s string) Input { return Input{smiles: s} }

// FromMolecule wraps a parsed molecule.
func FromMolecule(m *Molecule) Input { return Input{mol: m} }

// IsMolecule reports whether the input carries a parsed molecule.
func (in Input) IsMolecule() bool { return in.mol != nil }

// SMILES returns the wrapped string, or the molecule's source SMILES.
func (in Input) SMILES() string {
	if in.mol != nil {
		return in.mol.source
	}
	return in.smiles
}

// Molecule returns the wrapped molecule, or nil for string inputs.
func (in Input) Molecule() *Molecule { return in.mol }

// Resolve parses string inputs with tk and returns molecule inputs as-is.
func (in Input) Resolve(tk Toolkit) (*Molecule, error) {
	if in.mol != nil {
		return in.mol, nil
	}
	if in.smiles == "" {
		return nil, errors.New(errors.ErrCodeMoleculeEmptyInput, "empty molecule input")
	}
	return tk.Parse(in.smiles)
}

// Inputs is an ordered batch of molecule inputs.
type Inputs []Input

// Single normalizes one input into a one-element batch.
func Single(in Input) Inputs { return Inputs{in} }

// SMILESList wraps a list of SMILES strings.
func SMILESList(smiles ...string) Inputs {
	out := make(Inputs, len(smiles))
	for i, s := range smiles {
		out[i] = FromSMILES(s)
	}
	return out
}

// Molecules wraps parsed molecules.
func Molecules(ms ...*Molecule) Inputs {
	out := make(Inputs, len(ms))
	for i, m := range ms {
		out[i] = FromMolecule(m)
	}
	return out
}

// Canonicalize resolves in, optionally standardizes it, and returns its
// canonical SMILES.  Errors carry the MOL_ codes of the failing step.
func Canonicalize(tk Toolkit, in Input, standardize bool) (string, error) {
	m, err := in.Resolve(tk)
	if err != nil {
		return "", err
	}
	if standardize {
		m, err = tk.Standardize(m, StandardizeOptions{DisconnectMetals: true, RemoveSalt: true})
		if err != nil {
			var ae *errors.AppError
			if errors.As(err, &ae) {
				return "", err
			}
			return "", errors.Wrap(err, errors.ErrCodeMoleculeStandardizationFailed, "standardization failed")
		}
	}
	return tk.ToSMILES(m)
}
