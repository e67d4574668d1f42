package molecule

import (
	"sort"
	"sync"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// StandardizeOptions selects the clean-up steps applied before featurization.
type StandardizeOptions struct {
	// DisconnectMetals breaks covalent bonds between metals and
	// N, O, F, P, S, Cl, Se, Br or I, moving the charge onto the ions.
	DisconnectMetals bool
	// RemoveSalt drops counter-ion and solvent fragments.
	RemoveSalt bool
}

// Standardize returns a standardized copy of m.  m itself is not modified.
func Standardize(m *Molecule, opts StandardizeOptions) (*Molecule, error) {
	if m == nil || len(m.atoms) == 0 {
		return nil, errors.New(errors.ErrCodeMoleculeEmptyInput, "cannot standardize an empty molecule")
	}
	out := m.Clone()
	if opts.DisconnectMetals {
		out = disconnectMetals(out)
	}
	if opts.RemoveSalt {
		var err error
		if out, err = removeSalts(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func disconnectMetals(m *Molecule) *Molecule {
	drop := make(map[int]bool)
	hydrogens := make(map[int]int)
	for bi, b := range m.bonds {
		metal, acceptor := -1, -1
		switch {
		case isMetal(m.atoms[b.Begin].Symbol) && metalAcceptors[m.atoms[b.End].Symbol]:
			metal, acceptor = b.Begin, b.End
		case isMetal(m.atoms[b.End].Symbol) && metalAcceptors[m.atoms[b.Begin].Symbol]:
			metal, acceptor = b.End, b.Begin
		default:
			continue
		}
		if _, seen := hydrogens[acceptor]; !seen {
			hydrogens[acceptor] = m.TotalHydrogens(acceptor)
		}
		drop[bi] = true
		v := b.Order.valence()
		m.atoms[metal].Charge += v
		m.atoms[metal].Bracket = true
		m.atoms[acceptor].Charge -= v
	}
	if len(drop) == 0 {
		return m
	}
	for a, h := range hydrogens {
		m.atoms[a].Bracket = true
		m.atoms[a].HCount = h
	}
	return m.withoutBonds(drop)
}

// withoutBonds copies m leaving out the given bonds.
func (m *Molecule) withoutBonds(drop map[int]bool) *Molecule {
	out := newMolecule(m.source)
	for _, a := range m.atoms {
		out.addAtom(a)
	}
	for bi, b := range m.bonds {
		if !drop[bi] {
			out.addBond(b)
		}
	}
	for i, order := range m.nbrOrder {
		kept := make([]int, 0, len(order))
		for _, n := range order {
			if n == implicitHydrogen || out.bondBetween(i, n) >= 0 {
				kept = append(kept, n)
			}
		}
		out.nbrOrder[i] = kept
	}
	return out
}

// saltSMILES lists counter-ions and common crystallisation solvents.  Each
// entry is compared by its neutral heavy-atom skeleton, so charge state and
// explicit hydrogens do not matter.
var saltSMILES = []string{
	"Cl", "Br", "I", "F",
	"[Li]", "[Na]", "[K]", "[Ca]", "[Mg]",
	"O", "N",
	"N(=O)(O)O",
	"P(=O)(O)(O)O",
	"[P](F)(F)(F)(F)(F)F",
	"OS(=O)(=O)O",
	"CS(=O)(=O)O",
	"Cc1ccc(cc1)S(=O)(=O)O",
	"CC(=O)O",
	"OC(=O)C(F)(F)F",
	"OC(=O)C=CC(=O)O",
	"OC(=O)C(=O)O",
	"OC(=O)C(O)C(O)C(=O)O",
	"C1CCC(CC1)NC1CCCCC1",
	// solvents
	"CO", "CCO", "CC(=O)C", "CS(=O)C", "CN(C)C=O", "CC#N",
	"ClCCl", "ClC(Cl)Cl", "C1CCOC1", "CCOCC", "CCOC(C)=O",
}

var (
	saltOnce sync.Once
	saltKeys map[string]bool
)

func saltSet() map[string]bool {
	saltOnce.Do(func() {
		saltKeys = make(map[string]bool, len(saltSMILES))
		for _, s := range saltSMILES {
			m, err := Parse(s)
			if err != nil {
				panic("molecule: bad salt definition " + s + ": " + err.Error())
			}
			saltKeys[skeletonKey(m)] = true
		}
	})
	return saltKeys
}

// skeletonKey is the canonical SMILES of m with hydrogens, charges,
// isotopes and stereo stripped.
func skeletonKey(m *Molecule) string {
	heavy := make([]int, 0, len(m.atoms))
	for i, a := range m.atoms {
		if a.Symbol != "H" {
			heavy = append(heavy, i)
		}
	}
	if len(heavy) == 0 {
		return ""
	}
	s := m.subMolecule(heavy)
	for i := range s.atoms {
		a := &s.atoms[i]
		a.Charge, a.Isotope, a.Class, a.HCount = 0, 0, 0, 0
		a.Chirality = ""
		if organicSubset[a.Symbol] {
			a.Bracket = false
		}
	}
	for i := range s.bonds {
		s.bonds[i].Direction = 0
	}
	key, err := CanonicalSMILES(s)
	if err != nil {
		return ""
	}
	return key
}

// removeSalts drops every fragment whose skeleton is a known salt or
// solvent.  When that would leave nothing, the largest fragment by heavy
// atom count is kept instead.
func removeSalts(m *Molecule) (*Molecule, error) {
	frags := m.fragments()
	if len(frags) < 2 {
		return m, nil
	}
	salts := saltSet()

	var keep []int
	for _, f := range frags {
		if !salts[skeletonKey(m.subMolecule(f))] {
			keep = append(keep, f...)
		}
	}
	if len(keep) == 0 {
		best, bestHeavy := -1, -1
		for i, f := range frags {
			h := m.subMolecule(f).HeavyAtomCount()
			if h > bestHeavy {
				best, bestHeavy = i, h
			}
		}
		if best < 0 {
			return nil, errors.New(errors.ErrCodeMoleculeStandardizationFailed, "salt removal left no fragment")
		}
		keep = frags[best]
	}
	if len(keep) == len(m.atoms) {
		return m, nil
	}
	sort.Ints(keep)
	out := m.subMolecule(keep)
	out.source = m.source
	return out, nil
}
