// Package molecule holds the in-memory molecule handle used by the featurizer
// together with the toolkit that parses SMILES, standardizes molecules
// (metal disconnection, salt removal) and writes canonical SMILES.
package molecule

import "sort"

// BondOrder is the multiplicity of a bond.
type BondOrder int

const (
	BondSingle    BondOrder = 1
	BondDouble    BondOrder = 2
	BondTriple    BondOrder = 3
	BondQuadruple BondOrder = 4
	BondAromatic  BondOrder = 5
)

// valence is the bond's contribution to an atom's explicit valence.
// Aromatic bonds count as one; the extra electron is accounted for per atom.
func (o BondOrder) valence() int {
	if o == BondAromatic {
		return 1
	}
	return int(o)
}

// implicitHydrogen marks the implicit hydrogen of a chiral bracket atom in a
// neighbour ordering.
const implicitHydrogen = -1

// Atom is a single atom of a parsed molecule.
type Atom struct {
	Symbol    string
	Aromatic  bool
	Bracket   bool
	Isotope   int
	Chirality string // "", "@" or "@@"
	HCount    int    // hydrogens written inside brackets
	Charge    int
	Class     int
}

// Bond connects two atoms.  Direction holds '/' or '\\' as written from
// Begin towards End, or zero.
type Bond struct {
	Begin     int
	End       int
	Order     BondOrder
	Direction byte
}

func (b Bond) other(atom int) int {
	if b.Begin == atom {
		return b.End
	}
	return b.Begin
}

// Molecule is a parsed molecular graph.  Callers treat it as immutable; all
// standardization steps return new values.
type Molecule struct {
	atoms []Atom
	bonds []Bond
	adj   [][]int // bond indices per atom
	// nbrOrder lists each atom's neighbours in the order they appear in the
	// source SMILES, with implicitHydrogen standing in for a bracket H.  It
	// anchors tetrahedral parity.
	nbrOrder [][]int
	source   string
}

func newMolecule(source string) *Molecule {
	return &Molecule{source: source}
}

func (m *Molecule) addAtom(a Atom) int {
	m.atoms = append(m.atoms, a)
	m.adj = append(m.adj, nil)
	m.nbrOrder = append(m.nbrOrder, nil)
	return len(m.atoms) - 1
}

func (m *Molecule) addBond(b Bond) int {
	m.bonds = append(m.bonds, b)
	idx := len(m.bonds) - 1
	m.adj[b.Begin] = append(m.adj[b.Begin], idx)
	m.adj[b.End] = append(m.adj[b.End], idx)
	return idx
}

// Source returns the SMILES the molecule was parsed from, if any.
func (m *Molecule) Source() string { return m.source }

// NumAtoms returns the number of explicit atoms.
func (m *Molecule) NumAtoms() int { return len(m.atoms) }

// NumBonds returns the number of bonds.
func (m *Molecule) NumBonds() int { return len(m.bonds) }

// Atom returns a copy of atom i.
func (m *Molecule) Atom(i int) Atom { return m.atoms[i] }

// Bonds returns a copy of the bond list.
func (m *Molecule) Bonds() []Bond {
	out := make([]Bond, len(m.bonds))
	copy(out, m.bonds)
	return out
}

// Neighbors returns the atoms bonded to atom i in bond order.
func (m *Molecule) Neighbors(i int) []int {
	out := make([]int, 0, len(m.adj[i]))
	for _, bi := range m.adj[i] {
		out = append(out, m.bonds[bi].other(i))
	}
	return out
}

// bondBetween returns the index of the bond joining a and b, or -1.
func (m *Molecule) bondBetween(a, b int) int {
	for _, bi := range m.adj[a] {
		if m.bonds[bi].other(a) == b {
			return bi
		}
	}
	return -1
}

// explicitValence sums bond contributions at atom i.
func (m *Molecule) explicitValence(i int) int {
	v := 0
	for _, bi := range m.adj[i] {
		v += m.bonds[bi].Order.valence()
	}
	return v
}

// ImplicitHydrogens returns the hydrogens implied by the organic-subset
// valence rules.  Bracket atoms carry their hydrogens explicitly.
func (m *Molecule) ImplicitHydrogens(i int) int {
	a := m.atoms[i]
	if a.Bracket {
		return 0
	}
	e, ok := lookupElement(a.Symbol)
	if !ok || len(e.valences) == 0 {
		return 0
	}
	used := m.explicitValence(i)
	if a.Aromatic {
		used++
	}
	for _, v := range e.valences {
		if v >= used {
			return v - used
		}
	}
	return 0
}

// TotalHydrogens returns bracket plus implicit hydrogens on atom i.
func (m *Molecule) TotalHydrogens(i int) int {
	if m.atoms[i].Bracket {
		return m.atoms[i].HCount
	}
	return m.ImplicitHydrogens(i)
}

// HeavyAtomCount counts atoms other than hydrogen.
func (m *Molecule) HeavyAtomCount() int {
	n := 0
	for _, a := range m.atoms {
		if a.Symbol != "H" {
			n++
		}
	}
	return n
}

// NumFragments returns the number of disconnected components.
func (m *Molecule) NumFragments() int {
	return len(m.fragments())
}

// Fragments splits the molecule into its connected components, ordered by
// their lowest atom index.
func (m *Molecule) Fragments() []*Molecule {
	frags := m.fragments()
	out := make([]*Molecule, len(frags))
	for i, f := range frags {
		out[i] = m.subMolecule(f)
	}
	return out
}

func (m *Molecule) fragments() [][]int {
	seen := make([]bool, len(m.atoms))
	var out [][]int
	for start := range m.atoms {
		if seen[start] {
			continue
		}
		var comp []int
		queue := []int{start}
		seen[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			comp = append(comp, cur)
			for _, nb := range m.Neighbors(cur) {
				if !seen[nb] {
					seen[nb] = true
					queue = append(queue, nb)
				}
			}
		}
		sort.Ints(comp)
		out = append(out, comp)
	}
	return out
}

// subMolecule copies the given atoms, and the bonds among them, into a new
// molecule.  Atom order follows the order of atoms.
func (m *Molecule) subMolecule(atoms []int) *Molecule {
	remap := make(map[int]int, len(atoms))
	sub := newMolecule("")
	for _, a := range atoms {
		remap[a] = sub.addAtom(m.atoms[a])
	}
	for _, b := range m.bonds {
		nb, okB := remap[b.Begin]
		ne, okE := remap[b.End]
		if okB && okE {
			b.Begin, b.End = nb, ne
			sub.addBond(b)
		}
	}
	for _, a := range atoms {
		order := make([]int, 0, len(m.nbrOrder[a]))
		for _, n := range m.nbrOrder[a] {
			if n == implicitHydrogen {
				order = append(order, n)
				continue
			}
			if mapped, ok := remap[n]; ok {
				order = append(order, mapped)
			}
		}
		sub.nbrOrder[remap[a]] = order
	}
	return sub
}

// Clone returns a deep copy.
func (m *Molecule) Clone() *Molecule {
	all := make([]int, len(m.atoms))
	for i := range all {
		all[i] = i
	}
	c := m.subMolecule(all)
	c.source = m.source
	return c
}

// ringBonds flags every bond that lies on a cycle (i.e. is not a bridge).
func (m *Molecule) ringBonds() []bool {
	n := len(m.atoms)
	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	inRing := make([]bool, len(m.bonds))
	for i := range inRing {
		inRing[i] = true
	}
	timer := 0

	var visit func(u, parentBond int)
	visit = func(u, parentBond int) {
		disc[u] = timer
		low[u] = timer
		timer++
		for _, bi := range m.adj[u] {
			if bi == parentBond {
				continue
			}
			v := m.bonds[bi].other(u)
			if disc[v] == -1 {
				visit(v, bi)
				if low[v] < low[u] {
					low[u] = low[v]
				}
				if low[v] > disc[u] {
					inRing[bi] = false
				}
			} else if disc[v] < low[u] {
				low[u] = disc[v]
			}
		}
	}
	for i := 0; i < n; i++ {
		if disc[i] == -1 {
			visit(i, -1)
		}
	}
	return inRing
}

// ringAtoms flags atoms with at least one ring bond.
func (m *Molecule) ringAtoms() []bool {
	rb := m.ringBonds()
	out := make([]bool, len(m.atoms))
	for bi, ok := range rb {
		if ok {
			out[m.bonds[bi].Begin] = true
			out[m.bonds[bi].End] = true
		}
	}
	return out
}
