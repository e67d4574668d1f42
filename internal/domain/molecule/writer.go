package molecule

import (
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// CanonicalSMILES writes m as a canonical SMILES string.  Fragments are
// written independently and joined with '.' in lexical order, so the result
// does not depend on the input atom order of disconnected parts.
func CanonicalSMILES(m *Molecule) (string, error) {
	if m == nil || len(m.atoms) == 0 {
		return "", errors.New(errors.ErrCodeMoleculeEmptyInput, "molecule has no atoms")
	}
	frags := m.Fragments()
	parts := make([]string, len(frags))
	for i, f := range frags {
		parts[i] = newWriter(f).write()
	}
	sort.Strings(parts)
	return strings.Join(parts, "."), nil
}

// canonicalRanks assigns every atom a distinct rank.  Atoms start in classes
// of equal local invariants, classes are refined by their neighbourhoods
// until stable, and remaining ties are broken on the lowest atom index.
func (m *Molecule) canonicalRanks() []int {
	n := len(m.atoms)
	inRing := m.ringAtoms()
	keys := make([][]int, n)
	for i, a := range m.atoms {
		e, _ := lookupElement(a.Symbol)
		keys[i] = []int{
			len(m.adj[i]),
			e.number,
			a.Isotope,
			a.Charge,
			m.TotalHydrogens(i),
			boolInt(a.Aromatic),
			boolInt(inRing[i]),
			a.Class,
		}
	}
	ranks, classes := denseRanks(keys)
	ranks, classes = m.refine(ranks, classes)

	for classes < n {
		// lowest shared rank, then lowest index within it
		counts := make(map[int]int, classes)
		for _, r := range ranks {
			counts[r]++
		}
		tied := -1
		for _, r := range ranks {
			if counts[r] > 1 && (tied < 0 || r < tied) {
				tied = r
			}
		}
		pick := -1
		for i, r := range ranks {
			if r == tied {
				pick = i
				break
			}
		}
		for i := range ranks {
			ranks[i] *= 2
			if i != pick {
				ranks[i]++
			}
		}
		ranks, classes = m.refine(ranks, classes+1)
	}
	return ranks
}

func (m *Molecule) refine(ranks []int, classes int) ([]int, int) {
	for {
		keys := make([][]int, len(ranks))
		for i := range ranks {
			nb := make([]int, 0, len(m.adj[i]))
			for _, bi := range m.adj[i] {
				b := m.bonds[bi]
				nb = append(nb, ranks[b.other(i)]*8+int(b.Order))
			}
			sort.Ints(nb)
			keys[i] = append([]int{ranks[i]}, nb...)
		}
		next, count := denseRanks(keys)
		if count <= classes {
			return next, count
		}
		ranks, classes = next, count
	}
}

// denseRanks sorts keys lexicographically and returns 0-based ranks in which
// equal keys share a rank, plus the number of distinct ranks.
func denseRanks(keys [][]int) ([]int, int) {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return compareInts(keys[idx[a]], keys[idx[b]]) < 0 })
	ranks := make([]int, len(keys))
	r := 0
	for k, i := range idx {
		if k > 0 && compareInts(keys[idx[k-1]], keys[i]) != 0 {
			r++
		}
		ranks[i] = r
	}
	if len(keys) == 0 {
		return ranks, 0
	}
	return ranks, r + 1
}

func compareInts(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type ringEdge struct {
	bond    int
	partner int
}

type writer struct {
	m        *Molecule
	ranks    []int
	visited  []bool
	usedBond []bool
	parent   []int // bond to the DFS parent, -1 at the root
	children [][]int
	opens    [][]ringEdge // closures whose digit is allocated at this atom
	closes   [][]ringEdge // closures completed at this atom

	digits map[int]int // bond -> ring digit
	inUse  map[int]bool
	sb     strings.Builder
}

func newWriter(m *Molecule) *writer {
	n := len(m.atoms)
	return &writer{
		m:        m,
		ranks:    m.canonicalRanks(),
		visited:  make([]bool, n),
		usedBond: make([]bool, len(m.bonds)),
		parent:   make([]int, n),
		children: make([][]int, n),
		opens:    make([][]ringEdge, n),
		closes:   make([][]ringEdge, n),
		digits:   make(map[int]int),
		inUse:    make(map[int]bool),
	}
}

func (w *writer) write() string {
	start := 0
	for i, r := range w.ranks {
		if r < w.ranks[start] {
			start = i
		}
	}
	w.parent[start] = -1
	w.walk(start)
	w.emit(start)
	return normalizeDirections(w.sb.String())
}

// normalizeDirections flips every directional bond when the first one is
// written as a backslash.  Flipping all of them keeps each double bond's
// configuration, so F/C=C/F and F\C=C\F come out the same.
func normalizeDirections(s string) string {
	i := strings.IndexAny(s, `/\`)
	if i < 0 || s[i] == '/' {
		return s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/':
			return '\\'
		case '\\':
			return '/'
		}
		return r
	}, s)
}

// sortedBonds returns the bonds at atom u ordered by the rank of the atom
// at their far end.
func (w *writer) sortedBonds(u int) []int {
	bonds := append([]int(nil), w.m.adj[u]...)
	sort.Slice(bonds, func(a, b int) bool {
		return w.ranks[w.m.bonds[bonds[a]].other(u)] < w.ranks[w.m.bonds[bonds[b]].other(u)]
	})
	return bonds
}

// walk is the first pass: it fixes the spanning tree and the ring-closure
// bonds before anything is written.
func (w *writer) walk(u int) {
	w.visited[u] = true
	for _, bi := range w.sortedBonds(u) {
		if w.usedBond[bi] {
			continue
		}
		v := w.m.bonds[bi].other(u)
		w.usedBond[bi] = true
		if w.visited[v] {
			w.opens[v] = append(w.opens[v], ringEdge{bond: bi, partner: u})
			w.closes[u] = append(w.closes[u], ringEdge{bond: bi, partner: v})
			continue
		}
		w.parent[v] = bi
		w.children[u] = append(w.children[u], v)
		w.walk(v)
	}
}

func (w *writer) emit(u int) {
	var order []int
	if pb := w.parent[u]; pb >= 0 {
		from := w.m.bonds[pb].other(u)
		w.sb.WriteString(w.bondSymbol(pb, from))
		order = append(order, from)
	}
	if w.needsBracket(u) && w.m.TotalHydrogens(u) > 0 {
		order = append(order, implicitHydrogen)
	}

	// closures reuse the digit allocated at their opening; a digit released
	// here may be handed out again to an opening on the same atom
	closes := append([]ringEdge(nil), w.closes[u]...)
	sort.Slice(closes, func(i, j int) bool { return w.digits[closes[i].bond] < w.digits[closes[j].bond] })
	var labels strings.Builder
	for _, e := range closes {
		d := w.digits[e.bond]
		delete(w.inUse, d)
		labels.WriteString(ringLabel(d))
		order = append(order, e.partner)
	}
	opens := append([]ringEdge(nil), w.opens[u]...)
	sort.Slice(opens, func(i, j int) bool { return w.ranks[opens[i].partner] < w.ranks[opens[j].partner] })
	for _, e := range opens {
		d := w.allocDigit()
		w.digits[e.bond] = d
		labels.WriteString(w.bondSymbol(e.bond, u))
		labels.WriteString(ringLabel(d))
		order = append(order, e.partner)
	}
	order = append(order, w.children[u]...)

	chir := ""
	if w.m.atoms[u].Chirality != "" {
		chir = w.outputChirality(u, order)
	}
	w.sb.WriteString(w.atomToken(u, chir))
	w.sb.WriteString(labels.String())

	for i, c := range w.children[u] {
		last := i == len(w.children[u])-1
		if !last {
			w.sb.WriteByte('(')
		}
		w.emit(c)
		if !last {
			w.sb.WriteByte(')')
		}
	}
}

func (w *writer) allocDigit() int {
	for d := 1; ; d++ {
		if !w.inUse[d] {
			w.inUse[d] = true
			return d
		}
	}
}

func ringLabel(d int) string {
	if d < 10 {
		return strconv.Itoa(d)
	}
	return "%" + strconv.Itoa(d)
}

// bondSymbol returns the text for bond bi when written leaving atom from.
func (w *writer) bondSymbol(bi, from int) string {
	b := w.m.bonds[bi]
	bothAromatic := w.m.atoms[b.Begin].Aromatic && w.m.atoms[b.End].Aromatic
	switch b.Order {
	case BondDouble:
		return "="
	case BondTriple:
		return "#"
	case BondQuadruple:
		return "$"
	case BondAromatic:
		if bothAromatic {
			return ""
		}
		return ":"
	}
	if b.Direction != 0 {
		if b.Begin == from {
			return string(b.Direction)
		}
		return string(flipDirection(b.Direction))
	}
	if bothAromatic {
		return "-"
	}
	return ""
}

// outputChirality maps the stored chirality onto the neighbour order in which
// the atom is written.  An odd permutation flips @ and @@.
func (w *writer) outputChirality(u int, written []int) string {
	orig := w.m.nbrOrder[u]
	chir := w.m.atoms[u].Chirality
	if len(orig) != len(written) {
		return chir
	}
	pos := make(map[int]int, len(orig))
	for i, n := range orig {
		pos[n] = i
	}
	perm := make([]int, len(written))
	for i, n := range written {
		p, ok := pos[n]
		if !ok {
			return chir
		}
		perm[i] = p
	}
	inversions := 0
	for i := 0; i < len(perm); i++ {
		for j := i + 1; j < len(perm); j++ {
			if perm[i] > perm[j] {
				inversions++
			}
		}
	}
	if inversions%2 == 0 {
		return chir
	}
	if chir == "@" {
		return "@@"
	}
	return "@"
}

// organicHydrogens is the implicit hydrogen count atom u would get if it
// were written without brackets.
func (m *Molecule) organicHydrogens(u int) int {
	a := m.atoms[u]
	a.Bracket = false
	saved := m.atoms[u]
	m.atoms[u] = a
	h := m.ImplicitHydrogens(u)
	m.atoms[u] = saved
	return h
}

func (w *writer) needsBracket(u int) bool {
	a := w.m.atoms[u]
	if !organicSubset[a.Symbol] {
		return true
	}
	if a.Isotope != 0 || a.Chirality != "" || a.Charge != 0 || a.Class != 0 {
		return true
	}
	if a.Symbol == "*" {
		return a.Bracket && a.HCount > 0
	}
	if a.Bracket {
		return a.HCount != w.m.organicHydrogens(u)
	}
	return false
}

// atomToken renders atom u.  A non-empty chir overrides the stored
// chirality.
func (w *writer) atomToken(u int, chir string) string {
	a := w.m.atoms[u]
	sym := a.Symbol
	if a.Aromatic {
		sym = strings.ToLower(sym)
	}
	if !w.needsBracket(u) {
		return sym
	}
	if chir == "" {
		chir = a.Chirality
	}
	var sb strings.Builder
	sb.WriteByte('[')
	if a.Isotope != 0 {
		sb.WriteString(strconv.Itoa(a.Isotope))
	}
	sb.WriteString(sym)
	sb.WriteString(chir)
	if h := w.m.TotalHydrogens(u); h > 0 {
		sb.WriteByte('H')
		if h > 1 {
			sb.WriteString(strconv.Itoa(h))
		}
	}
	switch {
	case a.Charge == 1:
		sb.WriteByte('+')
	case a.Charge == -1:
		sb.WriteByte('-')
	case a.Charge > 1:
		sb.WriteString("+" + strconv.Itoa(a.Charge))
	case a.Charge < -1:
		sb.WriteString(strconv.Itoa(a.Charge))
	}
	if a.Class != 0 {
		sb.WriteString(":" + strconv.Itoa(a.Class))
	}
	sb.WriteByte(']')
	return sb.String()
}
