package molecule

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// validSMILESChars is the character set accepted before parsing starts.
var validSMILESChars = regexp.MustCompile(`^[A-Za-z0-9@+\-\[\]()=#$:/\\%.*]+$`)

// ringPlaceholder reserves a neighbour slot for a ring bond that has been
// opened but not yet closed.
const ringPlaceholder = -2

type openRing struct {
	atom  int
	order BondOrder // zero when unspecified
	dir   byte
	slot  int
}

type parser struct {
	src    string
	pos    int
	mol    *Molecule
	prev   int
	order  BondOrder
	dir    byte
	branch []int
	rings  map[int]openRing
}

// Parse reads a SMILES string into a Molecule.  Surrounding whitespace is
// ignored; anything after the first interior whitespace (a SMILES title) is
// dropped.
func Parse(smiles string) (*Molecule, error) {
	s := strings.TrimSpace(smiles)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return nil, errors.New(errors.ErrCodeMoleculeInvalidSMILES, "SMILES must not be empty")
	}
	if !validSMILESChars.MatchString(s) {
		return nil, errors.New(errors.ErrCodeMoleculeInvalidSMILES, "SMILES contains invalid characters").
			WithDetailf("smiles=%s", s)
	}

	p := &parser{
		src:   s,
		mol:   newMolecule(s),
		prev:  -1,
		rings: make(map[int]openRing),
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	if err := p.mol.sanitize(); err != nil {
		return nil, err
	}
	return p.mol, nil
}

func (p *parser) fail(format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeMoleculeParsingFailed, fmt.Sprintf(format, args...)).
		WithDetailf("smiles=%s position=%d", p.src, p.pos)
}

func (p *parser) run() error {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.fail("branch opened without a preceding atom")
			}
			if p.order != 0 || p.dir != 0 {
				return p.fail("bond symbol before branch")
			}
			p.branch = append(p.branch, p.prev)
			p.pos++

		case c == ')':
			if len(p.branch) == 0 {
				return p.fail("unbalanced ')'")
			}
			if p.order != 0 || p.dir != 0 {
				return p.fail("bond symbol at end of branch")
			}
			p.prev = p.branch[len(p.branch)-1]
			p.branch = p.branch[:len(p.branch)-1]
			p.pos++

		case strings.IndexByte("-=#$:/\\", c) >= 0:
			if p.prev < 0 {
				return p.fail("bond symbol without a preceding atom")
			}
			if p.order != 0 || p.dir != 0 {
				return p.fail("consecutive bond symbols")
			}
			switch c {
			case '-':
				p.order = BondSingle
			case '=':
				p.order = BondDouble
			case '#':
				p.order = BondTriple
			case '$':
				p.order = BondQuadruple
			case ':':
				p.order = BondAromatic
			default:
				p.order = BondSingle
				p.dir = c
			}
			p.pos++

		case c == '.':
			if p.order != 0 || p.dir != 0 {
				return p.fail("bond symbol before '.'")
			}
			if p.prev < 0 {
				return p.fail("'.' without a preceding atom")
			}
			p.prev = -1
			p.pos++

		case c == '%' || (c >= '0' && c <= '9'):
			if err := p.ringBond(); err != nil {
				return err
			}

		case c == '[':
			a, err := p.bracketAtom()
			if err != nil {
				return err
			}
			p.attach(a)

		default:
			a, err := p.organicAtom()
			if err != nil {
				return err
			}
			p.attach(a)
		}
	}

	if p.order != 0 || p.dir != 0 {
		return p.fail("dangling bond at end of SMILES")
	}
	if len(p.branch) > 0 {
		return p.fail("unclosed branch")
	}
	if len(p.rings) > 0 {
		for n := range p.rings {
			return p.fail("unclosed ring %d", n)
		}
	}
	if len(p.mol.atoms) == 0 {
		return p.fail("no atoms")
	}
	return nil
}

// attach adds a to the molecule and bonds it to the previous atom.
func (p *parser) attach(a Atom) {
	idx := p.mol.addAtom(a)
	if p.prev >= 0 {
		order := p.order
		if order == 0 {
			order = p.defaultOrder(p.prev, idx)
		}
		p.mol.addBond(Bond{Begin: p.prev, End: idx, Order: order, Direction: p.dir})
		p.mol.nbrOrder[p.prev] = append(p.mol.nbrOrder[p.prev], idx)
		p.mol.nbrOrder[idx] = append(p.mol.nbrOrder[idx], p.prev)
	}
	if a.Bracket && a.HCount > 0 {
		p.mol.nbrOrder[idx] = append(p.mol.nbrOrder[idx], implicitHydrogen)
	}
	p.prev = idx
	p.order = 0
	p.dir = 0
}

func (p *parser) defaultOrder(a, b int) BondOrder {
	if p.mol.atoms[a].Aromatic && p.mol.atoms[b].Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func (p *parser) ringBond() error {
	if p.prev < 0 {
		return p.fail("ring bond without a preceding atom")
	}
	var n int
	if p.src[p.pos] == '%' {
		if p.pos+2 >= len(p.src) || !isDigit(p.src[p.pos+1]) || !isDigit(p.src[p.pos+2]) {
			return p.fail("'%%' must be followed by two digits")
		}
		n = int(p.src[p.pos+1]-'0')*10 + int(p.src[p.pos+2]-'0')
		p.pos += 3
	} else {
		n = int(p.src[p.pos] - '0')
		p.pos++
	}

	open, ok := p.rings[n]
	if !ok {
		p.rings[n] = openRing{atom: p.prev, order: p.order, dir: p.dir, slot: len(p.mol.nbrOrder[p.prev])}
		p.mol.nbrOrder[p.prev] = append(p.mol.nbrOrder[p.prev], ringPlaceholder)
		p.order, p.dir = 0, 0
		return nil
	}
	delete(p.rings, n)

	if open.atom == p.prev {
		return p.fail("ring %d closes on its own atom", n)
	}
	if p.mol.bondBetween(open.atom, p.prev) >= 0 {
		return p.fail("ring %d duplicates an existing bond", n)
	}
	order := open.order
	switch {
	case order == 0:
		order = p.order
	case p.order != 0 && p.order != order:
		return p.fail("ring %d has conflicting bond orders", n)
	}
	if order == 0 {
		order = p.defaultOrder(open.atom, p.prev)
	}
	dir := open.dir
	if dir == 0 {
		dir = flipDirection(p.dir)
	}
	p.mol.addBond(Bond{Begin: open.atom, End: p.prev, Order: order, Direction: dir})
	p.mol.nbrOrder[open.atom][open.slot] = p.prev
	p.mol.nbrOrder[p.prev] = append(p.mol.nbrOrder[p.prev], open.atom)
	p.order, p.dir = 0, 0
	return nil
}

func (p *parser) organicAtom() (Atom, error) {
	s := p.src[p.pos:]
	if s[0] == '*' {
		p.pos++
		return Atom{Symbol: "*"}, nil
	}
	if len(s) >= 2 && (s[:2] == "Cl" || s[:2] == "Br") {
		p.pos += 2
		return Atom{Symbol: s[:2]}, nil
	}
	sym := s[:1]
	if organicSubset[sym] {
		p.pos++
		return Atom{Symbol: sym}, nil
	}
	if el, ok := aromaticSymbols[sym]; ok && organicSubset[el] {
		p.pos++
		return Atom{Symbol: el, Aromatic: true}, nil
	}
	return Atom{}, p.fail("unexpected character %q outside brackets", sym)
}

func (p *parser) bracketAtom() (Atom, error) {
	end := strings.IndexByte(p.src[p.pos:], ']')
	if end < 0 {
		return Atom{}, p.fail("unclosed '['")
	}
	body := p.src[p.pos+1 : p.pos+end]
	start := p.pos
	p.pos += end + 1

	a := Atom{Bracket: true}
	i := 0
	for i < len(body) && isDigit(body[i]) {
		a.Isotope = a.Isotope*10 + int(body[i]-'0')
		i++
	}

	sym, aromatic, n := bracketSymbol(body[i:])
	if n == 0 {
		p.pos = start
		return Atom{}, p.fail("unknown element in [%s]", body)
	}
	a.Symbol, a.Aromatic = sym, aromatic
	i += n

	if strings.HasPrefix(body[i:], "@@") {
		a.Chirality = "@@"
		i += 2
	} else if strings.HasPrefix(body[i:], "@") {
		a.Chirality = "@"
		i++
	}

	if i < len(body) && body[i] == 'H' {
		i++
		a.HCount = 1
		if i < len(body) && isDigit(body[i]) {
			a.HCount = int(body[i] - '0')
			i++
		}
	}

	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		sc := body[i]
		i++
		mag := 1
		if i < len(body) && isDigit(body[i]) {
			mag = 0
			for i < len(body) && isDigit(body[i]) {
				mag = mag*10 + int(body[i]-'0')
				i++
			}
		} else {
			for i < len(body) && body[i] == sc {
				mag++
				i++
			}
		}
		a.Charge = sign * mag
	}

	if i < len(body) && body[i] == ':' {
		i++
		if i == len(body) {
			p.pos = start
			return Atom{}, p.fail("empty atom class in [%s]", body)
		}
		for i < len(body) && isDigit(body[i]) {
			a.Class = a.Class*10 + int(body[i]-'0')
			i++
		}
	}

	if i != len(body) {
		p.pos = start
		return Atom{}, p.fail("unexpected %q in [%s]", body[i:], body)
	}
	return a, nil
}

// bracketSymbol reads an element symbol at the start of s and returns the
// canonical symbol, whether it was written aromatic, and its length.
func bracketSymbol(s string) (string, bool, int) {
	if s == "" {
		return "", false, 0
	}
	if s[0] == '*' {
		return "*", false, 1
	}
	if len(s) >= 2 {
		if el, ok := aromaticSymbols[s[:2]]; ok {
			return el, true, 2
		}
		if _, ok := elements[s[:2]]; ok && isUpper(s[0]) {
			return s[:2], false, 2
		}
	}
	if el, ok := aromaticSymbols[s[:1]]; ok {
		return el, true, 1
	}
	if _, ok := elements[s[:1]]; ok && isUpper(s[0]) {
		return s[:1], false, 1
	}
	return "", false, 0
}

// sanitize rejects hypervalent organic-subset atoms and aromatic atoms
// outside rings.
func (m *Molecule) sanitize() error {
	inRing := m.ringAtoms()
	for i, a := range m.atoms {
		if a.Aromatic && !inRing[i] {
			return errors.New(errors.ErrCodeMoleculeParsingFailed, "non-ring atom marked aromatic").
				WithDetailf("smiles=%s atom=%d", m.source, i)
		}
		if a.Bracket {
			continue
		}
		e, ok := lookupElement(a.Symbol)
		if !ok || len(e.valences) == 0 {
			continue
		}
		used := m.explicitValence(i)
		if a.Aromatic {
			used++
		}
		if used > e.valences[len(e.valences)-1] {
			return errors.New(errors.ErrCodeMoleculeParsingFailed, "explicit valence exceeds the permitted maximum").
				WithDetailf("smiles=%s atom=%d element=%s valence=%d", m.source, i, a.Symbol, used)
		}
	}
	return nil
}

func flipDirection(d byte) byte {
	switch d {
	case '/':
		return '\\'
	case '\\':
		return '/'
	}
	return 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
