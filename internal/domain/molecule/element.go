package molecule

// element describes the properties the parser and standardizer rely on.
type element struct {
	number int
	// valences lists the allowed neutral valences, lowest first.  Elements
	// without entries are never given implicit hydrogens.
	valences []int
	metal    bool
}

var elements = map[string]element{
	"*":  {number: 0},
	"H":  {number: 1, valences: []int{1}},
	"He": {number: 2},
	"Li": {number: 3, metal: true},
	"Be": {number: 4, metal: true},
	"B":  {number: 5, valences: []int{3}},
	"C":  {number: 6, valences: []int{4}},
	"N":  {number: 7, valences: []int{3, 5}},
	"O":  {number: 8, valences: []int{2}},
	"F":  {number: 9, valences: []int{1}},
	"Ne": {number: 10},
	"Na": {number: 11, metal: true},
	"Mg": {number: 12, metal: true},
	"Al": {number: 13, metal: true},
	"Si": {number: 14, valences: []int{4}},
	"P":  {number: 15, valences: []int{3, 5}},
	"S":  {number: 16, valences: []int{2, 4, 6}},
	"Cl": {number: 17, valences: []int{1}},
	"Ar": {number: 18},
	"K":  {number: 19, metal: true},
	"Ca": {number: 20, metal: true},
	"Sc": {number: 21, metal: true},
	"Ti": {number: 22, metal: true},
	"V":  {number: 23, metal: true},
	"Cr": {number: 24, metal: true},
	"Mn": {number: 25, metal: true},
	"Fe": {number: 26, metal: true},
	"Co": {number: 27, metal: true},
	"Ni": {number: 28, metal: true},
	"Cu": {number: 29, metal: true},
	"Zn": {number: 30, metal: true},
	"Ga": {number: 31, metal: true},
	"Ge": {number: 32},
	"As": {number: 33, valences: []int{3, 5}},
	"Se": {number: 34, valences: []int{2, 4, 6}},
	"Br": {number: 35, valences: []int{1}},
	"Kr": {number: 36},
	"Rb": {number: 37, metal: true},
	"Sr": {number: 38, metal: true},
	"Y":  {number: 39, metal: true},
	"Zr": {number: 40, metal: true},
	"Nb": {number: 41, metal: true},
	"Mo": {number: 42, metal: true},
	"Tc": {number: 43, metal: true},
	"Ru": {number: 44, metal: true},
	"Rh": {number: 45, metal: true},
	"Pd": {number: 46, metal: true},
	"Ag": {number: 47, metal: true},
	"Cd": {number: 48, metal: true},
	"In": {number: 49, metal: true},
	"Sn": {number: 50, metal: true},
	"Sb": {number: 51},
	"Te": {number: 52, valences: []int{2, 4, 6}},
	"I":  {number: 53, valences: []int{1, 3, 5}},
	"Xe": {number: 54},
	"Cs": {number: 55, metal: true},
	"Ba": {number: 56, metal: true},
	"La": {number: 57, metal: true},
	"Ce": {number: 58, metal: true},
	"Gd": {number: 64, metal: true},
	"Hf": {number: 72, metal: true},
	"Ta": {number: 73, metal: true},
	"W":  {number: 74, metal: true},
	"Re": {number: 75, metal: true},
	"Os": {number: 76, metal: true},
	"Ir": {number: 77, metal: true},
	"Pt": {number: 78, metal: true},
	"Au": {number: 79, metal: true},
	"Hg": {number: 80, metal: true},
	"Tl": {number: 81, metal: true},
	"Pb": {number: 82, metal: true},
	"Bi": {number: 83, metal: true},
	"U":  {number: 92, metal: true},
}

// organicSubset are the symbols that may appear without brackets.
var organicSubset = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"F": true, "Cl": true, "Br": true, "I": true, "*": true,
}

// aromaticSymbols maps the lowercase aromatic spellings to their element.
var aromaticSymbols = map[string]string{
	"b": "B", "c": "C", "n": "N", "o": "O", "p": "P", "s": "S",
	"se": "Se", "as": "As", "te": "Te", "si": "Si",
}

// metalAcceptors are the elements whose covalent bonds to a metal are broken
// by metal disconnection.
var metalAcceptors = map[string]bool{
	"N": true, "O": true, "F": true, "P": true, "S": true,
	"Cl": true, "Se": true, "Br": true, "I": true,
}

func lookupElement(symbol string) (element, bool) {
	e, ok := elements[symbol]
	return e, ok
}

func isMetal(symbol string) bool {
	e, ok := elements[symbol]
	return ok && e.metal
}
