package testutil

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/turtacn/padel-featurizer/internal/padel"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// DefaultDescriptorNames is the schema FakePadel reports when descriptors
// are requested.
var DefaultDescriptorNames = []string{"nAcid", "ALogP", "MW"}

// DefaultFingerprintNames is appended when fingerprints are requested.
var DefaultFingerprintNames = []string{"PubchemFP0", "PubchemFP1"}

// FakePadel is an in-memory padel.Client.  Values are derived from the
// SMILES so equal molecules give equal rows: column j of molecule s is
// len(s)+j, except that Blank SMILES get an empty value in column 1.
type FakePadel struct {
	// Blank lists SMILES whose second column comes back empty.
	Blank map[string]bool
	// Fail makes every call after the probe return this error.
	Fail error
	// FailOn fails any call containing this SMILES.
	FailOn string
	// Hook runs before each call.
	Hook func(ctx context.Context, smiles []string) error

	mu    sync.Mutex
	calls [][]string
}

// NewFakePadel returns a FakePadel with no failures configured.
func NewFakePadel() *FakePadel {
	return &FakePadel{Blank: map[string]bool{}}
}

// FromSMILES implements padel.Client.
func (f *FakePadel) FromSMILES(ctx context.Context, smiles []string, opts padel.Options) ([]padel.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), smiles...))
	probe := len(f.calls) == 1
	f.mu.Unlock()

	if f.Hook != nil {
		if err := f.Hook(ctx, smiles); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Fail != nil && !probe {
		return nil, f.Fail
	}
	for _, s := range smiles {
		if f.FailOn != "" && s == f.FailOn {
			return nil, errors.Newf(errors.ErrCodePadelExecutionFailed, "padel crashed on %s", s)
		}
	}

	names := Names(opts)
	out := make([]padel.Record, len(smiles))
	for i, s := range smiles {
		vals := make([]string, len(names))
		for j := range names {
			vals[j] = strconv.Itoa(len(s) + j)
		}
		if f.Blank[s] && len(vals) > 1 {
			vals[1] = ""
		}
		out[i] = padel.Record{Names: names, Values: vals}
	}
	return out, nil
}

// Calls returns every batch received, probe included.
func (f *FakePadel) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// CallCount returns the number of calls received, probe included.
func (f *FakePadel) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Names returns the schema FakePadel reports for opts.
func Names(opts padel.Options) []string {
	var names []string
	if opts.Descriptors {
		names = append(names, DefaultDescriptorNames...)
	}
	if opts.Fingerprints {
		names = append(names, DefaultFingerprintNames...)
	}
	return names
}

// Row returns the row FakePadel produces for a canonical SMILES.
func Row(smiles string, width int) []float64 {
	row := make([]float64, width)
	for j := range row {
		row[j] = float64(len(smiles) + j)
	}
	return row
}

// Prefixed returns names with the PaDEL_ column prefix.
func Prefixed(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "PaDEL_" + strings.TrimSpace(n)
	}
	return out
}
