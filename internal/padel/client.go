// Package padel is a thin client for the PaDEL-Descriptor program.  It turns
// a list of SMILES into one Record per molecule, preserving input order.  The
// descriptor computation itself happens entirely inside the external program.
package padel

import (
	"context"
	"time"
)

// NameColumn is the identifier column PaDEL emits ahead of the descriptors.
const NameColumn = "Name"

// Options selects the descriptor families and bounds a single call.
type Options struct {
	// Descriptors requests the 1D/2D and 3D descriptor blocks.
	Descriptors bool
	// Fingerprints requests the fingerprint block.
	Fingerprints bool
	// Timeout bounds the whole call.  Zero means the caller's context alone
	// decides.
	Timeout time.Duration
}

// Record is the raw output for one molecule: descriptor names and their string
// values in the order PaDEL emitted them.  Values are not guaranteed to be
// numeric; failed descriptors come back empty or as a placeholder.
type Record struct {
	Names  []string
	Values []string
}

// Len returns the number of name/value pairs.
func (r Record) Len() int { return len(r.Values) }

// Get returns the raw value for name.
func (r Record) Get(name string) (string, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Values[i], true
		}
	}
	return "", false
}

// Map returns the record as a name → value map.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.Names))
	for i, n := range r.Names {
		out[n] = r.Values[i]
	}
	return out
}

// Client computes raw PaDEL records for a batch of SMILES.  Implementations
// must return exactly one record per input, in input order, or an error.
type Client interface {
	FromSMILES(ctx context.Context, smiles []string, opts Options) ([]Record, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, smiles []string, opts Options) ([]Record, error)

// FromSMILES calls f.
func (f ClientFunc) FromSMILES(ctx context.Context, smiles []string, opts Options) ([]Record, error) {
	return f(ctx, smiles, opts)
}
