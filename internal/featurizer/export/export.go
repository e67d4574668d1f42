// Package export writes feature tables as CSV, JSON, NumPy or Excel files.
package export

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// Format names a file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatNPY  Format = "npy"
	FormatXLSX Format = "xlsx"
)

// Table is a featurized batch.  IDs, when set, label each row (typically the
// input SMILES) and has the same length as Rows.  A nil row is written as
// all-NaN.
type Table struct {
	Columns []string
	IDs     []string
	Rows    [][]float64
}

// Validate checks that every row has len(Columns) values.
func (t Table) Validate() error {
	if len(t.IDs) > 0 && len(t.IDs) != len(t.Rows) {
		return errors.Newf(errors.ErrCodeExportFailed, "%d ids for %d rows", len(t.IDs), len(t.Rows))
	}
	for i, row := range t.Rows {
		if row != nil && len(row) != len(t.Columns) {
			return errors.Newf(errors.ErrCodeExportFailed, "row %d has %d values, expected %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

func (t Table) row(i int) []float64 {
	if r := t.Rows[i]; r != nil {
		return r
	}
	r := make([]float64, len(t.Columns))
	for j := range r {
		r[j] = math.NaN()
	}
	return r
}

// Writer encodes a Table to w.
type Writer interface {
	Write(w io.Writer, t Table) error
}

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch Format(ext) {
	case FormatCSV, FormatJSON, FormatNPY, FormatXLSX:
		return Format(ext), nil
	case "tsv":
		return FormatCSV, nil
	}
	return "", errors.Newf(errors.ErrCodeExportFailed, "unsupported output extension %q", filepath.Ext(path)).
		WithDetail("expected .csv, .json, .npy or .xlsx")
}

// WriterFor returns the writer for f.
func WriterFor(f Format) (Writer, error) {
	switch f {
	case FormatCSV:
		return CSV{}, nil
	case FormatJSON:
		return JSON{}, nil
	case FormatNPY:
		return NPY{}, nil
	case FormatXLSX:
		return XLSX{}, nil
	}
	return nil, errors.Newf(errors.ErrCodeExportFailed, "unsupported format %q", f)
}

// WriteFile writes t to path in the format implied by its extension.
func WriteFile(path string, t Table) (err error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	w, err := WriterFor(format)
	if err != nil {
		return err
	}
	if format == FormatCSV && strings.EqualFold(filepath.Ext(path), ".tsv") {
		w = CSV{Comma: '\t'}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot create output file").WithDetail(path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrCodeExportFailed, "cannot close output file").WithDetail(path)
		}
	}()
	return w.Write(f, t)
}
