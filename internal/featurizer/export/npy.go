package export

import (
	"io"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// NPY writes the rows as a float64 matrix in NumPy .npy format.  Column
// names and IDs are not part of the format and are dropped.
type NPY struct{}

func (NPY) Write(w io.Writer, t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if len(t.Rows) == 0 || len(t.Columns) == 0 {
		if err := npyio.Write(w, []float64{}); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot write npy")
		}
		return nil
	}
	m := mat.NewDense(len(t.Rows), len(t.Columns), nil)
	for i := range t.Rows {
		m.SetRow(i, t.row(i))
	}
	if err := npyio.Write(w, m); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot write npy")
	}
	return nil
}
