package export

import (
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// SheetName is the worksheet the XLSX writer fills.
const SheetName = "Sheet1"

// XLSX writes a single worksheet with a header row.  Non-finite values are
// left blank.
type XLSX struct{}

func (XLSX) Write(w io.Writer, t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot create xlsx stream")
	}
	withIDs := len(t.IDs) > 0

	header := make([]interface{}, 0, len(t.Columns)+1)
	if withIDs {
		header = append(header, "id")
	}
	for _, c := range t.Columns {
		header = append(header, c)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot write xlsx header")
	}

	for i := range t.Rows {
		cells := make([]interface{}, 0, len(header))
		if withIDs {
			cells = append(cells, t.IDs[i])
		}
		for _, v := range t.row(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				cells = append(cells, nil)
				continue
			}
			cells = append(cells, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot address xlsx row")
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot write xlsx row").WithDetailf("row %d", i)
		}
	}
	if err := sw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot flush xlsx stream")
	}
	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot write xlsx")
	}
	return nil
}
