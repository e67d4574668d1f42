package export

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// CSV writes a header row followed by one line per row.  NaN is written as
// an empty field.  An "id" column leads when the table has IDs.
type CSV struct {
	Comma rune
}

func (c CSV) Write(w io.Writer, t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if c.Comma != 0 {
		cw.Comma = c.Comma
	}
	withIDs := len(t.IDs) > 0

	header := t.Columns
	if withIDs {
		header = append([]string{"id"}, t.Columns...)
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot write csv header")
	}
	for i := range t.Rows {
		rec := make([]string, 0, len(header))
		if withIDs {
			rec = append(rec, t.IDs[i])
		}
		for _, v := range t.row(i) {
			rec = append(rec, formatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot write csv row").WithDetailf("row %d", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot flush csv")
	}
	return nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
