package padel

import (
	"encoding/csv"
	stderrors "errors"
	"io"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// ParseCSV reads a PaDEL result file: one header row of column names followed
// by one row per molecule.  Every row must have as many fields as the header.
func ParseCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if stderrors.Is(err, io.EOF) {
		return nil, nil, errors.New(errors.ErrCodePadelEmptyOutput, "padel output file is empty")
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodePadelEmptyOutput, "cannot read padel output header")
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if stderrors.As(err, &pe) && stderrors.Is(pe.Err, csv.ErrFieldCount) {
				return nil, nil, errors.Wrap(err, errors.ErrCodePadelSchemaMismatch,
					"padel output row width differs from its header")
			}
			return nil, nil, errors.Wrap(err, errors.ErrCodePadelExecutionFailed, "cannot parse padel output")
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, nil, errors.New(errors.ErrCodePadelEmptyOutput, "padel output file has no records")
	}
	return header, rows, nil
}
