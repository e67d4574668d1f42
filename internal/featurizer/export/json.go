package export

import (
	"encoding/json"
	"io"
	"math"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// JSON writes {"columns": [...], "ids": [...], "rows": [[...]]}.  NaN and
// ±Inf become null.
type JSON struct {
	Indent bool
}

type jsonTable struct {
	Columns []string     `json:"columns"`
	IDs     []string     `json:"ids,omitempty"`
	Rows    [][]*float64 `json:"rows"`
}

func (j JSON) Write(w io.Writer, t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	out := jsonTable{Columns: t.Columns, IDs: t.IDs, Rows: make([][]*float64, len(t.Rows))}
	for i := range t.Rows {
		out.Rows[i] = NullableRow(t.row(i))
	}
	enc := json.NewEncoder(w)
	if j.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "cannot encode json")
	}
	return nil
}

// NullableRow maps non-finite values to nil so the row is JSON-encodable.
func NullableRow(row []float64) []*float64 {
	out := make([]*float64, len(row))
	for i := range row {
		if math.IsNaN(row[i]) || math.IsInf(row[i], 0) {
			continue
		}
		v := row[i]
		out[i] = &v
	}
	return out
}
