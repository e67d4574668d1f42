package cli

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"

	"github.com/turtacn/padel-featurizer/internal/application/featurize"
	"github.com/turtacn/padel-featurizer/internal/featurizer/export"
)

// ColumnSummary describes one feature column over the featurized rows.
// Mean and StdDev ignore NaN and are NaN when every value is NaN.
type ColumnSummary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	NaN    int     `json:"nan"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// MarshalJSON writes undefined statistics as null.
func (c ColumnSummary) MarshalJSON() ([]byte, error) {
	st := export.NullableRow([]float64{c.Mean, c.StdDev, c.Min, c.Max})
	return json.Marshal(struct {
		Column string   `json:"column"`
		Count  int      `json:"count"`
		NaN    int      `json:"nan"`
		Mean   *float64 `json:"mean"`
		StdDev *float64 `json:"stddev"`
		Min    *float64 `json:"min"`
		Max    *float64 `json:"max"`
	}{c.Column, c.Count, c.NaN, st[0], st[1], st[2], st[3]})
}

// Summary is the output of padelfeat describe.
type Summary struct {
	Molecules int             `json:"molecules"`
	Rows      int             `json:"rows"`
	Failed    []int           `json:"failed,omitempty"`
	Columns   []ColumnSummary `json:"columns"`
}

func (s Summary) TableHeaders() []string {
	return []string{"COLUMN", "COUNT", "NAN", "MEAN", "STDDEV", "MIN", "MAX"}
}

func (s Summary) TableRows() [][]string {
	rows := make([][]string, len(s.Columns))
	for i, c := range s.Columns {
		rows[i] = []string{
			c.Column,
			strconv.Itoa(c.Count),
			strconv.Itoa(c.NaN),
			formatStat(c.Mean),
			formatStat(c.StdDev),
			formatStat(c.Min),
			formatStat(c.Max),
		}
	}
	return rows
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// Summarize computes per-column statistics over rows.
func Summarize(columns []string, rows [][]float64) []ColumnSummary {
	out := make([]ColumnSummary, len(columns))
	for j, name := range columns {
		var data stats.Float64Data
		nan := 0
		for _, row := range rows {
			if v := row[j]; math.IsNaN(v) {
				nan++
			} else {
				data = append(data, v)
			}
		}
		cs := ColumnSummary{Column: name, Count: len(rows), NaN: nan,
			Mean: math.NaN(), StdDev: math.NaN(), Min: math.NaN(), Max: math.NaN()}
		if len(data) > 0 {
			cs.Mean, _ = data.Mean()
			cs.StdDev, _ = data.StandardDeviationSample()
			cs.Min, _ = data.Min()
			cs.Max, _ = data.Max()
			if len(data) == 1 {
				cs.StdDev = 0
			}
		}
		out[j] = cs
	}
	return out
}

// describe featurizes INPUT and prints column statistics instead of the
// matrix.  Molecules that fail are skipped.
func newDescribeCmd() *cobra.Command {
	o := &featurizeOptions{}
	cmd := &cobra.Command{
		Use:   "describe INPUT",
		Short: "Featurize INPUT and summarize each column (count, NaN, mean, stddev, range)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			o.applyOverrides(cmd, cliCtx.Config)

			smiles, err := ReadSMILESFile(args[0])
			if err != nil {
				return err
			}
			rt, err := cliCtx.Runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.Service.Featurize(cmd.Context(), &featurize.Request{SMILES: smiles, IgnoreErrors: true})
			if err != nil {
				return err
			}
			return PrintResult(cmd, Summary{
				Molecules: len(smiles),
				Rows:      len(resp.Rows),
				Failed:    resp.Failed(),
				Columns:   Summarize(resp.Columns, resp.Rows),
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.nJobs, "n-jobs", 1, "parallel PaDEL invocations (<= 0 uses every CPU)")
	f.BoolVar(&o.descriptors, "descriptors", true, "compute 1D/2D descriptors")
	f.BoolVar(&o.fingerprints, "fingerprints", true, "compute fingerprints")
	f.StringVar(&o.store, "store", "", "feature store driver (none, memory, redis, postgres, sqlite)")
	return cmd
}
