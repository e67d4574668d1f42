package cli

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// ReadSMILESFile reads molecules from path, or stdin when path is "-".
//
// .smi and .txt files hold one molecule per line; only the first
// whitespace-separated field is used so "SMILES name" lines work.  Blank
// lines and lines starting with # are skipped.  .csv files use the column
// named "smiles" (any case), or the first column when there is none.
func ReadSMILESFile(path string) ([]string, error) {
	if path == "-" {
		return readSMILESLines(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "cannot open input").WithDetail(path)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readSMILESCSV(f)
	case ".smi", ".txt", ".smiles":
		return readSMILESLines(f)
	}
	return nil, errors.Newf(errors.ErrCodeBadRequest, "unsupported input extension %q", filepath.Ext(path)).
		WithDetail("expected .smi, .txt or .csv")
}

func readSMILESLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.Fields(line)[0])
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "cannot read input")
	}
	return out, nil
}

func readSMILESCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "cannot parse csv input")
	}
	if len(records) == 0 {
		return nil, nil
	}

	col, body := 0, records
	if _, idx, ok := lo.FindIndexOf(records[0], func(h string) bool {
		return strings.EqualFold(strings.TrimSpace(h), "smiles")
	}); ok {
		col, body = idx, records[1:]
	}

	out := make([]string, 0, len(body))
	for i, rec := range body {
		if col >= len(rec) {
			return nil, errors.Newf(errors.ErrCodeBadRequest, "csv row %d has no column %d", i+1, col)
		}
		if s := strings.TrimSpace(rec[col]); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
