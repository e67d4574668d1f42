package trans

import (
	"math"
	"strings"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// CastFunc converts feature rows to the caller's element type.
type CastFunc func(rows [][]float64) (any, error)

// DType names the element type of transformer output.  The zero value is
// float64 and performs no conversion.
type DType struct {
	name string
	cast CastFunc
}

var (
	Float64 = DType{name: "float64"}
	Float32 = DType{name: "float32", cast: toFloat32}
	Int64   = DType{name: "int64", cast: toInt64}
	Bool    = DType{name: "bool", cast: toBool}
)

// CustomDType wraps a user conversion.
func CustomDType(name string, fn CastFunc) DType {
	return DType{name: name, cast: fn}
}

// ParseDType resolves a dtype name.  "float" and "double" are aliases for
// float64, "int" for int64.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "float", "float64", "double":
		return Float64, nil
	case "float32", "single":
		return Float32, nil
	case "int", "int64", "long":
		return Int64, nil
	case "bool", "boolean":
		return Bool, nil
	}
	return DType{}, errors.Newf(errors.ErrCodeInvalidParams, "unknown dtype %q", s)
}

// String returns the dtype name.
func (d DType) String() string {
	if d.name == "" {
		return Float64.name
	}
	return d.name
}

// Cast converts rows.  Float64 returns rows unchanged.
func (d DType) Cast(rows [][]float64) (any, error) {
	if d.cast == nil {
		return rows, nil
	}
	return d.cast(rows)
}

func toFloat32(rows [][]float64) (any, error) {
	out := make([][]float32, len(rows))
	for i, row := range rows {
		if row == nil {
			continue
		}
		out[i] = make([]float32, len(row))
		for j, v := range row {
			out[i][j] = float32(v)
		}
	}
	return out, nil
}

func toInt64(rows [][]float64) (any, error) {
	out := make([][]int64, len(rows))
	for i, row := range rows {
		if row == nil {
			continue
		}
		out[i] = make([]int64, len(row))
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Newf(errors.ErrCodeValidation,
					"cannot cast non-finite value at row %d column %d to int64", i, j)
			}
			out[i][j] = int64(v)
		}
	}
	return out, nil
}

// toBool treats NaN as true, like any non-zero value.
func toBool(rows [][]float64) (any, error) {
	out := make([][]bool, len(rows))
	for i, row := range rows {
		if row == nil {
			continue
		}
		out[i] = make([]bool, len(row))
		for j, v := range row {
			out[i][j] = v != 0
		}
	}
	return out, nil
}
