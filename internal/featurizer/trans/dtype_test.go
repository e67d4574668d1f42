package trans

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDType(t *testing.T) {
	cases := map[string]string{
		"":        "float64",
		"float":   "float64",
		"FLOAT32": "float32",
		"int":     "int64",
		"bool":    "bool",
	}
	for in, want := range cases {
		d, err := ParseDType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, d.String(), in)
	}
	_, err := ParseDType("complex128")
	assert.Error(t, err)
}

func TestDType_Cast(t *testing.T) {
	rows := [][]float64{{1.5, 0}, nil}

	v, err := Float64.Cast(rows)
	require.NoError(t, err)
	assert.Equal(t, rows, v)

	v, err = Int64.Cast(rows)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{1, 0}, nil}, v)

	v, err = Bool.Cast([][]float64{{math.NaN(), 0}})
	require.NoError(t, err)
	assert.Equal(t, [][]bool{{true, false}}, v)

	_, err = Int64.Cast([][]float64{{math.NaN()}})
	assert.Error(t, err)
}

func TestCustomDType(t *testing.T) {
	d := CustomDType("count", func(rows [][]float64) (any, error) { return len(rows), nil })
	v, err := d.Cast([][]float64{{1}, {2}})
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, "count", d.String())
}
