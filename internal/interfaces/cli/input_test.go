package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadSMILESFile_Lines(t *testing.T) {
	path := writeInput(t, "mols.smi", "# ethanol and friends\nCCO ethanol\n\n  c1ccccc1\tbenzene\nCCN\n")
	got, err := ReadSMILESFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"CCO", "c1ccccc1", "CCN"}, got)
}

func TestReadSMILESFile_CSVHeader(t *testing.T) {
	path := writeInput(t, "mols.csv", "name,SMILES\nethanol,CCO\nblank,\namine,CCN\n")
	got, err := ReadSMILESFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"CCO", "CCN"}, got)
}

func TestReadSMILESFile_CSVNoHeader(t *testing.T) {
	path := writeInput(t, "mols.csv", "CCO,ethanol\nCCN,amine\n")
	got, err := ReadSMILESFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"CCO", "CCN"}, got)
}

func TestReadSMILESFile_CSVShortRow(t *testing.T) {
	path := writeInput(t, "mols.csv", "id,smiles\n1,CCO\n2\n")
	_, err := ReadSMILESFile(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestReadSMILESFile_Errors(t *testing.T) {
	_, err := ReadSMILESFile(filepath.Join(t.TempDir(), "missing.smi"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, err = ReadSMILESFile(writeInput(t, "mols.sdf", "CCO\n"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}
