package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ghodss/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/notargets/hexamr/InputParameters"
	"github.com/notargets/hexamr/amr"
)

const hexPrismMsh = `$MeshFormat
2.2 0 8
$EndMeshFormat
$Nodes
10
1 0 0 0
2 1 0 0
3 1 1 0
4 0 1 0
5 0 0 1
6 1 0 1
7 1 1 1
8 0 1 1
9 2 0 0
10 2 0 1
$EndNodes
$Elements
2
1 5 2 0 1 1 2 3 4 5 6 7 8
2 6 2 0 1 2 9 3 6 10 7
$EndElements
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func parseCase(t *testing.T, content string) *InputParameters.CaseParameters {
	t.Helper()
	cp := &InputParameters.CaseParameters{}
	require.NoError(t, cp.Parse([]byte(content)))
	require.NoError(t, cp.Validate())
	return cp
}

func TestRunAdapt(t *testing.T) {
	cp := parseCase(t, `
title: shock
lattice: {divisions: [8, 1, 1], cellSize: [1, 1, 1], maxLevel: 2}
amr:
  errorField: error
  nBufferLayers: 0
  maxRefinement: 1
  discontinuityFields: [rho]
fields:
  defaultFieldValues: {rho: 0.125}
  regions:
    - {name: left, box: {min: [0, 0, 0], max: [4, 1, 1]}, fieldValues: {rho: 1}}
`)
	outDir := filepath.Join(t.TempDir(), "out")
	sum, err := RunAdapt(cp, outDir, zaptest.NewLogger(t))
	require.NoError(t, err)
	// The two cells on either side of the jump and their point neighbours split
	assert.Equal(t, 2, sum.Cycles)
	assert.True(t, sum.Converged)
	assert.Equal(t, 36, sum.Cells)
	assert.Equal(t, map[int]int{0: 4, 1: 32}, sum.LevelCounts)
	assert.Equal(t, 0.125, sum.FieldRanges["rho.min"])
	assert.Equal(t, 1., sum.FieldRanges["rho.max"])

	data, err := os.ReadFile(filepath.Join(outDir, "adaptSummary.yaml"))
	require.NoError(t, err)
	var written AdaptSummary
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, sum, written)
}

func TestRunAdaptCycleLimit(t *testing.T) {
	cp := parseCase(t, `
lattice: {divisions: [8, 1, 1], cellSize: [1, 1, 1], maxLevel: 2}
amr: {errorField: error, nBufferLayers: 0, maxRefinement: 1, discontinuityFields: [rho]}
nCycles: 1
fields:
  defaultFieldValues: {rho: 0.125}
  regions:
    - {name: left, box: {min: [0, 0, 0], max: [4, 1, 1]}, fieldValues: {rho: 1}}
`)
	sum, err := RunAdapt(cp, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Cycles)
	assert.False(t, sum.Converged)
	assert.Equal(t, 36, sum.Cells)
}

func TestRunAdaptMissingErrorField(t *testing.T) {
	cp := parseCase(t, `
lattice: {divisions: [2, 1, 1], cellSize: [1, 1, 1], maxLevel: 1}
amr: {errorField: error, nBufferLayers: 0, maxRefinement: 1}
`)
	_, err := RunAdapt(cp, "", nil)
	assert.Error(t, err)
}

func TestRunSetRefinedFields(t *testing.T) {
	cp := parseCase(t, `
lattice: {divisions: [4, 1, 1], cellSize: [1, 1, 1], maxLevel: 3}
amr: {errorField: error, nBufferLayers: 1, maxRefinement: 2}
fields:
  defaultFieldValues: {T: 300}
  regions:
    - {name: block, box: {min: [0, 0, 0], max: [1, 1, 1]}, level: 2, fieldValues: {T: 1000}}
`)
	sum, err := RunSetRefinedFields(cp, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sum.LevelCounts[2], 64)
	assert.Equal(t, 300., sum.FieldRanges["T.min"])
	assert.Equal(t, 1000., sum.FieldRanges["T.max"])
}

func TestRunProtect(t *testing.T) {
	m, err := readGmsh(writeFile(t, "hexPrism.msh", hexPrismMsh))
	require.NoError(t, err)
	assert.Equal(t, 1, protectedCount(m))

	cellLevel, pointLevel := make([]int, m.NCells), make([]int, m.NPoints())
	outDir := t.TempDir()
	rep, err := RunProtect(m, cellLevel, pointLevel, 2, outDir)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, rep.Cells)
	assert.Equal(t, []int{0, 1}, rep.Protected)
	assert.Equal(t, []int{0, 1}, rep.Unrefineable)
	assert.Equal(t, 1, rep.TotalProtected)
	name, cells, err := amr.ReadCellSet(filepath.Join(outDir, "processor1", amr.ProtectedCellSetName+".yaml"))
	require.NoError(t, err)
	assert.Equal(t, amr.ProtectedCellSetName, name)
	assert.Equal(t, []int{0}, cells)

	rep, err = RunProtect(m, cellLevel, pointLevel, 1, "")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, rep.Protected)

	_, err = RunProtect(m, cellLevel, pointLevel, 3, "")
	assert.Error(t, err)
	_, err = RunProtect(m, cellLevel[:1], pointLevel, 1, "")
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	rootCmd.SetArgs([]string{"mesh", "-F", writeFile(t, "hexPrism.msh", hexPrismMsh)})
	assert.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"mesh", "-F", ""})
	assert.Error(t, rootCmd.Execute())
}
