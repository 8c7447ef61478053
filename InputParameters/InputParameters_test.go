package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/notargets/hexamr/amr"
)

var caseFile = []byte(`
title: "sod"
lattice:
  divisions: [8, 1, 1]
  cellSize: [0.125, 0.125, 0.125]
  maxLevel: 3
  patchTypes:
    xMin: wall
amr:
  errorField: error
  maxCells: 200
  nBufferLayers: 1
  maxRefinement: 2
  discontinuityFields: [rho]
nCycles: 4
fields:
  defaultFieldValues:
    rho: 0.125
    error: 1
  regions:
    - name: left
      box:
        min: [0, 0, 0]
        max: [0.5, 0.125, 0.125]
      level: 1
      fieldValues:
        rho: 1
`)

func TestParseCase(t *testing.T) {
	var cp CaseParameters
	require.NoError(t, cp.Parse(caseFile))
	assert.Equal(t, "sod", cp.Title)
	assert.Equal(t, [3]int{8, 1, 1}, cp.Lattice.Divisions)
	assert.Equal(t, "wall", cp.Lattice.PatchTypes["xMin"])
	assert.Equal(t, []string{"rho"}, cp.AMR.DiscontinuityFields)
	require.Len(t, cp.Fields.Regions, 1)
	rg := cp.Fields.Regions[0]
	require.NotNil(t, rg.Box)
	assert.Equal(t, [3]float64{0.5, 0.125, 0.125}, rg.Box.Max)
	assert.Nil(t, rg.Sphere)
	assert.NoError(t, cp.Validate())

	cfg := cp.ControllerConfig(8)
	assert.Equal(t, 200, cfg.MaxCells)
	assert.Equal(t, 1, cfg.NBufferLayers)
	assert.Equal(t, amr.UniformMaxRefinement(8, 2), cfg.MaxRefinement)
	assert.NoError(t, cfg.Validate(8))
}

func TestCaseDefaults(t *testing.T) {
	var cp CaseParameters
	require.NoError(t, cp.Parse([]byte(`
lattice: {divisions: [2, 2, 1], cellSize: [1, 1, 1], maxLevel: 1}
amr: {errorField: e, nBufferLayers: 0, maxRefinement: 1}
`)))
	require.NoError(t, cp.Validate())
	cfg := cp.ControllerConfig(4)
	assert.Equal(t, amr.DefaultMaxCells, cfg.MaxCells)
	assert.Zero(t, cfg.NBufferLayers)
}

func TestValidateCase(t *testing.T) {
	var cp CaseParameters
	require.NoError(t, cp.Parse([]byte(`
lattice: {divisions: [0, 1, 1], cellSize: [1, 1, 1], maxLevel: 2}
amr: {maxRefinement: 3}
nCycles: -1
fields:
  regions:
    - {name: nothing}
`)))
	err := cp.Validate()
	assert.ErrorIs(t, err, amr.ErrConfig)
	// lattice, errorField, nBufferLayers, maxRefinement, nCycles, region shape
	assert.Len(t, multierr.Errors(err), 6)
}
