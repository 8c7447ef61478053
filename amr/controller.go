package amr

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/notargets/hexamr/mesh"
)

// Thresholds of one adapt cycle. Cells refine where the point averaged error
// exceeds lowerRefineLevel; split points unrefine where the largest error of
// their cells is below unrefineLevel.
const (
	lowerRefineLevel = 0.5
	unrefineLevel    = -0.5
)

// DefaultMaxCells leaves the number of cells unbounded
const DefaultMaxCells = math.MaxInt

/*
Config holds the adapt cycle settings. ErrorField names the cell field
driving the refinement and MaxRefinement is the highest level allowed per
cell. Strict makes level mismatches found after a mesh change fatal.
*/
type Config struct {
	ErrorField    string `json:"errorField"`
	MaxCells      int    `json:"maxCells"`
	NBufferLayers int    `json:"nBufferLayers"`
	MaxRefinement []int  `json:"maxRefinement"`
	Strict        bool   `json:"strict"`
}

// Validate reports every problem with the configuration for a partition of
// nCells cells
func (cfg Config) Validate(nCells int) (err error) {
	if cfg.ErrorField == "" {
		err = multierr.Append(err, fmt.Errorf("%w: no error field", ErrConfig))
	}
	if cfg.MaxCells <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: maximum number of cells %d should be > 0",
			ErrConfig, cfg.MaxCells))
	}
	if cfg.NBufferLayers < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: number of buffer layers %d should be >= 0",
			ErrConfig, cfg.NBufferLayers))
	}
	if len(cfg.MaxRefinement) != nCells {
		err = multierr.Append(err, fmt.Errorf("%w: have %d maximum refinement levels for %d cells",
			ErrConfig, len(cfg.MaxRefinement), nCells))
	}
	minLevel := math.MaxInt
	for _, l := range cfg.MaxRefinement {
		minLevel = min(minLevel, l)
	}
	if len(cfg.MaxRefinement) > 0 && minLevel <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: maximum refinement level %d should be > 0",
			ErrConfig, minLevel))
	}
	return
}

// UniformMaxRefinement gives every one of nCells cells the same maximum level
func UniformMaxRefinement(nCells, level int) (maxRefinement []int) {
	maxRefinement = make([]int, nCells)
	for i := range maxRefinement {
		maxRefinement[i] = level
	}
	return
}

// Controller runs adapt cycles on one partition
type Controller struct {
	cfg     Config
	engine  TopologyEngine
	fields  FieldStore
	balance BalanceEnforcer
	state   *State
	logger  *zap.Logger
}

/*
NewController checks the configuration, then computes the structural
protection of the mesh. A nonzero global protected count is logged and the
set is handed to writer, which may be nil. Collective.
*/
func NewController(cfg Config, engine TopologyEngine, fields FieldStore, writer CellSetWriter,
	logger *zap.Logger) (c *Controller, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := engine.Mesh()
	err = cfg.Validate(m.NCells)
	// A partition with a bad setting stops all of them
	bad := m.Comm.Or(err != nil)
	if err != nil {
		return nil, err
	}
	if bad {
		return nil, fmt.Errorf("%w: on another partition", ErrConfig)
	}
	c = &Controller{
		cfg:     cfg,
		engine:  engine,
		fields:  fields,
		balance: NewBalanceEnforcer(engine, logger),
		state:   NewState(engine, cfg.MaxRefinement),
		logger:  logger,
	}
	c.state.Strict = cfg.Strict
	protected, nProtected := StructuralProtection(m, c.state.Levels)
	c.state.Protected = protected
	if nProtected > 0 {
		infof(m, logger, "Detected %d cells that are protected from refinement. Writing these to cellSet %s.",
			nProtected, protected.Name)
		if writer != nil {
			if err = writer.WriteCellSet(protected); err != nil {
				return nil, err
			}
		}
	}
	return
}

func (c *Controller) Config() Config         { return c.cfg }
func (c *Controller) State() *State          { return c.state }
func (c *Controller) Engine() TopologyEngine { return c.engine }

/*
Update runs one adapt cycle: cells whose error crosses the refine threshold
are marked, grown by the buffer layers, limited by the cell budget and split;
then split points away from any marked cell and with an error below the
unrefine threshold are merged. hasChanged reports whether the mesh changed.
Collective.
*/
func (c *Controller) Update() (hasChanged bool, err error) {
	var (
		m        = c.engine.Mesh()
		vFld     []float64
		nTotal   = m.Comm.SumInt(m.NCells)
		refining = nTotal < c.cfg.MaxCells
	)
	if vFld, err = c.fields.Field(c.cfg.ErrorField); err != nil {
		return
	}
	refineCell := SelectRefineCandidates(m, vFld, lowerRefineLevel, math.Inf(1))

	if refining {
		for i := 0; i < c.cfg.NBufferLayers; i++ {
			ExtendMarkedCells(m, refineCell, c.state.MaxRefinement, c.state.Levels.CellLevels(), i == 0)
		}
		cellsToRefine := SelectRefineCells(m, c.balance, c.cfg.MaxCells, c.state.MaxRefinement,
			c.state.Levels, refineCell, c.state.Protected, c.logger)
		if m.Comm.SumInt(len(cellsToRefine)) > 0 {
			var mm *mesh.MeshMap
			if mm, err = Refine(c.engine, c.fields, c.state, cellsToRefine, c.logger); err != nil {
				return
			}
			// Some marked cells were not split because of the constraints;
			// the children of those that were stay marked
			refineCell = remapRefineCandidates(refineCell, mm)
			hasChanged = true
		}
	}

	// The error field has followed the mesh change
	m = c.engine.Mesh()
	if vFld, err = c.fields.Field(c.cfg.ErrorField); err != nil {
		return
	}
	pointsEdgesToUnrefine := SelectUnrefinePointsEdges(m, c.balance, unrefineLevel, refineCell,
		MaxCellField(m, vFld), c.logger)
	if m.Comm.SumInt(len(pointsEdgesToUnrefine)) > 0 {
		if _, err = Unrefine(c.engine, c.fields, c.state, pointsEdgesToUnrefine, c.logger); err != nil {
			return
		}
		hasChanged = true
	}
	return
}
