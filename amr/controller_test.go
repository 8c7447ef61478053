package amr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/notargets/hexamr/fields"
	"github.com/notargets/hexamr/hexref"
	"github.com/notargets/hexamr/mesh"
)

func newStore(t *testing.T, m *mesh.PolyMesh, vals map[string][]float64) *fields.Store {
	s := fields.NewStore(m)
	for name, v := range vals {
		assert.NoError(t, s.Set(name, v))
	}
	return s
}

func allCells(name string, nCells int) *CellSet {
	s := NewCellSet(name, nCells)
	for c := 0; c < nCells; c++ {
		s.Set(c)
	}
	return s
}

// brokenEngine reports a 2:1 violation after every change
type brokenEngine struct {
	*hexref.Engine
}

func (brokenEngine) CheckRefinementLevels() error { return errors.New("face 3 has cell levels 0 and 2") }

// zeroPointLevels hides the point levels, so hanging points look like anchors
type zeroPointLevels struct {
	*hexref.Engine
}

func (z zeroPointLevels) PointLevel() []int { return make([]int, z.Mesh().NPoints()) }

func TestBudgetedCandidates(t *testing.T) {
	e := lineEngine(t, 4, 2, false)
	refineEngine(t, e, 0)
	var (
		m             = e.Mesh()
		cellLevel     = e.CellLevel()
		candidates    = allCells(RefineCellSetName, m.NCells)
		none          = &CellSet{}
		maxRefinement = UniformMaxRefinement(m.NCells, 2)
	)
	require.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0}, cellLevel)

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		BudgetedCandidates(m, 100, maxRefinement, cellLevel, candidates, none))
	// Over budget the coarsest level goes first, and a level is taken whole
	assert.Equal(t, []int{8, 9, 10},
		BudgetedCandidates(m, 2, maxRefinement, cellLevel, candidates, none))
	assert.Equal(t, []int{8, 9, 10, 0, 1, 2, 3, 4, 5, 6, 7},
		BudgetedCandidates(m, 3, maxRefinement, cellLevel, candidates, none))

	maxRefinement[8] = 0
	assert.Equal(t, []int{9},
		BudgetedCandidates(m, 0, maxRefinement, cellLevel, candidates, cellSetOf("", m.NCells, 10)))
}

func TestSelectRefineCellsSkipsProtection(t *testing.T) {
	e := lineEngine(t, 3, 2, false)
	refineEngine(t, e, 0)
	var (
		m       = e.Mesh()
		logger  = zaptest.NewLogger(t)
		balance = NewBalanceEnforcer(e, logger)
		levels  = NewLevelTracker(e.CellLevel(), e.PointLevel())
	)
	cells := SelectRefineCells(m, balance, DefaultMaxCells, UniformMaxRefinement(m.NCells, 2), levels,
		allCells(RefineCellSetName, m.NCells), cellSetOf(ProtectedCellSetName, m.NCells, 8), logger)
	assert.Equal(t, []int{0, 2, 4, 6, 9}, cells)

	// Balance adds the coarse neighbours of a finer request
	assert.Equal(t, []int{1, 8}, balance.ConsistentRefinement([]int{1}))
}

func TestSelectUnrefinePoints(t *testing.T) {
	e := lineEngine(t, 3, 2, false)
	refineEngine(t, e, 0)
	var (
		m       = e.Mesh()
		logger  = zaptest.NewLogger(t)
		balance = NewBalanceEnforcer(e, logger)
		low     = make([]float64, m.NPoints())
		edge    = make([]float64, m.NPoints())
	)
	for p := range low {
		low[p], edge[p] = -1, unrefineLevel
	}
	splits := e.SplitPointsEdges()
	require.Len(t, splits, 1)

	unmarked := NewCellSet(RefineCellSetName, m.NCells)
	assert.Equal(t, splits, SelectUnrefinePointsEdges(m, balance, unrefineLevel, unmarked, low, logger))
	assert.Empty(t, SelectUnrefinePointsEdges(m, balance, unrefineLevel, unmarked, edge, logger))
	assert.Empty(t, SelectUnrefinePointsEdges(m, balance, unrefineLevel,
		cellSetOf(RefineCellSetName, m.NCells, 0), low, logger))
}

func TestSelectUnrefineEdges(t *testing.T) {
	e := lineEngine(t, 2, 2, true)
	refineEngine(t, e, 0)
	var (
		m       = e.Mesh()
		logger  = zaptest.NewLogger(t)
		balance = NewBalanceEnforcer(e, logger)
		pFld    = make([]float64, m.NPoints())
	)
	splits := e.SplitPointsEdges()
	require.Len(t, splits, 1)
	// One free end is enough
	pFld[m.Edges()[splits[0]].GetVertices(false)[1]] = -1
	unmarked := NewCellSet(RefineCellSetName, m.NCells)
	assert.Equal(t, splits, SelectUnrefinePointsEdges(m, balance, unrefineLevel, unmarked, pFld, logger))
	assert.Empty(t, SelectUnrefinePointsEdges(m, balance, unrefineLevel,
		cellSetOf(RefineCellSetName, m.NCells, 3), pFld, logger))
}

func TestRemapRefineCandidates(t *testing.T) {
	e := lineEngine(t, 3, 2, false)
	mm := refineEngine(t, e, 1)
	remapped := remapRefineCandidates(cellSetOf(RefineCellSetName, 3, 0), mm)
	assert.Equal(t, RefineCellSetName, remapped.Name)
	assert.Equal(t, []int{0, 2, 3, 4, 5, 6, 7, 8}, remapped.Indices())
}

func TestRefineUnrefineRemap(t *testing.T) {
	var (
		e      = lineEngine(t, 1, 2, false)
		logger = zaptest.NewLogger(t)
		store  = newStore(t, e.Mesh(), map[string][]float64{"T": {3}})
		st     = NewState(e, UniformMaxRefinement(1, 2))
	)
	st.Protected = cellSetOf(ProtectedCellSetName, 1, 0)

	mm, err := Refine(e, store, st, []int{0}, logger)
	require.NoError(t, err)
	assert.Equal(t, 1, mm.NOldCells)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1}, st.Levels.CellLevels())
	assert.Equal(t, e.CellLevel(), st.Levels.CellLevels())
	assert.Equal(t, e.PointLevel(), st.Levels.PointLevels())
	assert.Equal(t, 8, st.Protected.Count())
	assert.Equal(t, UniformMaxRefinement(8, 2), st.MaxRefinement)
	T, err := store.Field("T")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3, 3, 3, 3, 3, 3, 3}, T)

	st.Protected = cellSetOf(ProtectedCellSetName, 8, 5)
	mm, err = Unrefine(e, store, st, e.SplitPointsEdges(), logger)
	require.NoError(t, err)
	assert.Equal(t, 8, mm.NOldCells)
	assert.Equal(t, []int{0}, st.Levels.CellLevels())
	assert.Equal(t, e.PointLevel(), st.Levels.PointLevels())
	// The merged cell takes the flag of the first child
	assert.False(t, st.Protected.Get(0))
	assert.Equal(t, 1, e.Mesh().NCells)
}

func TestRefineUnrefineRemapTwoDimensional(t *testing.T) {
	var (
		e      = lineEngine(t, 2, 2, true)
		logger = zaptest.NewLogger(t)
		store  = newStore(t, e.Mesh(), map[string][]float64{"T": {1, 2}})
		st     = NewState(e, UniformMaxRefinement(2, 2))
	)
	_, err := Refine(e, store, st, []int{1}, logger)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1, 1, 1}, st.Levels.CellLevels())
	assert.Equal(t, e.PointLevel(), st.Levels.PointLevels())

	_, err = Unrefine(e, store, st, e.SplitPointsEdges(), logger)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, st.Levels.CellLevels())
	assert.Equal(t, e.PointLevel(), st.Levels.PointLevels())
	T, _ := store.Field("T")
	assert.Equal(t, []float64{1, 2}, T)
}

func TestLevelMismatchPolicy(t *testing.T) {
	var (
		core, logs = observer.New(zap.WarnLevel)
		logger     = zap.New(core)
		e          = brokenEngine{lineEngine(t, 2, 2, false)}
		store      = newStore(t, e.Mesh(), nil)
		st         = NewState(e, UniformMaxRefinement(2, 2))
	)
	_, err := Refine(e, store, st, []int{0}, logger)
	assert.NoError(t, err)
	assert.Equal(t, 1, logs.Len())

	st.Strict = true
	_, err = Refine(e, store, st, []int{0}, logger)
	assert.ErrorIs(t, err, ErrLevelMismatch)
	assert.Equal(t, 2, logs.Len())
}

func TestControllerConfig(t *testing.T) {
	e := lineEngine(t, 3, 2, false)
	store := newStore(t, e.Mesh(), nil)
	_, err := NewController(Config{MaxCells: 0, NBufferLayers: -1, MaxRefinement: []int{1, 0}},
		e, store, nil, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrConfig)
	assert.Len(t, multierr.Errors(err), 5)

	good := Config{ErrorField: "error", MaxCells: DefaultMaxCells, MaxRefinement: UniformMaxRefinement(3, 1)}
	assert.NoError(t, good.Validate(3))
	good.MaxCells = -4
	assert.ErrorIs(t, good.Validate(3), ErrConfig)

	// Nothing was touched
	assert.Equal(t, 3, e.Mesh().NCells)
}

func lineController(t *testing.T, n int, twoD bool, cfg Config, vFld []float64) (*Controller, *hexref.Engine, *fields.Store) {
	t.Helper()
	e := lineEngine(t, n, 2, twoD)
	store := newStore(t, e.Mesh(), map[string][]float64{"error": vFld})
	cfg.ErrorField = "error"
	if cfg.MaxCells == 0 {
		cfg.MaxCells = DefaultMaxCells
	}
	if cfg.MaxRefinement == nil {
		cfg.MaxRefinement = UniformMaxRefinement(n, 1)
	}
	c, err := NewController(cfg, e, store, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, c.State().Protected.Empty())
	return c, e, store
}

func TestUpdateRefinesMarkedCube(t *testing.T) {
	const N = 5
	c, e, store := lineController(t, N, false, Config{NBufferLayers: 1}, []float64{1, 0, 0, 0, 0})
	changed, err := c.Update()
	require.NoError(t, err)
	assert.True(t, changed)
	// Cubes 0 and 1 split into 8 each
	assert.Equal(t, N+14, e.Mesh().NCells)
	want := UniformMaxRefinement(N+14, 1)
	want[N+11], want[N+12], want[N+13] = 0, 0, 0
	assert.Equal(t, want, e.CellLevel())
	assert.Equal(t, want, c.State().Levels.CellLevels())
	assert.NoError(t, e.CheckRefinementLevels())
	T, _ := store.Field("error")
	assert.Equal(t, 1., T[0])
	assert.Equal(t, 0., T[8])

	// At the maximum level nothing more happens
	changed, err = c.Update()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, N+14, e.Mesh().NCells)

	// A low error everywhere merges the cubes back
	store.SetUniform("error", -1)
	changed, err = c.Update()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, N, e.Mesh().NCells)
	assert.Equal(t, make([]int, N), c.State().Levels.CellLevels())
	assert.Empty(t, e.SplitPointsEdges())
}

func TestUpdateNoOp(t *testing.T) {
	for _, v := range []float64{0, -1} {
		c, e, _ := lineController(t, 4, false, Config{NBufferLayers: 2}, []float64{v, v, v, v})
		nPoints := e.Mesh().NPoints()
		changed, err := c.Update()
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, 4, e.Mesh().NCells)
		assert.Equal(t, nPoints, e.Mesh().NPoints())
	}
}

func TestUpdateBudget(t *testing.T) {
	const N = 5
	// Room for a single split; the whole coarsest level is taken
	c, e, _ := lineController(t, N, false, Config{NBufferLayers: 1, MaxCells: N + 7}, []float64{1, 0, 0, 0, 0})
	changed, err := c.Update()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, N+14, e.Mesh().NCells)

	changed, err = c.Update()
	require.NoError(t, err)
	assert.False(t, changed)

	c, e, _ = lineController(t, N, false, Config{NBufferLayers: 1, MaxCells: N}, []float64{1, 0, 0, 0, 0})
	changed, err = c.Update()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, N, e.Mesh().NCells)
}

func TestUpdateTwoDimensional(t *testing.T) {
	c, e, store := lineController(t, 4, true, Config{NBufferLayers: 1}, []float64{1, 0, 0, 0})
	changed, err := c.Update()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 10, e.Mesh().NCells)

	store.SetUniform("error", -1)
	changed, err = c.Update()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 4, e.Mesh().NCells)
	assert.Equal(t, e.PointLevel(), c.State().Levels.PointLevels())
}

func TestUpdateUnknownField(t *testing.T) {
	e := lineEngine(t, 2, 2, false)
	c, err := NewController(Config{ErrorField: "missing", MaxCells: DefaultMaxCells,
		MaxRefinement: UniformMaxRefinement(2, 1)}, e, newStore(t, e.Mesh(), nil), nil, nil)
	require.NoError(t, err)
	_, err = c.Update()
	assert.ErrorIs(t, err, fields.ErrUnknownField)
}

func TestProtectedCellsKeepTheirLevel(t *testing.T) {
	base := lineEngine(t, 3, 2, false)
	refineEngine(t, base, 0)
	var (
		e      = zeroPointLevels{base}
		dir    = t.TempDir()
		writer = NewYAMLCellSetWriter(dir, nil)
		store  = newStore(t, e.Mesh(), map[string][]float64{"error": make([]float64, 10)})
	)
	store.SetUniform("error", 1)
	c, err := NewController(Config{ErrorField: "error", MaxCells: DefaultMaxCells,
		MaxRefinement: UniformMaxRefinement(10, 2)}, e, store, writer, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []int{8}, c.State().Protected.Indices())
	_, cells, err := ReadCellSet(writer.Path(ProtectedCellSetName))
	require.NoError(t, err)
	assert.Equal(t, []int{8}, cells)

	changed, err := c.Update()
	require.NoError(t, err)
	assert.True(t, changed)
	// Children 0, 2, 4, 6 and the far cube split; the rest stays
	assert.Equal(t, 10+5*7, e.Mesh().NCells)
	protected := c.State().Protected.Indices()
	require.Len(t, protected, 1)
	assert.Equal(t, 0, e.CellLevel()[protected[0]])
}
