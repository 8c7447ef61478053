package amr

import (
	"go.uber.org/zap"
)

// BalanceEnforcer hands candidate sets to the engine's 2:1 consistency
// operations: refinement sets only grow, unrefinement sets only shrink
type BalanceEnforcer struct {
	Engine TopologyEngine
	Logger *zap.Logger
}

func NewBalanceEnforcer(engine TopologyEngine, logger *zap.Logger) BalanceEnforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return BalanceEnforcer{Engine: engine, Logger: logger}
}

// ConsistentRefinement returns the smallest balanced superset of cells
func (b BalanceEnforcer) ConsistentRefinement(cells []int) (consistent []int) {
	consistent = b.Engine.ConsistentRefinement(cells, true)
	b.Logger.Debug("consistent refinement",
		zap.Int("requested", len(cells)), zap.Int("consistent", len(consistent)))
	return
}

// ConsistentUnrefinement returns the balanced subset of split points (edges)
func (b BalanceEnforcer) ConsistentUnrefinement(splitPointsEdges []int) (consistent []int) {
	consistent = b.Engine.ConsistentUnrefinement(splitPointsEdges, false)
	b.Logger.Debug("consistent unrefinement",
		zap.Int("requested", len(splitPointsEdges)), zap.Int("consistent", len(consistent)))
	return
}
