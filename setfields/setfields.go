/*
Package setfields refines the mesh around geometric regions to a target
level and then sets field values inside them.
*/
package setfields

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/hexamr/amr"
	"github.com/notargets/hexamr/fields"
	"github.com/notargets/hexamr/mesh"
)

// DefaultMaxIterations bounds the adapt cycles spent on one region
const DefaultMaxIterations = 10

type Box struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

type Sphere struct {
	Centre [3]float64 `json:"centre"`
	Radius float64    `json:"radius"`
}

// Cylinder is the solid of the given radius around the segment P1-P2
type Cylinder struct {
	P1     [3]float64 `json:"p1"`
	P2     [3]float64 `json:"p2"`
	Radius float64    `json:"radius"`
}

/*
Region selects the cells whose centre lies inside exactly one of Box, Sphere
or Cylinder. The cells are adapted to Level and then take FieldValues.
*/
type Region struct {
	Name        string             `json:"name"`
	Box         *Box               `json:"box,omitempty"`
	Sphere      *Sphere            `json:"sphere,omitempty"`
	Cylinder    *Cylinder          `json:"cylinder,omitempty"`
	Level       int                `json:"level"`
	FieldValues map[string]float64 `json:"fieldValues"`
}

type Config struct {
	DefaultFieldValues map[string]float64 `json:"defaultFieldValues"`
	Regions            []Region           `json:"regions"`
	MaxIterations      int                `json:"maxIterations"`
}

func vec(x [3]float64) r3.Vec { return r3.Vec{X: x[0], Y: x[1], Z: x[2]} }

func (rg Region) Validate() (err error) {
	nShapes := 0
	for _, set := range []bool{rg.Box != nil, rg.Sphere != nil, rg.Cylinder != nil} {
		if set {
			nShapes++
		}
	}
	if nShapes != 1 {
		err = multierr.Append(err, fmt.Errorf("%w: region %q has %d shapes, need exactly one",
			amr.ErrConfig, rg.Name, nShapes))
	}
	if rg.Level < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: region %q level %d should be >= 0",
			amr.ErrConfig, rg.Name, rg.Level))
	}
	if rg.Sphere != nil && rg.Sphere.Radius <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: region %q sphere radius %g should be > 0",
			amr.ErrConfig, rg.Name, rg.Sphere.Radius))
	}
	if rg.Cylinder != nil {
		if rg.Cylinder.Radius <= 0 {
			err = multierr.Append(err, fmt.Errorf("%w: region %q cylinder radius %g should be > 0",
				amr.ErrConfig, rg.Name, rg.Cylinder.Radius))
		}
		if rg.Cylinder.P1 == rg.Cylinder.P2 {
			err = multierr.Append(err, fmt.Errorf("%w: region %q cylinder has no axis",
				amr.ErrConfig, rg.Name))
		}
	}
	return
}

func (cfg Config) Validate() (err error) {
	if cfg.MaxIterations < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: maximum iterations %d should be >= 0",
			amr.ErrConfig, cfg.MaxIterations))
	}
	for _, rg := range cfg.Regions {
		err = multierr.Append(err, rg.Validate())
	}
	return
}

// Contains reports whether x lies inside the region, boundary included
func (rg Region) Contains(x [3]float64) bool {
	v := vec(x)
	switch {
	case rg.Box != nil:
		b := r3.NewBox(rg.Box.Min[0], rg.Box.Min[1], rg.Box.Min[2],
			rg.Box.Max[0], rg.Box.Max[1], rg.Box.Max[2])
		return b.Contains(v)
	case rg.Sphere != nil:
		return r3.Norm(r3.Sub(v, vec(rg.Sphere.Centre))) <= rg.Sphere.Radius
	case rg.Cylinder != nil:
		var (
			p1   = vec(rg.Cylinder.P1)
			axis = r3.Sub(vec(rg.Cylinder.P2), p1)
			d    = r3.Sub(v, p1)
			t    = r3.Dot(d, axis) / r3.Dot(axis, axis)
		)
		if t < 0 || t > 1 {
			return false
		}
		return r3.Norm(r3.Sub(d, r3.Scale(t, axis))) <= rg.Cylinder.Radius
	}
	return false
}

// Select returns the cells of m whose centre lies inside the region
func (rg Region) Select(m *mesh.PolyMesh) (cells []int) {
	for c, x := range m.CellCentres() {
		if rg.Contains(x) {
			cells = append(cells, c)
		}
	}
	return
}

/*
markRegion writes the error field driving one adapt cycle. Internal faces of
region cells below level mark both sides for refinement; a side above level
that is not marked is pushed under the unrefine threshold.
*/
func markRegion(m *mesh.PolyMesh, level int, cells, cellLevel []int, errField []float64) {
	var (
		cellFaces = m.Cells()
		nIF       = m.NInternalFaces()
	)
	for i := range errField {
		errField[i] = 0
	}
	for _, c := range cells {
		for _, f := range cellFaces[c] {
			if f >= nIF {
				continue
			}
			own, nei := m.Owner[f], m.Neighbour[f]
			if cellLevel[c] < level {
				errField[own], errField[nei] = 1, 1
			}
		}
	}
	for _, c := range cells {
		for _, f := range cellFaces[c] {
			if f >= nIF {
				continue
			}
			for _, side := range []int{m.Owner[f], m.Neighbour[f]} {
				if cellLevel[side] > level && errField[side] == 0 {
					errField[side] = -1
				}
			}
		}
	}
}

/*
Run sets the default field values, then adapts the mesh to every region in
turn and finally writes the region field values. The error field of ctrl is
overwritten. Collective.
*/
func Run(cfg Config, ctrl *amr.Controller, store *fields.Store, logger *zap.Logger) (err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err = cfg.Validate(); err != nil {
		return
	}
	maxIter := cfg.MaxIterations
	if maxIter == 0 {
		maxIter = DefaultMaxIterations
	}
	for name, v := range cfg.DefaultFieldValues {
		store.SetUniform(name, v)
	}
	errorName := ctrl.Config().ErrorField
	for _, rg := range cfg.Regions {
		var (
			nOld    = -1
			nRegion int
		)
		for iter := 0; iter < maxIter; iter++ {
			var (
				m       = ctrl.Engine().Mesh()
				cells   = rg.Select(m)
				errFld  = make([]float64, m.NCells)
				changed bool
			)
			nRegion = m.Comm.SumInt(len(cells))
			if nRegion == 0 || nRegion == nOld {
				break
			}
			nOld = nRegion
			markRegion(m, rg.Level, cells, ctrl.Engine().CellLevel(), errFld)
			if err = store.Set(errorName, errFld); err != nil {
				return
			}
			if changed, err = ctrl.Update(); err != nil {
				return fmt.Errorf("region %s: %w", rg.Name, err)
			}
			logger.Debug("adapted region",
				zap.String("region", rg.Name),
				zap.Int("iteration", iter),
				zap.Int("regionCells", nRegion),
				zap.Bool("changed", changed))
		}
		if m := ctrl.Engine().Mesh(); m.Comm.Rank() == 0 {
			logger.Sugar().Infof("Region %s has %d cells at level %d.", rg.Name, nRegion, rg.Level)
		}
	}
	return SetValues(cfg, store)
}

// SetValues writes the default field values where a field is missing, then
// the values of every region over the current mesh of store
func SetValues(cfg Config, store *fields.Store) (err error) {
	for name, v := range cfg.DefaultFieldValues {
		if _, err = store.Field(name); err != nil {
			store.SetUniform(name, v)
		}
	}
	for _, rg := range cfg.Regions {
		cells := rg.Select(store.Mesh())
		for name, v := range rg.FieldValues {
			var values []float64
			if values, err = store.Field(name); err != nil {
				return fmt.Errorf("region %s: %w", rg.Name, err)
			}
			for _, c := range cells {
				values[c] = v
			}
		}
	}
	return nil
}
