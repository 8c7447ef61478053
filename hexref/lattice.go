// Package hexref is a refinement engine for meshes built from an axis aligned
// block of hexahedra. Every base block is the root of an octree (a quadtree
// in two dimensional mode) whose leaves are the mesh cells.
package hexref

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/notargets/hexamr/mesh"
)

var ErrRefinement = errors.New("refinement")

// Patch names of the six block sides, in boundary face order
var SideNames = [6]string{"xMin", "xMax", "yMin", "yMax", "zMin", "zMax"}

// Config describes the base block. CellSize holds the edge lengths of one
// base cell. TwoD refines in x and y only and makes the z sides empty.
type Config struct {
	Divisions  [3]int            `json:"divisions"`
	Origin     [3]float64        `json:"origin"`
	CellSize   [3]float64        `json:"cellSize"`
	MaxLevel   int               `json:"maxLevel"`
	TwoD       bool              `json:"twoD"`
	PatchTypes map[string]string `json:"patchTypes"`
}

func (cfg Config) Validate() (err error) {
	for d := 0; d < 3; d++ {
		if cfg.Divisions[d] < 1 {
			return fmt.Errorf("divisions must be positive, have %v", cfg.Divisions)
		}
		if cfg.CellSize[d] <= 0 {
			return fmt.Errorf("cell size must be positive, have %v", cfg.CellSize)
		}
	}
	if cfg.MaxLevel < 1 || cfg.MaxLevel > 16 {
		return fmt.Errorf("max level must be in [1,16], have %d", cfg.MaxLevel)
	}
	if cfg.TwoD && cfg.Divisions[2] != 1 {
		return fmt.Errorf("two dimensional lattice needs one cell in z, have %d", cfg.Divisions[2])
	}
	for name := range cfg.PatchTypes {
		found := false
		for _, side := range SideNames {
			found = found || side == name
		}
		if !found {
			return fmt.Errorf("unknown patch %q", name)
		}
	}
	return
}

func (cfg Config) patchType(side int) string {
	if pt, ok := cfg.PatchTypes[SideNames[side]]; ok {
		return pt
	}
	if cfg.TwoD && side >= 4 {
		return mesh.PatchEmpty
	}
	return mesh.PatchGeneric
}

// cellKey locates a cell of the given level by its index along each axis at
// that level. In two dimensional mode K stays a base level index.
type cellKey struct {
	Level, I, J, K int
}

type lattice struct {
	cfg  Config
	unit int // Lattice steps per base cell edge
}

func newLattice(cfg Config) lattice {
	return lattice{cfg: cfg, unit: 1 << cfg.MaxLevel}
}

func (lt lattice) nDims() int {
	if lt.cfg.TwoD {
		return 2
	}
	return 3
}

func (lt lattice) index(k cellKey, d int) int {
	return [3]int{k.I, k.J, k.K}[d]
}

func (lt lattice) withIndex(k cellKey, d, v int) cellKey {
	switch d {
	case 0:
		k.I = v
	case 1:
		k.J = v
	default:
		k.K = v
	}
	return k
}

// span returns the lattice box [lo, hi) of a cell
func (lt lattice) span(k cellKey) (lo, hi [3]int) {
	s := lt.unit >> k.Level
	for d := 0; d < 3; d++ {
		step := s
		if d >= lt.nDims() {
			step = lt.unit
		}
		lo[d] = lt.index(k, d) * step
		hi[d] = lo[d] + step
	}
	return
}

func (lt lattice) inDomain(k cellKey) bool {
	for d := 0; d < 3; d++ {
		n := lt.cfg.Divisions[d]
		if d < lt.nDims() {
			n <<= k.Level
		}
		if i := lt.index(k, d); i < 0 || i >= n {
			return false
		}
	}
	return true
}

func (lt lattice) parent(k cellKey) cellKey {
	p := cellKey{Level: k.Level - 1, I: k.I >> 1, J: k.J >> 1, K: k.K}
	if !lt.cfg.TwoD {
		p.K = k.K >> 1
	}
	return p
}

// children are ordered x fastest
func (lt lattice) children(k cellKey) (ch []cellKey) {
	nz := 2
	if lt.cfg.TwoD {
		nz = 1
	}
	for dz := 0; dz < nz; dz++ {
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				c := cellKey{Level: k.Level + 1, I: 2*k.I + dx, J: 2*k.J + dy, K: k.K}
				if !lt.cfg.TwoD {
					c.K = 2*k.K + dz
				}
				ch = append(ch, c)
			}
		}
	}
	return
}

func (lt lattice) nChildren() int {
	return 1 << lt.nDims()
}

// corners of a cell, x fastest
func (lt lattice) corners(k cellKey) (cs [8][3]int) {
	lo, hi := lt.span(k)
	var n int
	for _, z := range [2]int{lo[2], hi[2]} {
		for _, y := range [2]int{lo[1], hi[1]} {
			for _, x := range [2]int{lo[0], hi[0]} {
				cs[n] = [3]int{x, y, z}
				n++
			}
		}
	}
	return
}

// centre is the lattice point shared by all children of k
func (lt lattice) centre(k cellKey) (c [3]int) {
	lo, hi := lt.span(k)
	for d := 0; d < 3; d++ {
		c[d] = (lo[d] + hi[d]) / 2
	}
	return
}

// pointLevel is the level of the coarsest cell that can have p as a corner
func (lt lattice) pointLevel(p [3]int) (level int) {
	for d := 0; d < lt.nDims(); d++ {
		if p[d]%lt.unit == 0 {
			continue
		}
		level = max(level, lt.cfg.MaxLevel-bits.TrailingZeros(uint(p[d])))
	}
	return
}

func (lt lattice) position(p [3]int) (x [3]float64) {
	for d := 0; d < 3; d++ {
		x[d] = lt.cfg.Origin[d] + float64(p[d])/float64(lt.unit)*lt.cfg.CellSize[d]
	}
	return
}

// baseCells lists the level 0 cells, x fastest
func (lt lattice) baseCells() (cells []cellKey) {
	div := lt.cfg.Divisions
	for k := 0; k < div[2]; k++ {
		for j := 0; j < div[1]; j++ {
			for i := 0; i < div[0]; i++ {
				cells = append(cells, cellKey{I: i, J: j, K: k})
			}
		}
	}
	return
}
