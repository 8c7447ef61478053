// Package fields keeps the cell fields of a mesh and carries them across
// topology changes.
package fields

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/hexamr/mesh"
	"github.com/notargets/hexamr/parallel"
)

var ErrUnknownField = errors.New("unknown field")

// Store holds named cell fields over one mesh (one partition of it)
type Store struct {
	mesh   *mesh.PolyMesh
	values map[string][]float64
}

func NewStore(m *mesh.PolyMesh) *Store {
	return &Store{
		mesh:   m,
		values: make(map[string][]float64),
	}
}

func (s *Store) Mesh() *mesh.PolyMesh { return s.mesh }

// Names lists the fields in alphabetical order
func (s *Store) Names() (names []string) {
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// Set adds or replaces a field
func (s *Store) Set(name string, values []float64) error {
	if len(values) != s.mesh.NCells {
		return fmt.Errorf("field %s has %d values for %d cells", name, len(values), s.mesh.NCells)
	}
	s.values[name] = values
	return nil
}

// SetUniform adds or replaces a field holding v in every cell
func (s *Store) SetUniform(name string, v float64) {
	values := make([]float64, s.mesh.NCells)
	for i := range values {
		values[i] = v
	}
	s.values[name] = values
}

// Field returns the live values of a field; changes to them are visible to
// the store
func (s *Store) Field(name string) ([]float64, error) {
	values, ok := s.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return values, nil
}

// PatchInternalField returns the values of the cells next to the faces of a patch
func (s *Store) PatchInternalField(name string, patch int) (pif []float64, err error) {
	values, err := s.Field(name)
	if err != nil {
		return nil, err
	}
	p := s.mesh.Patches[patch]
	pif = make([]float64, p.Size)
	for i := range pif {
		pif[i] = values[s.mesh.Owner[p.Start+i]]
	}
	return
}

// PatchNeighbourFields returns, for every coupled patch, the values of the
// cells on the other side of its faces. Collective.
func (s *Store) PatchNeighbourFields(name string) (pnf map[int][]float64, err error) {
	values, err := s.Field(name)
	if err != nil {
		return nil, err
	}
	var (
		nIF = s.mesh.NInternalFaces()
		nei = mesh.NeighbourCellValues(s.mesh, values)
	)
	pnf = make(map[int][]float64)
	for pi, p := range s.mesh.Patches {
		if p.Coupled() {
			pnf[pi] = nei[p.Start-nIF : p.Start-nIF+p.Size]
		}
	}
	return
}

/*
UpdateMesh moves every field onto a changed mesh. A cell made by splitting
takes the value of its parent, a cell made by merging takes the mean of the
merged cells, and a cell with no predecessor starts at zero.
*/
func (s *Store) UpdateMesh(m *mesh.PolyMesh, mm *mesh.MeshMap) error {
	if mm.NCells() != m.NCells {
		return fmt.Errorf("map of %d cells for a mesh of %d cells", mm.NCells(), m.NCells)
	}
	for name, old := range s.values {
		if len(old) != mm.NOldCells {
			return fmt.Errorf("field %s has %d values, map expects %d", name, len(old), mm.NOldCells)
		}
		values := make([]float64, mm.NCells())
		for c, oc := range mm.CellMap {
			if merged, ok := mm.CellsFromCells[c]; ok && len(merged) > 0 {
				parts := make([]float64, len(merged))
				for i, o := range merged {
					parts[i] = old[o]
				}
				values[c] = floats.Sum(parts) / float64(len(parts))
				continue
			}
			if oc >= 0 {
				values[c] = old[oc]
			}
		}
		s.values[name] = values
	}
	s.mesh = m
	return nil
}

// Range returns the global minimum and maximum of a field. Collective.
func (s *Store) Range(name string) (lo, hi float64, err error) {
	values, err := s.Field(name)
	if err != nil {
		return
	}
	comm := s.mesh.Comm
	if len(values) > 0 {
		lo, hi = floats.Min(values), floats.Max(values)
	}
	// Exchange with every partition to reduce the extremes
	send := make(map[int][]float64)
	for k := 0; k < comm.Size(); k++ {
		if k != comm.Rank() {
			send[k] = []float64{lo, hi, float64(len(values))}
		}
	}
	first := len(values) == 0
	for _, r := range parallel.ExchangeSlices(comm, send) {
		if r[2] == 0 {
			continue
		}
		if first {
			lo, hi, first = r[0], r[1], false
			continue
		}
		lo, hi = min(lo, r[0]), max(hi, r[1])
	}
	return
}
