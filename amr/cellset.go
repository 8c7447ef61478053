package amr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"

	"github.com/notargets/hexamr/mesh"
	"github.com/notargets/hexamr/parallel"
)

/*
CellSet is a named flag per cell. A set without storage is empty: every
lookup on it is false, which lets the common case of no protected cells skip
the per cell checks.
*/
type CellSet struct {
	Name  string
	cells []bool
}

func NewCellSet(name string, nCells int) *CellSet {
	return &CellSet{
		Name:  name,
		cells: make([]bool, nCells),
	}
}

// Empty reports whether the set has no storage
func (s *CellSet) Empty() bool { return s == nil || len(s.cells) == 0 }
func (s *CellSet) Len() int    { return len(s.cells) }

func (s *CellSet) Get(c int) bool {
	if s.Empty() || c < 0 || c >= len(s.cells) {
		return false
	}
	return s.cells[c]
}

// Set marks c and reports whether it was unmarked before
func (s *CellSet) Set(c int) (changed bool) {
	changed = !s.cells[c]
	s.cells[c] = true
	return
}

func (s *CellSet) Unset(c int) { s.cells[c] = false }

// Clear drops the storage, leaving an empty set
func (s *CellSet) Clear() { s.cells = nil }

// Count returns the number of marked cells on this partition
func (s *CellSet) Count() (n int) {
	if s.Empty() {
		return
	}
	for _, v := range s.cells {
		if v {
			n++
		}
	}
	return
}

// Indices lists the marked cells in increasing order
func (s *CellSet) Indices() (cells []int) {
	if s.Empty() {
		return
	}
	for c, v := range s.cells {
		if v {
			cells = append(cells, c)
		}
	}
	return
}

func (s *CellSet) Copy() *CellSet {
	if s.Empty() {
		return &CellSet{Name: s.Name}
	}
	return &CellSet{
		Name:  s.Name,
		cells: append([]bool{}, s.cells...),
	}
}

// Remap moves the set onto the cells of a changed mesh. A new cell takes the
// flag of the old cell it came from; cells without one are unmarked. An
// empty set stays empty.
func (s *CellSet) Remap(mm *mesh.MeshMap) {
	if s.Empty() {
		return
	}
	cells := make([]bool, mm.NCells())
	for c, oc := range mm.CellMap {
		if oc >= 0 {
			cells[c] = s.cells[oc]
		}
	}
	s.cells = cells
}

// YAMLCellSetWriter writes cell sets as YAML files in a directory, one file
// per partition
type YAMLCellSetWriter struct {
	Dir  string
	Comm parallel.Comm
}

type cellSetFile struct {
	Name      string `json:"name"`
	Partition int    `json:"partition"`
	NCells    int    `json:"nCells"`
	Cells     []int  `json:"cells"`
}

func NewYAMLCellSetWriter(dir string, comm parallel.Comm) *YAMLCellSetWriter {
	if comm == nil {
		comm = parallel.Serial{}
	}
	return &YAMLCellSetWriter{Dir: dir, Comm: comm}
}

// Path returns the file a set of the given name is written to
func (w *YAMLCellSetWriter) Path(name string) string {
	if parallel.IsParallel(w.Comm) {
		return filepath.Join(w.Dir, fmt.Sprintf("processor%d", w.Comm.Rank()), name+".yaml")
	}
	return filepath.Join(w.Dir, name+".yaml")
}

func (w *YAMLCellSetWriter) WriteCellSet(set *CellSet) (err error) {
	var (
		path = w.Path(set.Name)
		data []byte
	)
	if data, err = yaml.Marshal(cellSetFile{
		Name:      set.Name,
		Partition: w.Comm.Rank(),
		NCells:    set.Count(),
		Cells:     set.Indices(),
	}); err != nil {
		return
	}
	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	return os.WriteFile(path, data, 0644)
}

// ReadCellSet reads a set written by YAMLCellSetWriter back as a list of cells
func ReadCellSet(path string) (name string, cells []int, err error) {
	var (
		data []byte
		csf  cellSetFile
	)
	if data, err = os.ReadFile(path); err != nil {
		return
	}
	if err = yaml.Unmarshal(data, &csf); err != nil {
		return
	}
	return csf.Name, csf.Cells, nil
}
