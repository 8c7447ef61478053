package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"
	"go.uber.org/multierr"

	"github.com/notargets/hexamr/amr"
	"github.com/notargets/hexamr/hexref"
	"github.com/notargets/hexamr/setfields"
)

// AMRParameters are the adapt cycle settings of a case. A missing MaxCells
// leaves the cell count unbounded; NBufferLayers has no default.
type AMRParameters struct {
	ErrorField          string   `json:"errorField"`
	MaxCells            *int     `json:"maxCells,omitempty"`
	NBufferLayers       *int     `json:"nBufferLayers"`
	MaxRefinement       int      `json:"maxRefinement"`
	DiscontinuityFields []string `json:"discontinuityFields"`
	Strict              bool     `json:"strict"`
}

// Parameters obtained from the YAML case file
type CaseParameters struct {
	Title   string           `json:"title"`
	Lattice hexref.Config    `json:"lattice"`
	AMR     AMRParameters    `json:"amr"`
	Fields  setfields.Config `json:"fields"`
	NCycles int              `json:"nCycles"`
}

func (cp *CaseParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, cp)
}

// Validate reports every problem of the case that can be found before the
// mesh is built
func (cp *CaseParameters) Validate() (err error) {
	if e := cp.Lattice.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("%w: lattice: %w", amr.ErrConfig, e))
	}
	if cp.AMR.ErrorField == "" {
		err = multierr.Append(err, fmt.Errorf("%w: amr.errorField is required", amr.ErrConfig))
	}
	if cp.AMR.NBufferLayers == nil {
		err = multierr.Append(err, fmt.Errorf("%w: amr.nBufferLayers is required", amr.ErrConfig))
	}
	if cp.AMR.MaxRefinement <= 0 || cp.AMR.MaxRefinement > cp.Lattice.MaxLevel {
		err = multierr.Append(err, fmt.Errorf("%w: amr.maxRefinement %d should be in [1,%d]",
			amr.ErrConfig, cp.AMR.MaxRefinement, cp.Lattice.MaxLevel))
	}
	if cp.NCycles < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: nCycles %d should be >= 0", amr.ErrConfig, cp.NCycles))
	}
	err = multierr.Append(err, cp.Fields.Validate())
	return
}

// ControllerConfig builds the controller settings for a partition of nCells
// cells
func (cp *CaseParameters) ControllerConfig(nCells int) (cfg amr.Config) {
	cfg = amr.Config{
		ErrorField:    cp.AMR.ErrorField,
		MaxCells:      amr.DefaultMaxCells,
		MaxRefinement: amr.UniformMaxRefinement(nCells, cp.AMR.MaxRefinement),
		Strict:        cp.AMR.Strict,
	}
	if cp.AMR.MaxCells != nil {
		cfg.MaxCells = *cp.AMR.MaxCells
	}
	if cp.AMR.NBufferLayers != nil {
		cfg.NBufferLayers = *cp.AMR.NBufferLayers
	}
	return
}

func (cp *CaseParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", cp.Title)
	fmt.Printf("%v\t\t= Divisions\n", cp.Lattice.Divisions)
	fmt.Printf("%v\t= Cell Size\n", cp.Lattice.CellSize)
	fmt.Printf("[%d]\t\t\t= Max Level\n", cp.Lattice.MaxLevel)
	fmt.Printf("[%s]\t\t\t= Error Field\n", cp.AMR.ErrorField)
	if cp.AMR.MaxCells != nil {
		fmt.Printf("[%d]\t\t\t= Max Cells\n", *cp.AMR.MaxCells)
	}
	if cp.AMR.NBufferLayers != nil {
		fmt.Printf("[%d]\t\t\t\t= Buffer Layers\n", *cp.AMR.NBufferLayers)
	}
	fmt.Printf("[%d]\t\t\t\t= Max Refinement\n", cp.AMR.MaxRefinement)
	fmt.Printf("[%d]\t\t\t\t= Cycles\n", cp.NCycles)
	keys := make([]string, len(cp.Fields.DefaultFieldValues))
	i := 0
	for k := range cp.Fields.DefaultFieldValues {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("Fields[%s] = %v\n", key, cp.Fields.DefaultFieldValues[key])
	}
	for _, rg := range cp.Fields.Regions {
		fmt.Printf("Region[%s] level %d = %v\n", rg.Name, rg.Level, rg.FieldValues)
	}
}
