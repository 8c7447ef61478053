/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notargets/hexamr/InputParameters"
	"github.com/notargets/hexamr/amr"
	"github.com/notargets/hexamr/fields"
	"github.com/notargets/hexamr/hexref"
	"github.com/notargets/hexamr/setfields"
)

// seedError is the error of every cell before the field discontinuities are
// added; it sits between the unrefine and refine thresholds
const seedError = 0.1

// defaultCycles bounds the adapt run when the case gives no nCycles
const defaultCycles = 10

// AdaptCmd represents the adapt command
var AdaptCmd = &cobra.Command{
	Use:   "adapt",
	Short: "Run adapt cycles on a block lattice until the mesh stops changing",
	Long: `
Builds the lattice of a case file, sets its initial fields and runs adapt
cycles. When discontinuityFields are given the error field is rebuilt every
cycle from the jumps of those fields.

hexamr adapt -I case.yaml -o out`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			cp     *InputParameters.CaseParameters
			outDir string
			sum    AdaptSummary
		)
		if cp, err = readCase(cmd); err != nil {
			return
		}
		outDir, _ = cmd.Flags().GetString("outputDir")
		if sum, err = RunAdapt(cp, outDir, logger); err != nil {
			return
		}
		sum.Print()
		return
	},
}

func init() {
	rootCmd.AddCommand(AdaptCmd)
	AdaptCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML case file: lattice, amr settings and fields")
	AdaptCmd.Flags().StringP("outputDir", "o", "", "directory for the summary and cell sets")
}

func readCase(cmd *cobra.Command) (cp *InputParameters.CaseParameters, err error) {
	var (
		file string
		data []byte
	)
	if file, _ = cmd.Flags().GetString("inputConditionsFile"); len(file) == 0 {
		exampleFile := `
########################################
title: "Test Case"
lattice:
  divisions: [8, 1, 1]
  cellSize: [1, 1, 1]
  maxLevel: 2
amr:
  errorField: error
  nBufferLayers: 1
  maxRefinement: 1
  discontinuityFields: [rho]
fields:
  defaultFieldValues: {rho: 0.125}
  regions:
    - {name: left, box: {min: [0, 0, 0], max: [4, 1, 1]}, fieldValues: {rho: 1}}
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		return nil, fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile)")
	}
	if data, err = os.ReadFile(file); err != nil {
		return
	}
	cp = &InputParameters.CaseParameters{}
	if err = cp.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	if err = cp.Validate(); err != nil {
		return nil, err
	}
	cp.Print()
	return
}

// newCase builds the engine, the field store and the controller of a case.
// A nonempty outDir receives the protected cell set.
func newCase(cp *InputParameters.CaseParameters, outDir string, logger *zap.Logger) (e *hexref.Engine,
	store *fields.Store, ctrl *amr.Controller, err error) {
	var writer amr.CellSetWriter
	if e, err = hexref.New(cp.Lattice, logger); err != nil {
		return
	}
	store = fields.NewStore(e.Mesh())
	if len(outDir) != 0 {
		if err = os.MkdirAll(outDir, 0755); err != nil {
			return
		}
		writer = amr.NewYAMLCellSetWriter(outDir, nil)
	}
	ctrl, err = amr.NewController(cp.ControllerConfig(e.Mesh().NCells), e, store, writer, logger)
	return
}

// AdaptSummary is the outcome of an adapt run
type AdaptSummary struct {
	Title       string             `json:"title"`
	Cycles      int                `json:"cycles"`
	Converged   bool               `json:"converged"`
	Cells       int                `json:"cells"`
	LevelCounts map[int]int        `json:"levelCounts"`
	FieldRanges map[string]float64 `json:"fieldRanges"`
}

func (sum AdaptSummary) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", sum.Title)
	fmt.Printf("[%d]\t\t\t= Cycles (converged %v)\n", sum.Cycles, sum.Converged)
	fmt.Printf("[%d]\t\t\t= Cells\n", sum.Cells)
	levels := make([]int, 0, len(sum.LevelCounts))
	for l := range sum.LevelCounts {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	for _, l := range levels {
		fmt.Printf("Level[%d] = %d\n", l, sum.LevelCounts[l])
	}
}

// summarize collects the mesh and field figures of a finished run. Collective.
func summarize(title string, e *hexref.Engine, store *fields.Store) (sum AdaptSummary, err error) {
	m := e.Mesh()
	sum = AdaptSummary{
		Title:       title,
		Cells:       m.Comm.SumInt(m.NCells),
		LevelCounts: make(map[int]int),
		FieldRanges: make(map[string]float64),
	}
	for _, l := range e.CellLevel() {
		sum.LevelCounts[l]++
	}
	for _, name := range store.Names() {
		var lo, hi float64
		if lo, hi, err = store.Range(name); err != nil {
			return
		}
		sum.FieldRanges[name+".min"], sum.FieldRanges[name+".max"] = lo, hi
	}
	return
}

/*
RunAdapt sets the initial fields of a case and runs adapt cycles until one
leaves the mesh unchanged or nCycles have run. A nonempty outDir receives
adaptSummary.yaml.
*/
func RunAdapt(cp *InputParameters.CaseParameters, outDir string, logger *zap.Logger) (sum AdaptSummary, err error) {
	var (
		e       *hexref.Engine
		store   *fields.Store
		ctrl    *amr.Controller
		nCycles   = cp.NCycles
		names     = cp.AMR.DiscontinuityFields
		cycles    int
		converged bool
	)
	if logger == nil {
		logger = zap.NewNop()
	}
	if e, store, ctrl, err = newCase(cp, outDir, logger); err != nil {
		return
	}
	if err = setfields.SetValues(cp.Fields, store); err != nil {
		return
	}
	if nCycles == 0 {
		nCycles = defaultCycles
	}
	for cycles < nCycles {
		var changed bool
		if len(names) != 0 {
			var errFld []float64
			store.SetUniform(cp.AMR.ErrorField, seedError)
			if errFld, err = store.Field(cp.AMR.ErrorField); err != nil {
				return
			}
			if err = amr.FaceDiscontinuity(e.Mesh(), store, errFld, names); err != nil {
				return
			}
		}
		if changed, err = ctrl.Update(); err != nil {
			return
		}
		cycles++
		logger.Debug("adapt cycle", append([]zap.Field{
			zap.Int("cycle", cycles),
			zap.Int("cells", e.Mesh().NCells),
			zap.Bool("changed", changed)}, memUsage()...)...)
		if !changed {
			converged = true
			break
		}
	}
	if sum, err = summarize(cp.Title, e, store); err != nil {
		return
	}
	sum.Cycles, sum.Converged = cycles, converged
	if len(outDir) != 0 {
		var data []byte
		if data, err = yaml.Marshal(sum); err != nil {
			return
		}
		err = os.WriteFile(filepath.Join(outDir, "adaptSummary.yaml"), data, 0644)
	}
	return
}
