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

	"github.com/spf13/cobra"

	"github.com/notargets/hexamr/InputParameters"
	"github.com/notargets/hexamr/amr"
	"github.com/notargets/hexamr/fields"
	"github.com/notargets/hexamr/hexref"
	"github.com/notargets/hexamr/mesh"
	"github.com/notargets/hexamr/parallel"
	"github.com/notargets/hexamr/setfields"
)

// ProtectCmd represents the protect command
var ProtectCmd = &cobra.Command{
	Use:   "protect",
	Short: "Report the cells protected from refinement on every partition",
	Long: `
Splits a mesh into in-process partitions and computes, on each of them, the
cells whose shape or anchor points forbid refinement and the cells that
cannot be unrefined because of them. The mesh is either a Gmsh file, with
every level at zero, or the lattice of a case refined to its field regions.

hexamr protect -F mesh.msh --np 4
hexamr protect -I case.yaml --np 2 -o out`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			m                     *mesh.PolyMesh
			cellLevel, pointLevel []int
			rep                   ProtectReport
		)
		gridFile, _ := cmd.Flags().GetString("gridFile")
		NP, _ := cmd.Flags().GetInt("np")
		outDir, _ := cmd.Flags().GetString("outputDir")
		if len(gridFile) != 0 {
			if m, err = readGmsh(gridFile); err != nil {
				return
			}
			cellLevel, pointLevel = make([]int, m.NCells), make([]int, m.NPoints())
		} else {
			var (
				cp *InputParameters.CaseParameters
				e  *hexref.Engine
			)
			if cp, err = readCase(cmd); err != nil {
				return
			}
			if e, err = refinedLattice(cp); err != nil {
				return
			}
			m, cellLevel, pointLevel = e.Mesh(), e.CellLevel(), e.PointLevel()
		}
		if rep, err = RunProtect(m, cellLevel, pointLevel, NP, outDir); err != nil {
			return
		}
		rep.Print()
		return
	},
}

func init() {
	rootCmd.AddCommand(ProtectCmd)
	ProtectCmd.Flags().StringP("gridFile", "F", "", "Gmsh 2.2 (.msh) mesh to analyse")
	ProtectCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML case file whose refined lattice is analysed")
	ProtectCmd.Flags().Int("np", 1, "number of partitions")
	ProtectCmd.Flags().StringP("outputDir", "o", "", "directory for the protected cell sets")
}

func refinedLattice(cp *InputParameters.CaseParameters) (e *hexref.Engine, err error) {
	var (
		store *fields.Store
		ctrl  *amr.Controller
	)
	if e, store, ctrl, err = newCase(cp, "", logger); err != nil {
		return
	}
	err = setfields.Run(cp.Fields, ctrl, store, logger)
	return
}

// ProtectReport holds per partition counts
type ProtectReport struct {
	Cells, Protected, Unrefineable []int
	TotalProtected                 int
}

func (rep ProtectReport) Print() {
	for np := range rep.Cells {
		fmt.Printf("Partition[%d] cells %d, protected %d, unrefineable %d\n",
			np, rep.Cells[np], rep.Protected[np], rep.Unrefineable[np])
	}
	fmt.Printf("[%d]\t\t\t= Protected Cells\n", rep.TotalProtected)
}

/*
RunProtect decomposes m into NP block partitions and computes the structural
protection and its propagation on each. A nonempty outDir receives the
protected cell set of every partition when any cell is protected.
*/
func RunProtect(m *mesh.PolyMesh, cellLevel, pointLevel []int, NP int, outDir string) (rep ProtectReport, err error) {
	var (
		d *mesh.Decomposition
	)
	if NP < 1 || NP > m.NCells {
		return rep, fmt.Errorf("number of partitions %d should be in [1,%d]", NP, m.NCells)
	}
	if len(cellLevel) != m.NCells || len(pointLevel) != m.NPoints() {
		return rep, fmt.Errorf("have %d cell and %d point levels for %d cells and %d points",
			len(cellLevel), len(pointLevel), m.NCells, m.NPoints())
	}
	if d, err = mesh.Decompose(m, mesh.BlockCellProc(m.NCells, NP), NP); err != nil {
		return
	}
	rep = ProtectReport{
		Cells:        make([]int, NP),
		Protected:    make([]int, NP),
		Unrefineable: make([]int, NP),
	}
	w := parallel.NewWorld(NP)
	err = w.Run(func(c parallel.Comm) error {
		var (
			np     = c.Rank()
			pm     = d.Meshes[np]
			levels = amr.NewLevelTracker(mesh.ScatterCells(d, np, cellLevel), mesh.ScatterPoints(d, np, pointLevel))
		)
		pm.Comm = c
		protected, nProtected := amr.StructuralProtection(pm, levels)
		unrefineable := amr.PropagateProtection(pm, levels, protected)
		rep.Cells[np] = pm.NCells
		rep.Protected[np] = protected.Count()
		rep.Unrefineable[np] = unrefineable.Count()
		if np == 0 {
			rep.TotalProtected = nProtected
		}
		if nProtected > 0 && len(outDir) != 0 {
			return amr.NewYAMLCellSetWriter(outDir, c).WriteCellSet(protected)
		}
		return nil
	})
	return
}
