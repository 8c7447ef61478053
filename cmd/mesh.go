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

	"github.com/notargets/hexamr/amr"
	"github.com/notargets/hexamr/mesh"
)

// MeshCmd represents the mesh command
var MeshCmd = &cobra.Command{
	Use:   "mesh",
	Short: "Read a Gmsh mesh and print its statistics",
	Long: `
Reads a Gmsh 2.2 mesh of hexahedra, prisms, pyramids and tetrahedra, converts
it to a face based mesh and prints its statistics together with the number of
cells protected from refinement.

hexamr mesh -F mesh.msh`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var m *mesh.PolyMesh
		gridFile, _ := cmd.Flags().GetString("gridFile")
		if len(gridFile) == 0 {
			return fmt.Errorf("must supply a grid file (-F, --gridFile) in Gmsh 2.2 (.msh) format")
		}
		if m, err = readGmsh(gridFile); err != nil {
			return
		}
		m.Statistics().Print()
		fmt.Printf("  Protected cells: %d\n", protectedCount(m))
		return
	},
}

func init() {
	rootCmd.AddCommand(MeshCmd)
	MeshCmd.Flags().StringP("gridFile", "F", "", "Gmsh 2.2 (.msh) mesh to read")
}

func readGmsh(gridFile string) (m *mesh.PolyMesh, err error) {
	var em *mesh.ElementMesh
	if em, err = mesh.ReadGmsh(gridFile); err != nil {
		return
	}
	if m, err = em.ToPolyMesh(); err != nil {
		return nil, fmt.Errorf("%s: %w", gridFile, err)
	}
	logger.Sugar().Infof("Read %d cells from %s.", m.NCells, gridFile)
	return
}

// protectedCount is the structural protection of an unrefined mesh
func protectedCount(m *mesh.PolyMesh) (nProtected int) {
	levels := amr.NewLevelTracker(make([]int, m.NCells), make([]int, m.NPoints()))
	_, nProtected = amr.StructuralProtection(m, levels)
	return
}
