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
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notargets/hexamr/InputParameters"
	"github.com/notargets/hexamr/amr"
	"github.com/notargets/hexamr/fields"
	"github.com/notargets/hexamr/hexref"
	"github.com/notargets/hexamr/setfields"
)

// SetRefinedFieldsCmd represents the setRefinedFields command
var SetRefinedFieldsCmd = &cobra.Command{
	Use:   "setRefinedFields",
	Short: "Refine the lattice of a case around its field regions and set their values",
	Long: `
Adapts the lattice so that the cells of every region of the case reach the
region level, then writes the default and region field values.

hexamr setRefinedFields -I case.yaml`,
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
		if sum, err = RunSetRefinedFields(cp, outDir, logger); err != nil {
			return
		}
		sum.Print()
		return
	},
}

func init() {
	rootCmd.AddCommand(SetRefinedFieldsCmd)
	SetRefinedFieldsCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML case file with field regions")
	SetRefinedFieldsCmd.Flags().StringP("outputDir", "o", "", "directory for the protected cell set")
}

// RunSetRefinedFields adapts the lattice of a case to its regions and sets
// the region field values
func RunSetRefinedFields(cp *InputParameters.CaseParameters, outDir string, logger *zap.Logger) (sum AdaptSummary, err error) {
	var (
		e     *hexref.Engine
		store *fields.Store
		ctrl  *amr.Controller
	)
	if e, store, ctrl, err = newCase(cp, outDir, logger); err != nil {
		return
	}
	if err = setfields.Run(cp.Fields, ctrl, store, logger); err != nil {
		return
	}
	return summarize(cp.Title, e, store)
}
