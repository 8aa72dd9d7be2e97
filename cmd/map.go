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
	"bufio"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/notargets/mortar/InputParameters"
	"github.com/notargets/mortar/mortar"
	"github.com/notargets/mortar/readfiles"
	"github.com/spf13/cobra"
)

type MapModel struct {
	IGAFile      string
	FEFile       string
	ParamsFile   string
	FieldFile    string
	OutFile      string
	Conservative bool
}

// MapCmd represents the map command
var MapCmd = &cobra.Command{
	Use:   "map",
	Short: "Build the mortar coupling and map a field file across the interface",
	Long: `
Reads a multipatch NURBS surface and an FE surface mesh, builds the mortar
coupling matrices, and maps the field in the given file from the slave side
to the master side (consistent) or master to slave (conservative).

mortar map -G surface.iga -F panel.msh -I params.yaml -D field.dat -o mapped.dat`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			mm  = &MapModel{}
			err error
		)
		if mm.IGAFile, err = cmd.Flags().GetString("igaFile"); err != nil {
			panic(err)
		}
		if mm.FEFile, err = cmd.Flags().GetString("feFile"); err != nil {
			panic(err)
		}
		if mm.ParamsFile, err = cmd.Flags().GetString("paramsFile"); err != nil {
			panic(err)
		}
		if mm.FieldFile, err = cmd.Flags().GetString("fieldFile"); err != nil {
			panic(err)
		}
		mm.OutFile, _ = cmd.Flags().GetString("outFile")
		mm.Conservative, _ = cmd.Flags().GetBool("conservative")
		ip := processMapInput(mm)
		RunMap(mm, ip)
	},
}

func processMapInput(mm *MapModel) (ip *InputParameters.MapperParameters) {
	var willExit bool
	if len(mm.IGAFile) == 0 {
		fmt.Printf("error: must supply an IGA multipatch file (-G, --igaFile)\n")
		willExit = true
	}
	if len(mm.FEFile) == 0 {
		fmt.Printf("error: must supply an FE mesh file (-F, --feFile)\n")
		willExit = true
	}
	if len(mm.FieldFile) == 0 {
		fmt.Printf("error: must supply a field file (-D, --fieldFile)\n")
		willExit = true
	}
	if willExit {
		exampleFile := `
########################################
Title: "Plate Coupling"
MappingIGA2FEM: false
MaxProjectionDistance: 0.1
NumGPTriangle: 12
NumGPQuad: 5
WeakContinuity: true
DispPenalty: 1000
RotPenalty: 1000
########################################
`
		fmt.Printf("Example parameters file:%s\n", exampleFile)
		os.Exit(1)
	}
	ip = InputParameters.DefaultParameters()
	if len(mm.ParamsFile) != 0 {
		data, err := ioutil.ReadFile(mm.ParamsFile)
		if err != nil {
			panic(err)
		}
		if err = ip.Parse(data); err != nil {
			panic(err)
		}
	}
	ip.Print()
	return
}

func RunMap(mm *MapModel, ip *InputParameters.MapperParameters) {
	var (
		meshIGA = readfiles.ReadIGAMesh(mm.IGAFile, true)
		meshFE  = readfiles.ReadFEMesh(mm.FEFile, true)
		field   = readfiles.ReadField(mm.FieldFile)
	)
	m, err := mortar.NewMapper(ip.Title, meshIGA, meshFE, ip)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	var out []float64
	if mm.Conservative {
		out, err = m.ConservativeMapping(field)
	} else {
		out, err = m.ConsistentMapping(field)
	}
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	if len(mm.OutFile) == 0 {
		for _, v := range out {
			fmt.Printf("%.12g\n", v)
		}
		return
	}
	file, err := os.Create(mm.OutFile)
	if err != nil {
		panic(err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	defer w.Flush()
	for _, v := range out {
		fmt.Fprintf(w, "%.12g\n", v)
	}
	fmt.Printf("Wrote %d mapped values to %s\n", len(out), mm.OutFile)
}

func init() {
	rootCmd.AddCommand(MapCmd)
	MapCmd.Flags().StringP("igaFile", "G", "", "IGA multipatch surface file")
	MapCmd.Flags().StringP("feFile", "F", "", "FE surface mesh file")
	MapCmd.Flags().StringP("paramsFile", "I", "", "YAML file for mapper parameters")
	MapCmd.Flags().StringP("fieldFile", "D", "", "field values to map, one per line")
	MapCmd.Flags().StringP("outFile", "o", "", "output file for the mapped field (default stdout)")
	MapCmd.Flags().BoolP("conservative", "c", false, "map conservatively (master to slave) instead of consistently")
}
