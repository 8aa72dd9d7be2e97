package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type MapperParameters struct {
	Title         string `yaml:"Title"`
	MappingIGA2FEM bool  `yaml:"MappingIGA2FEM"`
	// Point projection onto the NURBS patches
	MaxProjectionDistance                          float64 `yaml:"MaxProjectionDistance"`
	NumRefinementForInitialGuess                   int     `yaml:"NumRefinementForInitialGuess"`
	MaxDistanceForProjectedPointsOnDifferentPatches float64 `yaml:"MaxDistanceForProjectedPointsOnDifferentPatches"`
	// Newton-Raphson iterations, interior and patch boundary
	NewtonRaphsonMaxIterations         int     `yaml:"NewtonRaphsonMaxIterations"`
	NewtonRaphsonTolerance             float64 `yaml:"NewtonRaphsonTolerance"`
	NewtonRaphsonBoundaryMaxIterations int     `yaml:"NewtonRaphsonBoundaryMaxIterations"`
	NewtonRaphsonBoundaryTolerance     float64 `yaml:"NewtonRaphsonBoundaryTolerance"`
	BisectionMaxIterations             int     `yaml:"BisectionMaxIterations"`
	BisectionTolerance                 float64 `yaml:"BisectionTolerance"`
	// Gauss point counts for the mortar integrals
	NumGPTriangle int `yaml:"NumGPTriangle"`
	NumGPQuad     int `yaml:"NumGPQuad"`
	// Weak patch continuity penalties: displacement jump and rotation jump
	WeakContinuity     bool    `yaml:"WeakContinuity"`
	DispPenalty        float64 `yaml:"DispPenalty"`
	RotPenalty         float64 `yaml:"RotPenalty"`
	ContinuityGPPerSpan int    `yaml:"ContinuityGPPerSpan"`
	// Strong Dirichlet elimination of clamped DOFs
	DirichletBCs bool `yaml:"DirichletBCs"`
	// Consistency enforcement and verification
	EnforceConsistency bool `yaml:"EnforceConsistency"`
	// Debug output: projected nodes report, clipped polygon VTK, GP stream
	Debug     bool   `yaml:"Debug"`
	OutputDir string `yaml:"OutputDir"`
	// Worker count for the element assembly loop, 0 selects GOMAXPROCS
	ParallelDegree int `yaml:"ParallelDegree"`
}

// DefaultParameters matches the behavior of a plain consistent mapping with
// no penalties and no Dirichlet conditions.
func DefaultParameters() *MapperParameters {
	return &MapperParameters{
		MaxProjectionDistance:                          1.e-1,
		NumRefinementForInitialGuess:                   10,
		MaxDistanceForProjectedPointsOnDifferentPatches: 1.e-3,
		NewtonRaphsonMaxIterations:                     20,
		NewtonRaphsonTolerance:                         1.e-9,
		NewtonRaphsonBoundaryMaxIterations:             40,
		NewtonRaphsonBoundaryTolerance:                 1.e-9,
		BisectionMaxIterations:                         100,
		BisectionTolerance:                             1.e-9,
		NumGPTriangle:                                  12,
		NumGPQuad:                                      5,
		DispPenalty:                                    1.e3,
		RotPenalty:                                     1.e3,
		ContinuityGPPerSpan:                            4,
		EnforceConsistency:                             true,
		OutputDir:                                      ".",
	}
}

func (mp *MapperParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, mp)
}

func (mp *MapperParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", mp.Title)
	fmt.Printf("[%v]\t\t\t= MappingIGA2FEM\n", mp.MappingIGA2FEM)
	fmt.Printf("%8.5g\t\t= MaxProjectionDistance\n", mp.MaxProjectionDistance)
	fmt.Printf("[%d]\t\t\t= NewtonRaphsonMaxIterations\n", mp.NewtonRaphsonMaxIterations)
	fmt.Printf("%8.5g\t\t= NewtonRaphsonTolerance\n", mp.NewtonRaphsonTolerance)
	fmt.Printf("[%d/%d]\t\t\t= NumGPTriangle/NumGPQuad\n", mp.NumGPTriangle, mp.NumGPQuad)
	fmt.Printf("[%v]\t\t\t= WeakContinuity", mp.WeakContinuity)
	if mp.WeakContinuity {
		fmt.Printf(" (DispPenalty=%g, RotPenalty=%g)", mp.DispPenalty, mp.RotPenalty)
	}
	fmt.Printf("\n[%v]\t\t\t= DirichletBCs\n", mp.DirichletBCs)
}
