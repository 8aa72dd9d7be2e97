package mortar

import (
	"fmt"
	"math"

	"github.com/notargets/mortar/utils"
)

const consistencyTolerance = 1.e-6

// ConsistentMapping maps a slave field to the master discretization by
// solving CNN*x = CNR*slaveField. For the IGA2FEM direction the slave field
// lives on the control points and the result on the FE nodes; FEM2IGA is the
// reverse. Expanded stores map three interleaved Cartesian components per
// node.
func (m *Mapper) ConsistentMapping(slaveField []float64) ([]float64, error) {
	return m.C.ConsistentMapping(slaveField)
}

// ConservativeMapping maps a master flux-like field to the slave side as
// CNR^T * CNN^-1 * masterField, preserving the field integral.
func (m *Mapper) ConservativeMapping(masterField []float64) ([]float64, error) {
	return m.C.ConservativeMapping(masterField)
}

// checkConsistency pushes a unit slave field through the consistent map. A
// correctly assembled mortar reproduces the constant exactly; rows deviating
// by more than the tolerance are repaired by replacing them with a lumped
// diagonal equal to their cross-matrix row sum, then the check reruns. The
// quadratic mean over supported rows must come back to one or the mapper is
// unusable.
func (m *Mapper) checkConsistency() (err error) {
	ones := utils.ConstArray(m.C.ColsR(), 1)
	out, err := m.C.ConsistentMapping(ones)
	if err != nil {
		return err
	}
	var repaired int
	for i, v := range out {
		if v != 0 && math.Abs(v-1) > consistencyTolerance {
			m.C.DeleteRowCNN(i)
			m.C.SetCNNDiagonal(i, m.C.RowSumCNR(i))
			repaired++
		}
	}
	if repaired > 0 {
		fmt.Printf("Consistency check repaired %d master rows by lumping\n", repaired)
		if err = m.C.Factorize(); err != nil {
			return err
		}
		if out, err = m.C.ConsistentMapping(ones); err != nil {
			return err
		}
	}
	var (
		sumSq float64
		count int
	)
	for i, v := range out {
		if m.C.IsEnforcedRow(i) || v == 0 {
			continue
		}
		sumSq += v * v
		count++
	}
	if count == 0 {
		return fmt.Errorf("consistency check found no supported master rows")
	}
	rms := math.Sqrt(sumSq / float64(count))
	fmt.Printf("Consistency check: RMS of mapped unit field = %.10f over %d rows\n", rms, count)
	if math.Abs(rms-1) > consistencyTolerance {
		return fmt.Errorf("mortar mapping is inconsistent: RMS %.10f deviates from 1", rms)
	}
	return nil
}
