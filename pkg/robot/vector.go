package robot

import (
	"math"

	"github.com/gwillem/hapticteleop/pkg/fault"
)

// JointVector holds one value per joint: positions, velocities, torques or gains.
// Its length is the arm's degrees of freedom and never changes during a session.
type JointVector []float64

// Zeros returns a zero vector of length n.
func Zeros(n int) JointVector {
	return make(JointVector, n)
}

// Fill returns a vector of length n with every element set to v.
func Fill(n int, v float64) JointVector {
	out := make(JointVector, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Clone returns a copy of v. A nil vector clones to nil.
func (v JointVector) Clone() JointVector {
	if v == nil {
		return nil
	}
	out := make(JointVector, len(v))
	copy(out, v)
	return out
}

// CheckLen returns a configuration error unless v has exactly n elements
// and none of them is NaN or infinite.
func CheckLen(name string, v JointVector, n int) error {
	if len(v) != n {
		return fault.Configf("%s: expected %d joints, got %d", name, n, len(v))
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fault.Configf("%s[%d]: not a finite number", name, i)
		}
	}
	return nil
}
