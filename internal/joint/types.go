package joint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// IsRotation reports whether m is orthonormal with determinant +1 within tol.
// A nil matrix is not a rotation.
func IsRotation(m *r3.Mat, tol float64) bool {
	if m == nil {
		return false
	}
	var p r3.Mat
	p.Mul(m, m.T())
	p.Sub(&p, r3.Eye())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(p.At(i, j)) > tol {
				return false
			}
		}
	}
	return math.Abs(m.Det()-1) <= tol
}

// SensorSeries holds N samples from one sensor, all expressed in the sensor
// frame: specific force (m/s²), angular velocity (rad/s) and angular
// acceleration (rad/s²).
type SensorSeries struct {
	Acc    []r3.Vec
	Gyr    []r3.Vec
	AngAcc []r3.Vec
}

// Len returns the number of samples, or -1 when the three slices disagree.
func (s SensorSeries) Len() int {
	n := len(s.Acc)
	if len(s.Gyr) != n || len(s.AngAcc) != n {
		return -1
	}
	return n
}

// SegmentPair is one trial: time-aligned proximal and distal series plus,
// for SAC, the rotation from the distal to the proximal sensor frame at every
// sample.
type SegmentPair struct {
	Proximal  SensorSeries
	Distal    SensorSeries
	Rotations []*r3.Mat
}

// Len returns the common sample count N.
func (p *SegmentPair) Len() int {
	return len(p.Proximal.Acc)
}

// rotationTolerance bounds ‖R·Rᵀ − I‖ and |det R − 1| for accepted rotations.
const rotationTolerance = 1e-6

func (p *SegmentPair) validate(needRotations bool) error {
	if p == nil {
		return fmt.Errorf("%w: segment pair is nil", ErrInvalidInput)
	}
	n := p.Proximal.Len()
	if n < 0 {
		return fmt.Errorf("%w: proximal series have different lengths", ErrInvalidInput)
	}
	if d := p.Distal.Len(); d != n {
		return fmt.Errorf("%w: distal series length %d, proximal %d", ErrInvalidInput, d, n)
	}
	if n == 0 {
		return fmt.Errorf("%w: no samples", ErrInvalidInput)
	}
	for i := 0; i < n; i++ {
		if !finite(p.Proximal.Acc[i], p.Proximal.Gyr[i], p.Proximal.AngAcc[i],
			p.Distal.Acc[i], p.Distal.Gyr[i], p.Distal.AngAcc[i]) {
			return fmt.Errorf("%w: non-finite value at sample %d", ErrInvalidInput, i)
		}
	}
	if !needRotations {
		return nil
	}
	if len(p.Rotations) != n {
		return fmt.Errorf("%w: %d rotations for %d samples", ErrInvalidInput, len(p.Rotations), n)
	}
	for i, r := range p.Rotations {
		if !IsRotation(r, rotationTolerance) {
			return fmt.Errorf("%w: rotation %d is not orthonormal", ErrInvalidInput, i)
		}
	}
	return nil
}

func finite(vs ...r3.Vec) bool {
	for _, v := range vs {
		for _, x := range [3]float64{v.X, v.Y, v.Z} {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}

// Estimate is the result of one Compute call.
type Estimate struct {
	Method Method

	// Proximal and Distal are the sensor positions relative to the joint
	// center, each in its own sensor frame (meters).
	Proximal r3.Vec
	Distal   r3.Vec

	// Residual is the sum of squared fit residuals divided by Samples.
	// SAC sums over the 3 vector components of every retained sample, SSFC
	// over one magnitude difference per sample; the two are not comparable.
	Residual float64

	// Samples is the retained sample count M.
	Samples int
	// Threshold is the dynamic-acceleration threshold that produced the mask,
	// zero when masking is disabled.
	Threshold float64

	// SAC diagnostics.
	Rank int
	Cond float64

	// SSFC diagnostics.
	Iterations  int
	Evaluations int
}
