package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"imu-jointcenter/internal/joint"
)

const degToRad = math.Pi / 180

type axisTerm struct {
	axis  r3.Vec // unit
	amp   float64
	omega float64
	phase float64
	bias  float64
}

// angle returns θ, θ' and θ'' at t seconds.
func (a axisTerm) angle(t float64) (th, thd, thdd float64) {
	s, c := math.Sincos(a.omega*t + a.phase)
	return a.bias + a.amp*s, a.amp * a.omega * c, -a.amp * a.omega * a.omega * s
}

type segment struct {
	offset r3.Vec
	terms  []axisTerm
}

func newSegment(s SegmentScript, name string) (segment, error) {
	if len(s.Rotations) == 0 {
		return segment{}, fmt.Errorf("%s.rotations is required", name)
	}
	seg := segment{offset: r3.Vec{X: s.Offset[0], Y: s.Offset[1], Z: s.Offset[2]}}
	for i, r := range s.Rotations {
		if isZero(r.Axis) {
			return segment{}, fmt.Errorf("%s.rotations[%d].axis must be non-zero", name, i)
		}
		if r.FreqHz < 0 {
			return segment{}, fmt.Errorf("%s.rotations[%d].freq_hz must be >= 0", name, i)
		}
		seg.terms = append(seg.terms, axisTerm{
			axis:  r3.Unit(r3.Vec{X: r.Axis[0], Y: r.Axis[1], Z: r.Axis[2]}),
			amp:   r.AmplitudeDeg * degToRad,
			omega: 2 * math.Pi * r.FreqHz,
			phase: r.PhaseDeg * degToRad,
			bias:  r.BiasDeg * degToRad,
		})
	}
	return seg, nil
}

// kinematics returns the orientation R = R_1·R_2·…·R_K at t together with
// the body-frame angular velocity and angular acceleration.
//
// It walks the product from the right. For the tail T = R_{k+1}·…·R_K with
// body rate w_T, prepending R_k adds Tᵀ·u_k·θ'_k to the rate, and the time
// derivative of that term is −w_T × (Tᵀ·u_k)·θ'_k + Tᵀ·u_k·θ''_k.
func (s segment) kinematics(t float64) (rot *r3.Mat, w, wd r3.Vec) {
	tail := r3.Eye()
	for k := len(s.terms) - 1; k >= 0; k-- {
		term := s.terms[k]
		th, thd, thdd := term.angle(t)
		u := tail.MulVecTrans(term.axis)
		wd = r3.Add(wd, r3.Add(r3.Scale(-thd, r3.Cross(w, u)), r3.Scale(thdd, u)))
		w = r3.Add(w, r3.Scale(thd, u))
		var next r3.Mat
		next.Mul(r3.NewRotation(th, term.axis).Mat(), tail)
		tail = &next
	}
	return tail, w, wd
}

// centerAcc returns the world-frame acceleration of the joint center at t.
func (s *Scenario) centerAcc(t float64) r3.Vec {
	var acc r3.Vec
	for _, h := range s.script.Center {
		omega := 2 * math.Pi * h.FreqHz
		axis := r3.Unit(r3.Vec{X: h.Axis[0], Y: h.Axis[1], Z: h.Axis[2]})
		mag := -h.Amplitude * omega * omega * math.Sin(omega*t+h.PhaseDeg*degToRad)
		acc = r3.Add(acc, r3.Scale(mag, axis))
	}
	return acc
}

// SensorState is the noise-free signal of one sensor.
type SensorState struct {
	Orientation *r3.Mat // sensor frame to world
	Acc         r3.Vec
	Gyr         r3.Vec
	AngAcc      r3.Vec
}

// State is the noise-free scenario state at one instant.
type State struct {
	Proximal SensorState
	Distal   SensorState
	// Relative is the rotation from the distal to the proximal sensor frame.
	Relative *r3.Mat
}

// StateAt computes the scenario state at elapsed. Elapsed is clamped to
// [0, Duration()].
func (s *Scenario) StateAt(elapsed float64) State {
	if s == nil {
		return State{}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if d := s.script.Duration.Seconds(); elapsed > d {
		elapsed = d
	}

	// Specific force: world acceleration minus the gravity vector (0, 0, -g).
	force := r3.Add(s.centerAcc(elapsed), r3.Vec{Z: s.script.Gravity})
	prox := s.proximal.sensor(elapsed, force)
	dist := s.distal.sensor(elapsed, force)
	var rel r3.Mat
	rel.Mul(prox.Orientation.T(), dist.Orientation)
	return State{
		Proximal: prox,
		Distal:   dist,
		Relative: &rel,
	}
}

// sensor applies a = Rᵀ·f + K(w, wd)·r for a sensor at offset r from the
// joint center.
func (s segment) sensor(t float64, force r3.Vec) SensorState {
	rot, w, wd := s.kinematics(t)
	acc := r3.Add(rot.MulVecTrans(force), joint.Kinematic(w, wd).MulVec(s.offset))
	return SensorState{Orientation: rot, Acc: acc, Gyr: w, AngAcc: wd}
}
