package sim

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"imu-jointcenter/internal/joint"
	"imu-jointcenter/internal/trial"
)

// Truth is the ground truth behind a generated trial.
type Truth struct {
	Proximal r3.Vec
	Distal   r3.Vec
}

// Truth returns the scripted sensor offsets.
func (s *Scenario) Truth() Truth {
	if s == nil {
		return Truth{}
	}
	return Truth{Proximal: s.proximal.offset, Distal: s.distal.offset}
}

// Generate samples the scenario at rate_hz from t=0 to duration inclusive and
// adds the scripted noise. The same script and seed always produce the same
// trial.
func (s *Scenario) Generate() trial.Trial {
	n := s.Samples()
	tr := trial.Trial{
		Times:   make([]float64, n),
		Gravity: s.script.Gravity,
		Pair: joint.SegmentPair{
			Proximal:  newSeries(n),
			Distal:    newSeries(n),
			Rotations: make([]*r3.Mat, n),
		},
	}

	src := rand.NewPCG(s.script.Seed, s.script.Seed^0x9e3779b97f4a7c15)
	accNoise := newNoise(s.script.Noise.Acc, src)
	gyrNoise := newNoise(s.script.Noise.Gyr, src)
	angAccNoise := newNoise(s.script.Noise.AngAcc, src)

	dt := 1 / s.script.RateHz
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		st := s.StateAt(t)
		tr.Times[i] = t
		tr.Pair.Rotations[i] = st.Relative
		for _, x := range []struct {
			dst *joint.SensorSeries
			src SensorState
		}{
			{&tr.Pair.Proximal, st.Proximal},
			{&tr.Pair.Distal, st.Distal},
		} {
			x.dst.Acc[i] = accNoise.add(x.src.Acc)
			x.dst.Gyr[i] = gyrNoise.add(x.src.Gyr)
			x.dst.AngAcc[i] = angAccNoise.add(x.src.AngAcc)
		}
	}
	return tr
}

func newSeries(n int) joint.SensorSeries {
	return joint.SensorSeries{
		Acc:    make([]r3.Vec, n),
		Gyr:    make([]r3.Vec, n),
		AngAcc: make([]r3.Vec, n),
	}
}

// noise adds independent zero-mean Gaussian samples per axis. A zero sigma
// leaves values untouched and draws nothing from the source.
type noise struct {
	dist *distuv.Normal
}

func newNoise(sigma float64, src rand.Source) noise {
	if sigma == 0 {
		return noise{}
	}
	return noise{dist: &distuv.Normal{Mu: 0, Sigma: sigma, Src: src}}
}

func (n noise) add(v r3.Vec) r3.Vec {
	if n.dist == nil {
		return v
	}
	return r3.Vec{X: v.X + n.dist.Rand(), Y: v.Y + n.dist.Rand(), Z: v.Z + n.dist.Rand()}
}
