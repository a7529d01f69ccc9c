package joint

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// MaskPolicy selects how the dynamic-motion threshold is chosen.
type MaskPolicy int

const (
	// MaskLadder lowers the threshold from Initial in fixed Steps and stops at
	// the first threshold that retains MinSamples samples.
	MaskLadder MaskPolicy = iota
	// MaskOrderStatistic picks the MinSamples-th largest joint dynamic
	// acceleration directly, so the retained count hits the target exactly
	// (up to ties).
	MaskOrderStatistic
)

func (p MaskPolicy) String() string {
	switch p {
	case MaskLadder:
		return "ladder"
	case MaskOrderStatistic:
		return "order_statistic"
	default:
		return fmt.Sprintf("MaskPolicy(%d)", int(p))
	}
}

// ParseMaskPolicy parses "ladder" or "order_statistic".
func ParseMaskPolicy(s string) (MaskPolicy, error) {
	switch s {
	case "ladder", "":
		return MaskLadder, nil
	case "order_statistic":
		return MaskOrderStatistic, nil
	}
	return 0, fmt.Errorf("unknown mask policy %q", s)
}

// Default mask thresholds in m/s².
const (
	DefaultMaskInitial = 0.8
	DefaultMaskStep    = 0.05
	DefaultMaskFloor   = 0.09
)

// MaskSettings configures sample selection.
type MaskSettings struct {
	Policy  MaskPolicy
	Initial float64
	Step    float64
	Floor   float64
}

// DefaultMaskSettings returns the ladder policy with the default thresholds.
func DefaultMaskSettings() MaskSettings {
	return MaskSettings{
		Policy:  MaskLadder,
		Initial: DefaultMaskInitial,
		Step:    DefaultMaskStep,
		Floor:   DefaultMaskFloor,
	}
}

func (s MaskSettings) validate() error {
	if s.Policy != MaskLadder && s.Policy != MaskOrderStatistic {
		return fmt.Errorf("unknown mask policy %v", s.Policy)
	}
	if !(s.Floor >= 0) {
		return fmt.Errorf("mask floor must be >= 0")
	}
	if s.Policy == MaskLadder {
		if !(s.Step > 0) {
			return fmt.Errorf("mask step must be > 0")
		}
		if s.Initial < s.Floor {
			return fmt.Errorf("mask initial threshold %.3g is below floor %.3g", s.Initial, s.Floor)
		}
	}
	return nil
}

// ladderEps absorbs rounding in Initial - k*Step near the floor.
const ladderEps = 1e-12

// thresholds returns the ladder Initial, Initial-Step, ... down to Floor.
func (s MaskSettings) thresholds() []float64 {
	var out []float64
	for k := 0; ; k++ {
		t := s.Initial - float64(k)*s.Step
		if t < s.Floor-ladderEps {
			return out
		}
		out = append(out, t)
	}
}

// Mask marks the samples retained for fitting.
type Mask struct {
	Keep []bool
	// Threshold that produced Keep; zero when every sample is retained.
	Threshold float64
}

// Count returns the number of retained samples.
func (m Mask) Count() int {
	n := 0
	for _, k := range m.Keep {
		if k {
			n++
		}
	}
	return n
}

// Indices returns the retained sample indices in ascending order.
func (m Mask) Indices() []int {
	idx := make([]int, 0, len(m.Keep))
	for i, k := range m.Keep {
		if k {
			idx = append(idx, i)
		}
	}
	return idx
}

// All returns a mask retaining all n samples.
func All(n int) Mask {
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}
	return Mask{Keep: keep}
}

// DynamicMagnitude returns |a_i| - g for every sample.
func DynamicMagnitude(acc []r3.Vec, g float64) []float64 {
	out := make([]float64, len(acc))
	for i, a := range acc {
		out[i] = r3.Norm(a) - g
	}
	return out
}

// jointMotion returns min(|p_i|, |d_i|): a sample exceeds a threshold on both
// sensors exactly when this value does.
func jointMotion(prox, dist []float64) []float64 {
	out := make([]float64, len(prox))
	for i := range prox {
		out[i] = math.Min(math.Abs(prox[i]), math.Abs(dist[i]))
	}
	return out
}

func maskAbove(m []float64, t float64, strict bool) Mask {
	keep := make([]bool, len(m))
	for i, v := range m {
		keep[i] = v > t || (!strict && v == t)
	}
	return Mask{Keep: keep, Threshold: t}
}

// SelectSamples chooses the samples where both sensors' absolute dynamic
// acceleration exceeds a threshold, lowering the threshold until at least
// minSamples remain. prox and dist are DynamicMagnitude outputs of equal
// length.
func SelectSamples(prox, dist []float64, s MaskSettings, minSamples int) (Mask, error) {
	if len(prox) != len(dist) {
		return Mask{}, fmt.Errorf("%w: dynamic magnitudes of length %d and %d", ErrInvalidInput, len(prox), len(dist))
	}
	if err := s.validate(); err != nil {
		return Mask{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	m := jointMotion(prox, dist)

	switch s.Policy {
	case MaskOrderStatistic:
		if minSamples <= 0 {
			minSamples = 1
		}
		if len(m) < minSamples {
			return Mask{}, fmt.Errorf("%w: %d samples, need %d", ErrInsufficientMotion, len(m), minSamples)
		}
		sorted := append([]float64(nil), m...)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		t := sorted[minSamples-1]
		if t <= s.Floor {
			return Mask{}, fmt.Errorf("%w: %d-th largest joint dynamic acceleration %.3g is at or below floor %.3g",
				ErrInsufficientMotion, minSamples, t, s.Floor)
		}
		return maskAbove(m, t, false), nil
	default:
		for _, t := range s.thresholds() {
			mask := maskAbove(m, t, true)
			if mask.Count() >= minSamples {
				return mask, nil
			}
		}
		return Mask{}, fmt.Errorf("%w: fewer than %d samples above %.3g m/s²", ErrInsufficientMotion, minSamples, s.Floor)
	}
}

// LadderStep is the retained sample count at one ladder threshold.
type LadderStep struct {
	Threshold float64
	Count     int
}

// LadderCounts evaluates every ladder threshold of s and reports how many
// samples each one retains. It is a diagnostic for choosing MinSamples.
func LadderCounts(prox, dist []float64, s MaskSettings) []LadderStep {
	if len(prox) != len(dist) || !(s.Step > 0) {
		return nil
	}
	m := jointMotion(prox, dist)
	ts := s.thresholds()
	out := make([]LadderStep, 0, len(ts))
	for _, t := range ts {
		out = append(out, LadderStep{Threshold: t, Count: maskAbove(m, t, true).Count()})
	}
	return out
}
