package sim

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ScenarioScript is a deterministic, script-driven description of a
// two-segment rigid-body trial with known joint-center offsets.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s").
//
// YAML schema (v1):
//
//	version: 1
//	duration: 20s
//	rate_hz: 100
//	gravity: 9.81
//	seed: 1
//	noise:
//	  acc: 0.05      # m/s², one sigma per axis
//	  gyr: 0.0       # rad/s
//	  ang_acc: 0.0   # rad/s²
//	center:
//	  - axis: [1, 0, 0]
//	    amplitude: 0.3   # m
//	    freq_hz: 1.0
//	    phase_deg: 0
//	proximal:
//	  offset: [0.05, -0.12, 0.20]
//	  rotations:
//	    - axis: [0, 0, 1]
//	      amplitude_deg: 60
//	      freq_hz: 0.7
//	      phase_deg: 0
//	      bias_deg: 0
//	distal:
//	  offset: [-0.03, 0.25, 0.04]
//	  rotations: ...
//
// A segment's orientation is the product of its rotations in list order,
// each about a fixed axis with a sinusoidal angle.
type ScenarioScript struct {
	Version  int           `yaml:"version"`
	Duration time.Duration `yaml:"duration"`
	RateHz   float64       `yaml:"rate_hz"`
	Gravity  float64       `yaml:"gravity"`
	Seed     uint64        `yaml:"seed"`
	Noise    Noise         `yaml:"noise"`
	Center   []Harmonic    `yaml:"center"`
	Proximal SegmentScript `yaml:"proximal"`
	Distal   SegmentScript `yaml:"distal"`
}

// Noise holds per-axis Gaussian standard deviations added to the generated
// sensor signals.
type Noise struct {
	Acc    float64 `yaml:"acc"`
	Gyr    float64 `yaml:"gyr"`
	AngAcc float64 `yaml:"ang_acc"`
}

// Harmonic is one sinusoidal term of the joint-center trajectory:
// axis·amplitude·sin(2π·f·t + phase).
type Harmonic struct {
	Axis      [3]float64 `yaml:"axis"`
	Amplitude float64    `yaml:"amplitude"`
	FreqHz    float64    `yaml:"freq_hz"`
	PhaseDeg  float64    `yaml:"phase_deg"`
}

// SegmentScript describes one body segment and its sensor.
type SegmentScript struct {
	// Offset is the sensor position relative to the joint center, in the
	// sensor frame (meters). It is the ground truth an estimator recovers.
	Offset    [3]float64     `yaml:"offset"`
	Rotations []AxisRotation `yaml:"rotations"`
}

// AxisRotation is a rotation about a fixed axis by
// bias + amplitude·sin(2π·f·t + phase).
type AxisRotation struct {
	Axis         [3]float64 `yaml:"axis"`
	AmplitudeDeg float64    `yaml:"amplitude_deg"`
	FreqHz       float64    `yaml:"freq_hz"`
	PhaseDeg     float64    `yaml:"phase_deg"`
	BiasDeg      float64    `yaml:"bias_deg"`
}

// Scenario is the validated, runtime representation.
//
// Use StateAt to compute the deterministic state at a given elapsed time.
type Scenario struct {
	script   ScenarioScript
	proximal segment
	distal   segment
}

// LoadScenarioScript reads and unmarshals a YAML scenario script from path.
func LoadScenarioScript(path string) (ScenarioScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ScenarioScript{}, err
	}
	return ParseScenarioScriptYAML(b)
}

// ParseScenarioScriptYAML parses a YAML scenario script.
func ParseScenarioScriptYAML(b []byte) (ScenarioScript, error) {
	var s ScenarioScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return ScenarioScript{}, err
	}
	return s, nil
}

// NewScenario validates script, applies defaults and returns a runtime
// Scenario.
func NewScenario(script ScenarioScript) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}
	if script.Duration <= 0 {
		return nil, fmt.Errorf("duration is required")
	}
	if script.RateHz == 0 {
		script.RateHz = 100
	}
	if !(script.RateHz > 0) {
		return nil, fmt.Errorf("rate_hz must be > 0")
	}
	if script.Gravity == 0 {
		script.Gravity = 9.81
	}
	if !(script.Gravity > 0) {
		return nil, fmt.Errorf("gravity must be > 0")
	}
	if script.Noise.Acc < 0 || script.Noise.Gyr < 0 || script.Noise.AngAcc < 0 {
		return nil, fmt.Errorf("noise sigmas must be >= 0")
	}
	for i, h := range script.Center {
		if isZero(h.Axis) {
			return nil, fmt.Errorf("center[%d].axis must be non-zero", i)
		}
		if h.FreqHz < 0 {
			return nil, fmt.Errorf("center[%d].freq_hz must be >= 0", i)
		}
	}

	prox, err := newSegment(script.Proximal, "proximal")
	if err != nil {
		return nil, err
	}
	dist, err := newSegment(script.Distal, "distal")
	if err != nil {
		return nil, err
	}
	return &Scenario{script: script, proximal: prox, distal: dist}, nil
}

// Duration returns the scenario duration.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.script.Duration
}

// Samples returns the number of samples Generate produces.
func (s *Scenario) Samples() int {
	if s == nil {
		return 0
	}
	return int(math.Floor(s.script.Duration.Seconds()*s.script.RateHz)) + 1
}

// Gravity returns the gravity used for specific force.
func (s *Scenario) Gravity() float64 {
	if s == nil {
		return 0
	}
	return s.script.Gravity
}

func isZero(v [3]float64) bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}
