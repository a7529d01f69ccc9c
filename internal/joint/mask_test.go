package joint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestMaskSettings_Thresholds(t *testing.T) {
	ts := DefaultMaskSettings().thresholds()
	require.Len(t, ts, 15)
	assert.InDelta(t, 0.80, ts[0], 1e-12)
	assert.InDelta(t, 0.10, ts[len(ts)-1], 1e-12)
	for i := 1; i < len(ts); i++ {
		assert.InDelta(t, 0.05, ts[i-1]-ts[i], 1e-12)
	}
}

func TestDynamicMagnitude(t *testing.T) {
	acc := []r3.Vec{{Z: 9.81}, {X: 3, Y: 4}, {}}
	got := DynamicMagnitude(acc, 9.81)
	assert.InDeltaSlice(t, []float64{0, 5 - 9.81, -9.81}, got, 1e-12)
}

func TestSelectSamples_LadderPicksFirstQualifyingStep(t *testing.T) {
	// Joint motion min(|p|, |d|) per sample: 0.9, 0.72, 0.58, 0.32, 0.05.
	prox := []float64{0.9, -0.72, 2.0, 0.32, 0.05}
	dist := []float64{1.5, 0.8, -0.58, -0.4, 3.0}

	m, err := SelectSamples(prox, dist, DefaultMaskSettings(), 3)
	require.NoError(t, err)
	// 0.80 and 0.75 keep 1, 0.70 to 0.60 keep 2, 0.55 keeps 3.
	assert.InDelta(t, 0.55, m.Threshold, 1e-12)
	assert.Equal(t, []bool{true, true, true, false, false}, m.Keep)
	assert.Equal(t, []int{0, 1, 2}, m.Indices())
	assert.Equal(t, 3, m.Count())
}

func TestSelectSamples_StrictComparison(t *testing.T) {
	prox := []float64{0.8, 0.8}
	dist := []float64{0.8, 0.9}
	m, err := SelectSamples(prox, dist, DefaultMaskSettings(), 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, m.Threshold, 1e-12)
}

func TestSelectSamples_InsufficientMotion(t *testing.T) {
	prox := []float64{0.5, 0.08, 0.09}
	dist := []float64{0.5, 1.00, 0.09}
	_, err := SelectSamples(prox, dist, DefaultMaskSettings(), 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientMotion), "err=%v", err)
}

func TestSelectSamples_LowestStepQualifies(t *testing.T) {
	// Only the 0.10 step retains both samples.
	prox := []float64{0.11, 0.5}
	dist := []float64{0.5, 0.12}
	m, err := SelectSamples(prox, dist, DefaultMaskSettings(), 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, m.Threshold, 1e-12)
	assert.Equal(t, 2, m.Count())
}

func TestSelectSamples_OrderStatistic(t *testing.T) {
	prox := []float64{0.9, -0.72, 2.0, 0.32, 0.05}
	dist := []float64{1.5, 0.8, -0.58, -0.4, 3.0}
	s := DefaultMaskSettings()
	s.Policy = MaskOrderStatistic

	m, err := SelectSamples(prox, dist, s, 4)
	require.NoError(t, err)
	assert.InDelta(t, 0.32, m.Threshold, 1e-12)
	assert.Equal(t, []bool{true, true, true, true, false}, m.Keep)

	_, err = SelectSamples(prox, dist, s, 5)
	assert.True(t, errors.Is(err, ErrInsufficientMotion), "err=%v", err)

	_, err = SelectSamples(prox, dist, s, 6)
	assert.True(t, errors.Is(err, ErrInsufficientMotion), "err=%v", err)
}

func TestSelectSamples_InvalidSettings(t *testing.T) {
	s := DefaultMaskSettings()
	s.Step = 0
	_, err := SelectSamples([]float64{1}, []float64{1}, s, 1)
	assert.True(t, errors.Is(err, ErrInvalidInput), "err=%v", err)

	_, err = SelectSamples([]float64{1}, []float64{1, 2}, DefaultMaskSettings(), 1)
	assert.True(t, errors.Is(err, ErrInvalidInput), "err=%v", err)
}

func TestLadderCounts(t *testing.T) {
	prox := []float64{0.9, -0.72, 2.0, 0.32, 0.05}
	dist := []float64{1.5, 0.8, -0.58, -0.4, 3.0}
	steps := LadderCounts(prox, dist, DefaultMaskSettings())
	require.Len(t, steps, 15)

	want := []int{1, 1, 2, 2, 2, 3, 3, 3, 3, 3, 4, 4, 4, 4, 4}
	for i, s := range steps {
		assert.Equal(t, want[i], s.Count, "threshold %.2f", s.Threshold)
	}

	// The ladder policy selects the first step that reaches the target.
	for target := 1; target <= 4; target++ {
		m, err := SelectSamples(prox, dist, DefaultMaskSettings(), target)
		require.NoError(t, err)
		for _, s := range steps {
			if s.Count >= target {
				assert.InDelta(t, s.Threshold, m.Threshold, 1e-12)
				break
			}
		}
	}
}

func TestAll(t *testing.T) {
	m := All(4)
	assert.Equal(t, 4, m.Count())
	assert.Zero(t, m.Threshold)
}
