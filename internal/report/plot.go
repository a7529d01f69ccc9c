package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"imu-jointcenter/internal/joint"
)

var (
	proxColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	distColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	keepColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// PlotMask writes a PNG showing both sensors' absolute dynamic acceleration
// over time, the samples kept by mask and the mask threshold.
func PlotMask(path, title string, times, prox, dist []float64, mask joint.Mask) error {
	if len(times) != len(prox) || len(times) != len(dist) || len(mask.Keep) != len(times) {
		return fmt.Errorf("plot: series lengths differ")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "| |a| - g | (m/s²)"

	proxPts := make(plotter.XYs, len(times))
	distPts := make(plotter.XYs, len(times))
	keepPts := make(plotter.XYs, 0, len(times))
	for i, t := range times {
		proxPts[i] = plotter.XY{X: t, Y: math.Abs(prox[i])}
		distPts[i] = plotter.XY{X: t, Y: math.Abs(dist[i])}
		if mask.Keep[i] {
			keepPts = append(keepPts, plotter.XY{X: t, Y: math.Min(math.Abs(prox[i]), math.Abs(dist[i]))})
		}
	}

	proxLine, err := plotter.NewLine(proxPts)
	if err != nil {
		return err
	}
	proxLine.Color = proxColor
	proxLine.Width = vg.Points(0.5)
	p.Add(proxLine)
	p.Legend.Add("proximal", proxLine)

	distLine, err := plotter.NewLine(distPts)
	if err != nil {
		return err
	}
	distLine.Color = distColor
	distLine.Width = vg.Points(0.5)
	p.Add(distLine)
	p.Legend.Add("distal", distLine)

	if len(keepPts) > 0 {
		kept, err := plotter.NewScatter(keepPts)
		if err != nil {
			return err
		}
		kept.GlyphStyle.Color = keepColor
		kept.GlyphStyle.Radius = vg.Points(1)
		p.Add(kept)
		p.Legend.Add(fmt.Sprintf("retained (%d)", len(keepPts)), kept)
	}

	if mask.Threshold > 0 {
		th := mask.Threshold
		fn := plotter.NewFunction(func(float64) float64 { return th })
		fn.Color = color.Black
		fn.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(fn)
		p.Legend.Add(fmt.Sprintf("threshold %.2f", th), fn)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}
