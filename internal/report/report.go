// Package report renders joint-center estimates and mask diagnostics.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"gonum.org/v1/gonum/spatial/r3"

	"imu-jointcenter/internal/joint"
)

// Result is the outcome for one trial.
type Result struct {
	Trial    string
	Estimate joint.Estimate
	Err      error
}

// WriteTable renders one row per trial.
func WriteTable(w io.Writer, results []Result) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"trial", "method", "proximal (m)", "distal (m)", "residual", "samples", "threshold", "error"})
	for _, r := range results {
		if r.Err != nil {
			tw.AppendRow(table.Row{r.Trial, "", "", "", "", "", "", r.Err.Error()})
			continue
		}
		e := r.Estimate
		tw.AppendRow(table.Row{
			r.Trial,
			e.Method.String(),
			fmtVec(e.Proximal),
			fmtVec(e.Distal),
			fmt.Sprintf("%.4g", e.Residual),
			e.Samples,
			fmt.Sprintf("%.2f", e.Threshold),
			"",
		})
	}
	tw.Render()
}

func fmtVec(v r3.Vec) string {
	return fmt.Sprintf("[%+.4f %+.4f %+.4f]", v.X, v.Y, v.Z)
}

type jsonEstimate struct {
	Trial       string      `json:"trial"`
	Method      string      `json:"method,omitempty"`
	Proximal    *[3]float64 `json:"proximal,omitempty"`
	Distal      *[3]float64 `json:"distal,omitempty"`
	Residual    *float64    `json:"residual,omitempty"`
	Samples     int         `json:"samples,omitempty"`
	Threshold   *float64    `json:"threshold,omitempty"`
	Rank        int         `json:"rank,omitempty"`
	Cond        float64     `json:"cond,omitempty"`
	Iterations  int         `json:"iterations,omitempty"`
	Evaluations int         `json:"evaluations,omitempty"`
	Error       string      `json:"error,omitempty"`
}

func arr(v r3.Vec) *[3]float64 {
	return &[3]float64{v.X, v.Y, v.Z}
}

// WriteJSON writes the results as a JSON array.
func WriteJSON(w io.Writer, results []Result) error {
	out := make([]jsonEstimate, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			out = append(out, jsonEstimate{Trial: r.Trial, Error: r.Err.Error()})
			continue
		}
		e := r.Estimate
		out = append(out, jsonEstimate{
			Trial:       r.Trial,
			Method:      e.Method.String(),
			Proximal:    arr(e.Proximal),
			Distal:      arr(e.Distal),
			Residual:    &e.Residual,
			Samples:     e.Samples,
			Threshold:   &e.Threshold,
			Rank:        e.Rank,
			Cond:        e.Cond,
			Iterations:  e.Iterations,
			Evaluations: e.Evaluations,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteLadder renders the retained sample count at every mask threshold and
// marks the first one that reaches minSamples.
func WriteLadder(w io.Writer, steps []joint.LadderStep, minSamples int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"threshold (m/s²)", "retained", ""})
	picked := false
	for _, s := range steps {
		mark := ""
		if !picked && s.Count >= minSamples {
			mark = "<- selected"
			picked = true
		}
		tw.AppendRow(table.Row{fmt.Sprintf("%.2f", s.Threshold), s.Count, mark})
	}
	tw.Render()
}
