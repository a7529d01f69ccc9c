package trial

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"imu-jointcenter/internal/joint"
)

// File format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Optional header line "g=<m/s²>" records the gravity used when the trial was produced.
// - Data lines are comma separated:
//   t, proximal acc(3), gyr(3), angacc(3), distal acc(3), gyr(3), angacc(3)
//   optionally followed by the 9 row-major entries of the distal-to-proximal rotation.
//   Every data line of a file has the same number of fields.
//
// Units are SI: s, m/s², rad/s, rad/s².

const (
	fieldsBase     = 19
	fieldsRotation = 28
)

// Trial is one recording of a proximal/distal sensor pair.
type Trial struct {
	Times []float64
	Pair  joint.SegmentPair
	// Gravity from the "g=" header; zero when absent.
	Gravity float64
}

// Len returns the sample count.
func (t *Trial) Len() int {
	return len(t.Times)
}

// HasRotations reports whether the trial carries one rotation per sample.
func (t *Trial) HasRotations() bool {
	return len(t.Pair.Rotations) > 0 && len(t.Pair.Rotations) == len(t.Times)
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() (Trial, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var tr Trial
	width := 0
	lineNum := 0
	for s.Scan() {
		lineNum++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "g=") {
			g, err := strconv.ParseFloat(strings.TrimSpace(line[2:]), 64)
			if err != nil {
				return Trial{}, fmt.Errorf("line %d: invalid gravity header: %w", lineNum, err)
			}
			tr.Gravity = g
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) != fieldsBase && len(parts) != fieldsRotation {
			return Trial{}, fmt.Errorf("line %d: got %d fields, want %d or %d", lineNum, len(parts), fieldsBase, fieldsRotation)
		}
		if width == 0 {
			width = len(parts)
		} else if len(parts) != width {
			return Trial{}, fmt.Errorf("line %d: got %d fields, previous lines have %d", lineNum, len(parts), width)
		}

		vals := make([]float64, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return Trial{}, fmt.Errorf("line %d field %d: %w", lineNum, i+1, err)
			}
			vals[i] = v
		}
		tr.append(vals)
	}
	if err := s.Err(); err != nil {
		return Trial{}, err
	}
	if tr.Len() == 0 {
		return Trial{}, errors.New("trial has no samples")
	}
	return tr, nil
}

func vec(v []float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func (t *Trial) append(v []float64) {
	t.Times = append(t.Times, v[0])
	p, d := &t.Pair.Proximal, &t.Pair.Distal
	p.Acc = append(p.Acc, vec(v[1:4]))
	p.Gyr = append(p.Gyr, vec(v[4:7]))
	p.AngAcc = append(p.AngAcc, vec(v[7:10]))
	d.Acc = append(d.Acc, vec(v[10:13]))
	d.Gyr = append(d.Gyr, vec(v[13:16]))
	d.AngAcc = append(d.AngAcc, vec(v[16:19]))
	if len(v) == fieldsRotation {
		rot := make([]float64, 9)
		copy(rot, v[19:fieldsRotation])
		t.Pair.Rotations = append(t.Pair.Rotations, r3.NewMat(rot))
	}
}

// ReadFile reads the trial stored at path.
func ReadFile(path string) (Trial, error) {
	f, err := os.Open(path)
	if err != nil {
		return Trial{}, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

// Write encodes t in the trial file format.
func Write(w io.Writer, t Trial) error {
	n := t.Len()
	if t.Pair.Proximal.Len() != n || t.Pair.Distal.Len() != n {
		return fmt.Errorf("trial series lengths do not match %d timestamps", n)
	}
	withRot := t.HasRotations()
	if len(t.Pair.Rotations) > 0 && !withRot {
		return fmt.Errorf("trial has %d rotations for %d samples", len(t.Pair.Rotations), n)
	}

	bw := bufio.NewWriterSize(w, 64*1024)
	if t.Gravity > 0 {
		if _, err := fmt.Fprintf(bw, "g=%s\n", fmtFloat(t.Gravity)); err != nil {
			return err
		}
	}
	buf := make([]string, 0, fieldsRotation)
	for i := 0; i < n; i++ {
		buf = buf[:0]
		buf = append(buf, fmtFloat(t.Times[i]))
		for _, v := range []r3.Vec{
			t.Pair.Proximal.Acc[i], t.Pair.Proximal.Gyr[i], t.Pair.Proximal.AngAcc[i],
			t.Pair.Distal.Acc[i], t.Pair.Distal.Gyr[i], t.Pair.Distal.AngAcc[i],
		} {
			buf = append(buf, fmtFloat(v.X), fmtFloat(v.Y), fmtFloat(v.Z))
		}
		if withRot {
			r := t.Pair.Rotations[i]
			if r == nil {
				return fmt.Errorf("trial rotation %d is nil", i)
			}
			for row := 0; row < 3; row++ {
				for col := 0; col < 3; col++ {
					buf = append(buf, fmtFloat(r.At(row, col)))
				}
			}
		}
		if _, err := bw.WriteString(strings.Join(buf, ",") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile creates path and writes t to it.
func WriteFile(path string, t Trial) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, t); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// fmtFloat keeps full precision so a written trial reads back bit-for-bit.
func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
