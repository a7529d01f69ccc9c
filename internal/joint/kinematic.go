package joint

import "gonum.org/v1/gonum/spatial/r3"

// Kinematic returns the operator K = [w]×[w]× + [wd]×, so that
// K·r = w×(w×r) + wd×r is the centripetal plus tangential acceleration of a
// point at offset r on a body rotating with angular velocity w and angular
// acceleration wd.
func Kinematic(w, wd r3.Vec) *r3.Mat {
	var sw, swd r3.Mat
	sw.Skew(w)
	swd.Skew(wd)
	k := r3.NewMat(nil)
	k.Mul(&sw, &sw)
	k.Add(k, &swd)
	return k
}

// operators builds K for every retained sample of s.
func operators(s SensorSeries, idx []int) []*r3.Mat {
	ks := make([]*r3.Mat, len(idx))
	for j, i := range idx {
		ks[j] = Kinematic(s.Gyr[i], s.AngAcc[i])
	}
	return ks
}

// transported returns a - K·r: the acceleration carried from the sensor to
// the point at -r, i.e. the joint center when r is the true offset.
func transported(a r3.Vec, k *r3.Mat, r r3.Vec) r3.Vec {
	return r3.Sub(a, k.MulVec(r))
}
