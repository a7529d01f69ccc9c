// Package joint estimates the center of an anatomical joint from two inertial
// sensors mounted on the adjacent body segments.
//
// Both sensors obey the rigid-body relation
//
//	a = a_c + K(w, wd)·r
//
// where a is the measured specific force, a_c the acceleration of the joint
// center expressed in the sensor frame, w and wd the angular velocity and
// angular acceleration, and r the position of the sensor relative to the joint
// center in the sensor frame. An Estimator recovers r for the proximal and the
// distal sensor with one of two methods:
//
//   - SAC solves the stacked linear system [K_p | -R·K_d]·r = a_p - R·a_d in
//     closed form. It needs the distal-to-proximal rotation for every sample.
//   - SSFC matches the magnitudes |a_p - K_p·r_p| and |a_d - K_d·r_d| with an
//     iterative Levenberg-Marquardt fit and needs no rotations.
//
// Samples with little dynamic motion are dropped before fitting (see Mask).
// The package performs no I/O and keeps no state between Compute calls.
package joint
