// Package align rotates and translates triangulated points into an
// experiment-defined reference frame.
//
// The basis is built from median landmark positions so that occasional
// mis-triangulated frames do not tilt the axes.
package align
