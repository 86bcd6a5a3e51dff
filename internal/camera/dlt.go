package camera

import (
	"github.com/banshee-data/pose3d/internal/pose"
	"gonum.org/v1/gonum/mat"
)

// triangulateDLT solves for the homogeneous point that best satisfies
// x*P[2]-P[0] = 0 and y*P[2]-P[1] = 0 for every view, using the right
// singular vector of the smallest singular value. Points are undistorted
// normalized coordinates and projections are the matching [R|t] matrices.
func triangulateDLT(points []pose.Point2, projections []*mat.Dense) pose.Point3 {
	n := len(points)
	if n < 2 {
		return pose.Point3{}
	}
	a := mat.NewDense(2*n, 4, nil)
	for i, p := range points {
		pm := projections[i]
		for j := 0; j < 4; j++ {
			a.Set(2*i, j, p.X*pm.At(2, j)-pm.At(0, j))
			a.Set(2*i+1, j, p.Y*pm.At(2, j)-pm.At(1, j))
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return pose.Point3{}
	}
	var v mat.Dense
	svd.VTo(&v)
	_, cols := v.Dims()
	w := v.At(3, cols-1)
	if w == 0 {
		return pose.Point3{}
	}
	return pose.P3(v.At(0, cols-1)/w, v.At(1, cols-1)/w, v.At(2, cols-1)/w)
}
