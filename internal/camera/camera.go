package camera

import (
	"fmt"
	"math"

	"github.com/banshee-data/pose3d/internal/pose"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// undistortIterations bounds the fixed-point undistortion solve.
const undistortIterations = 20

// Camera is a calibrated pinhole camera with OpenCV-style radial/tangential
// distortion (k1, k2, p1, p2, k3).
type Camera struct {
	Name string
	Size [2]int

	// K is the 3x3 intrinsic matrix.
	K *mat.Dense
	// Dist holds k1, k2, p1, p2, k3.
	Dist [5]float64
	// R is the world-to-camera rotation, T the translation.
	R *mat.Dense
	T r3.Vec
}

// New builds a Camera from intrinsics, distortion, a Rodrigues rotation
// vector and a translation.
func New(name string, size [2]int, k [3][3]float64, dist []float64, rvec, tvec [3]float64) (*Camera, error) {
	if len(dist) > 5 {
		return nil, fmt.Errorf("camera %s: %d distortion coefficients, want at most 5", name, len(dist))
	}
	if k[0][0] == 0 || k[1][1] == 0 {
		return nil, fmt.Errorf("camera %s: zero focal length", name)
	}
	c := &Camera{
		Name: name,
		Size: size,
		K: mat.NewDense(3, 3, []float64{
			k[0][0], k[0][1], k[0][2],
			k[1][0], k[1][1], k[1][2],
			k[2][0], k[2][1], k[2][2],
		}),
		R: Rodrigues(r3.Vec{X: rvec[0], Y: rvec[1], Z: rvec[2]}),
		T: r3.Vec{X: tvec[0], Y: tvec[1], Z: tvec[2]},
	}
	copy(c.Dist[:], dist)
	return c, nil
}

// Rodrigues converts an axis-angle rotation vector to a 3x3 rotation matrix.
func Rodrigues(rv r3.Vec) *mat.Dense {
	theta := r3.Norm(rv)
	if theta < 1e-12 {
		// first-order expansion: I + [r]x
		return mat.NewDense(3, 3, []float64{
			1, -rv.Z, rv.Y,
			rv.Z, 1, -rv.X,
			-rv.Y, rv.X, 1,
		})
	}
	k := r3.Scale(1/theta, rv)
	c, s := math.Cos(theta), math.Sin(theta)
	v := 1 - c
	return mat.NewDense(3, 3, []float64{
		c + k.X*k.X*v, k.X*k.Y*v - k.Z*s, k.X*k.Z*v + k.Y*s,
		k.Y*k.X*v + k.Z*s, c + k.Y*k.Y*v, k.Y*k.Z*v - k.X*s,
		k.Z*k.X*v - k.Y*s, k.Z*k.Y*v + k.X*s, c + k.Z*k.Z*v,
	})
}

// Extrinsics returns the 3x4 [R|t] matrix.
func (c *Camera) Extrinsics() *mat.Dense {
	e := mat.NewDense(3, 4, nil)
	e.Slice(0, 3, 0, 3).(*mat.Dense).Copy(c.R)
	e.Set(0, 3, c.T.X)
	e.Set(1, 3, c.T.Y)
	e.Set(2, 3, c.T.Z)
	return e
}

// toCamera maps a world point into the camera frame.
func (c *Camera) toCamera(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: c.R.At(0, 0)*p.X + c.R.At(0, 1)*p.Y + c.R.At(0, 2)*p.Z + c.T.X,
		Y: c.R.At(1, 0)*p.X + c.R.At(1, 1)*p.Y + c.R.At(1, 2)*p.Z + c.T.Y,
		Z: c.R.At(2, 0)*p.X + c.R.At(2, 1)*p.Y + c.R.At(2, 2)*p.Z + c.T.Z,
	}
}

// distort applies the lens model to normalized image coordinates.
func (c *Camera) distort(x, y float64) (float64, float64) {
	k1, k2, p1, p2, k3 := c.Dist[0], c.Dist[1], c.Dist[2], c.Dist[3], c.Dist[4]
	r2 := x*x + y*y
	radial := 1 + k1*r2 + k2*r2*r2 + k3*r2*r2*r2
	xd := x*radial + 2*p1*x*y + p2*(r2+2*x*x)
	yd := y*radial + p1*(r2+2*y*y) + 2*p2*x*y
	return xd, yd
}

// Project maps a world point to pixel coordinates. The division by depth is
// signed, so points behind the camera project through the centre mirrored.
// Only absent inputs and points on the camera plane yield an absent
// observation.
func (c *Camera) Project(p pose.Point3) pose.Point2 {
	if !p.Valid {
		return pose.Point2{}
	}
	pc := c.toCamera(r3.Vec{X: p.X, Y: p.Y, Z: p.Z})
	if pc.Z == 0 {
		return pose.Point2{}
	}
	xd, yd := c.distort(pc.X/pc.Z, pc.Y/pc.Z)
	u := c.K.At(0, 0)*xd + c.K.At(0, 1)*yd + c.K.At(0, 2)
	v := c.K.At(1, 1)*yd + c.K.At(1, 2)
	return pose.P2(u, v)
}

// Undistort maps a pixel observation to undistorted normalized coordinates
// by fixed-point iteration on the lens model.
func (c *Camera) Undistort(p pose.Point2) pose.Point2 {
	if !p.Valid {
		return p
	}
	fx, fy := c.K.At(0, 0), c.K.At(1, 1)
	cx, cy := c.K.At(0, 2), c.K.At(1, 2)
	skew := c.K.At(0, 1)

	y0 := (p.Y - cy) / fy
	x0 := (p.X - cx - skew*y0) / fx

	k1, k2, p1, p2, k3 := c.Dist[0], c.Dist[1], c.Dist[2], c.Dist[3], c.Dist[4]
	x, y := x0, y0
	for i := 0; i < undistortIterations; i++ {
		r2 := x*x + y*y
		radial := 1 + k1*r2 + k2*r2*r2 + k3*r2*r2*r2
		dx := 2*p1*x*y + p2*(r2+2*x*x)
		dy := p1*(r2+2*y*y) + 2*p2*x*y
		nx := (x0 - dx) / radial
		ny := (y0 - dy) / radial
		if math.Abs(nx-x)+math.Abs(ny-y) < 1e-12 {
			x, y = nx, ny
			break
		}
		x, y = nx, ny
	}
	return pose.P2(x, y)
}
