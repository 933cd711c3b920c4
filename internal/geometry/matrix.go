package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// 4x4 affine transform stored column major: element (row, col) lives at
// index col*4+row, so the translation occupies indices 12, 13 and 14.
type Mat4 [16]float64

func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func Translate(x, y, z float64) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

func Scale(x, y, z float64) Mat4 {
	m := Identity()
	m[0], m[5], m[10] = x, y, z
	return m
}

// Counter clockwise rotation of angle radians around the z axis
func RotateZ(angle float64) Mat4 {
	c, s := math.Cos(angle), math.Sin(angle)
	m := Identity()
	m[0], m[1] = c, s
	m[4], m[5] = -s, c
	return m
}

func (m Mat4) At(row, col int) float64 {
	return m[col*4+row]
}

// Returns m * o, i.e. o is applied first when transforming points
func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * o[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// Transforms a point (w = 1). The projective row is ignored, all
// transforms used here are affine.
func (m Mat4) Transform(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12],
		Y: m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13],
		Z: m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14],
	}
}

func (m Mat4) dense() *mat.Dense {
	d := mat.NewDense(4, 4, nil)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			d.Set(row, col, m.At(row, col))
		}
	}
	return d
}

// Inverts the transform. Singular matrices are reported as an error.
func (m Mat4) Inverse() (Mat4, error) {
	var inv mat.Dense
	if err := inv.Inverse(m.dense()); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) && !math.IsInf(float64(cond), 1) {
			// ill conditioned but computed
			return fromDense(&inv), nil
		}
		return Mat4{}, errors.Wrap(err, "matrix is not invertible")
	}
	return fromDense(&inv), nil
}

func fromDense(d *mat.Dense) Mat4 {
	var out Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[col*4+row] = d.At(row, col)
		}
	}
	return out
}
