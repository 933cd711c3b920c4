package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

var (
	axisX = r3.Vector{X: 1}
	axisY = r3.Vector{Y: 1}
	axisZ = r3.Vector{Z: 1}
)

// Three vectors used to project vertices onto a line: project on the plane
// orthogonal to the first, then on the plane orthogonal to the second, then
// take the dot product with the third.
type projectionBasis [3]r3.Vector

type interval struct {
	min float64
	max float64
}

// Box obtained by transforming the unit cube [-0.5, 0.5]^3 to world space.
// Everything needed by the separating axis test is computed once in
// NewOrientedBox; the box is immutable afterwards.
type OrientedBox struct {
	Box      Mat4
	inverse  Mat4
	vertices [8]r3.Vector
	axes     [3]r3.Vector
	bases    [6]projectionBasis
	bounds   [6]interval
}

// Builds an OrientedBox from the transform of the unit cube
func NewOrientedBox(box Mat4) (*OrientedBox, error) {
	inverse, err := box.Inverse()
	if err != nil {
		return nil, err
	}

	obb := newSeparatingBox(box)
	obb.inverse = inverse
	return obb, nil
}

// Builds the separating axis data only. Flat boxes have no inverse but can
// still be tested against an AABB.
func newSeparatingBox(box Mat4) *OrientedBox {
	obb := &OrientedBox{Box: box}

	unit := AABB{
		Min: r3.Vector{X: -0.5, Y: -0.5, Z: -0.5},
		Max: r3.Vector{X: 0.5, Y: 0.5, Z: 0.5},
	}
	for i, v := range unit.Vertices() {
		obb.vertices[i] = box.Transform(v)
	}

	origin := box.Transform(r3.Vector{})
	obb.axes[0] = normalize(box.Transform(axisX).Sub(origin))
	obb.axes[1] = normalize(box.Transform(axisY).Sub(origin))
	obb.axes[2] = normalize(box.Transform(axisZ).Sub(origin))

	a := obb.axes
	obb.bases = [6]projectionBasis{
		{a[0], a[1], a[2]},
		{a[1], a[2], a[0]},
		{a[2], a[0], a[1]},
		{axisX, axisY, axisZ},
		{axisY, axisZ, axisX},
		{axisZ, axisX, axisY},
	}

	for i, basis := range obb.bases {
		obb.bounds[i] = projectVertices(obb.vertices[:], basis)
	}

	return obb
}

// Separating axis test against the six cached projection bases
func (obb *OrientedBox) Intersects(aabb AABB) bool {
	vertices := aabb.Vertices()
	for i, basis := range obb.bases {
		projected := projectVertices(vertices[:], basis)
		bound := obb.bounds[i]
		if projected.max < bound.min || projected.min > bound.max {
			return false
		}
	}
	return true
}

func (obb *OrientedBox) Inside(p r3.Vector) bool {
	local := obb.inverse.Transform(p)
	return local.X >= -0.5 && local.X <= 0.5 &&
		local.Y >= -0.5 && local.Y <= 0.5 &&
		local.Z >= -0.5 && local.Z <= 0.5
}

func projectVertices(vertices []r3.Vector, basis projectionBasis) interval {
	out := interval{min: math.Inf(1), max: math.Inf(-1)}
	for _, v := range vertices {
		p := projectPoint(projectPoint(v, basis[0]), basis[1])
		d := p.Dot(basis[2])
		out.min = math.Min(out.min, d)
		out.max = math.Max(out.max, d)
	}
	return out
}

// Projects p on the plane through the origin with normal n
func projectPoint(p, n r3.Vector) r3.Vector {
	return p.Sub(n.Mul(p.Dot(n)))
}

// Divides by the norm instead of multiplying by its inverse so that
// axis aligned vectors normalize to exact unit vectors.
func normalize(v r3.Vector) r3.Vector {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return r3.Vector{X: v.X / n, Y: v.Y / n, Z: v.Z / n}
}
