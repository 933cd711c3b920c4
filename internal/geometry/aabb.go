package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// Axis aligned bounding box. The zero value is a degenerate box at the origin,
// use EmptyAABB to get a box that can be grown with Expand.
type AABB struct {
	Min r3.Vector
	Max r3.Vector
}

// Builds an AABB with min = +inf and max = -inf on every axis
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// Builds an AABB that contains the whole space
func InfiniteAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: r3.Vector{X: -inf, Y: -inf, Z: -inf},
		Max: r3.Vector{X: inf, Y: inf, Z: inf},
	}
}

func NewAABB(min, max r3.Vector) AABB {
	return AABB{Min: min, Max: max}
}

func (b AABB) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

func (b AABB) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

func (b AABB) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Grows the box so that it contains the given point
func (b *AABB) Expand(p r3.Vector) {
	b.Min = r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
}

// Grows the box so that it contains the other box
func (b *AABB) ExpandAABB(other AABB) {
	if other.IsEmpty() {
		return
	}
	b.Expand(other.Min)
	b.Expand(other.Max)
}

// Slab test. Touching boxes intersect.
func (b AABB) Intersects(other AABB) bool {
	if b.Max.X < other.Min.X || b.Min.X > other.Max.X {
		return false
	}
	if b.Max.Y < other.Min.Y || b.Min.Y > other.Max.Y {
		return false
	}
	if b.Max.Z < other.Min.Z || b.Min.Z > other.Max.Z {
		return false
	}
	return true
}

// Componentwise bounds check, boundaries included
func (b AABB) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Returns the 8 corners of the box. Corner i takes max on x if bit 2 is set,
// on y if bit 1 is set and on z if bit 0 is set.
func (b AABB) Vertices() [8]r3.Vector {
	var out [8]r3.Vector
	for i := 0; i < 8; i++ {
		v := b.Min
		if i&0b100 != 0 {
			v.X = b.Max.X
		}
		if i&0b010 != 0 {
			v.Y = b.Max.Y
		}
		if i&0b001 != 0 {
			v.Z = b.Max.Z
		}
		out[i] = v
	}
	return out
}

// Computes the bounds of the octant with the given child index.
// Bit 2 selects the upper x half, bit 1 the upper y half, bit 0 the upper z half.
func (b AABB) ChildAABB(index int) AABB {
	min := b.Min
	max := b.Max
	size := b.Size()

	if index&0b001 > 0 {
		min.Z += size.Z / 2
	} else {
		max.Z -= size.Z / 2
	}

	if index&0b010 > 0 {
		min.Y += size.Y / 2
	} else {
		max.Y -= size.Y / 2
	}

	if index&0b100 > 0 {
		min.X += size.X / 2
	} else {
		max.X -= size.X / 2
	}

	return AABB{Min: min, Max: max}
}
