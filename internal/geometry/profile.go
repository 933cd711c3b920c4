package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// One straight piece of a profile polyline
type Segment struct {
	Start   r3.Vector
	End     r3.Vector
	Length  float64
	Angle   float64
	Mileage float64 // length of all the preceding segments
	Proj    Mat4    // world to segment local: x along the segment, y lateral
}

// Polyline buffered by Width on the ground plane. Z is ignored.
type Profile struct {
	Points   []r3.Vector
	Width    float64
	Segments []Segment
}

func NewProfile(points []r3.Vector, width float64) *Profile {
	profile := &Profile{
		Points: points,
		Width:  width,
	}
	profile.UpdateSegments()
	return profile
}

// Rebuilds the segment list from Points. Must be called after every change
// of the point list. Zero length segments are skipped.
func (p *Profile) UpdateSegments() {
	p.Segments = p.Segments[:0]
	mileage := 0.0
	for i := 0; i+1 < len(p.Points); i++ {
		start := r3.Vector{X: p.Points[i].X, Y: p.Points[i].Y}
		end := r3.Vector{X: p.Points[i+1].X, Y: p.Points[i+1].Y}
		delta := end.Sub(start)
		length := delta.Norm()
		if length == 0 {
			continue
		}
		angle := math.Atan2(delta.Y, delta.X)
		p.Segments = append(p.Segments, Segment{
			Start:   start,
			End:     end,
			Length:  length,
			Angle:   angle,
			Mileage: mileage,
			Proj:    RotateZ(-angle).Mul(Translate(-start.X, -start.Y, 0)),
		})
		mileage += length
	}
}

// Total length of the polyline
func (p *Profile) Length() float64 {
	if len(p.Segments) == 0 {
		return 0
	}
	last := p.Segments[len(p.Segments)-1]
	return last.Mileage + last.Length
}

func (p *Profile) Intersects(aabb AABB) bool {
	height := aabb.Max.Z - aabb.Min.Z
	cz := (aabb.Max.Z + aabb.Min.Z) / 2
	for _, segment := range p.Segments {
		box := Translate(segment.Start.X, segment.Start.Y, cz).
			Mul(RotateZ(segment.Angle)).
			Mul(Scale(segment.Length, p.Width, 2*height)).
			Mul(Translate(0.5, 0, 0))
		if newSeparatingBox(box).Intersects(aabb) {
			return true
		}
	}
	return false
}

func (p *Profile) Inside(point r3.Vector) bool {
	_, _, ok := p.Locate(point)
	return ok
}

// Finds the first segment that contains the point and returns its index
// together with the point in that segment's local coordinates.
func (p *Profile) Locate(point r3.Vector) (int, r3.Vector, bool) {
	half := p.Width / 2
	for i, segment := range p.Segments {
		local := segment.Proj.Transform(point)
		if local.X > 0 && local.X < segment.Length && local.Y >= -half && local.Y <= half {
			return i, local, true
		}
	}
	return -1, r3.Vector{}, false
}
