package converters

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/geometry"
)

func pointsAt(t *testing.T, scale float64, positions []r3.Vector) *data.Points {
	attrs, err := attributes.NewAttributes([]attributes.Attribute{
		attributes.NewAttribute("position", attributes.Int32, 3),
	}, r3.Vector{X: scale, Y: scale, Z: scale}, r3.Vector{})
	test.That(t, err, test.ShouldBeNil)

	points := data.NewPoints(attrs, len(positions))
	for i, p := range positions {
		buf := points.Buffers[0][i*12:]
		binary.LittleEndian.PutUint32(buf[0:], uint32(int32(math.Round(p.X/scale))))
		binary.LittleEndian.PutUint32(buf[4:], uint32(int32(math.Round(p.Y/scale))))
		binary.LittleEndian.PutUint32(buf[8:], uint32(int32(math.Round(p.Z/scale))))
	}
	return points
}

func lShape() *geometry.Profile {
	return geometry.NewProfile([]r3.Vector{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, 2)
}

func TestProject(t *testing.T) {
	projector := NewProfileProjector([]*geometry.Profile{lShape()})

	distance, z, ok := projector.Project(r3.Vector{X: 4, Y: 0.5, Z: 7})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, distance, test.ShouldAlmostEqual, 4.0)
	test.That(t, z, test.ShouldEqual, 7.0)

	// second leg starts at mileage 10
	distance, _, ok = projector.Project(r3.Vector{X: 10.5, Y: 3, Z: 0})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, distance, test.ShouldAlmostEqual, 13.0)

	_, _, ok = projector.Project(r3.Vector{X: 5, Y: 5})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestApply(t *testing.T) {
	projector := NewProfileProjector([]*geometry.Profile{lShape()})
	points := pointsAt(t, 0.01, []r3.Vector{
		{X: 2, Y: 0, Z: 1.5},
		{X: 9.5, Y: 6, Z: -3},
	})

	projected, err := projector.Apply(points)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, projected.Attributes.Index(ProjectedProfileAttribute), test.ShouldEqual, 1)
	test.That(t, points.Attributes.Index(ProjectedProfileAttribute), test.ShouldEqual, -1)

	scale := projected.Attributes.PosScale
	distance, z := DecodeProjected(projected.Record(1, 0), scale)
	test.That(t, distance, test.ShouldAlmostEqual, 2.0, 1e-9)
	test.That(t, z, test.ShouldAlmostEqual, 1.5, 1e-9)

	distance, z = DecodeProjected(projected.Record(1, 1), scale)
	test.That(t, distance, test.ShouldAlmostEqual, 16.0, 1e-9)
	test.That(t, z, test.ShouldAlmostEqual, -3.0, 1e-9)
}

func TestApplyOverflow(t *testing.T) {
	long := geometry.NewProfile([]r3.Vector{{X: -1e7, Y: 0}, {X: 1e7, Y: 0}}, 2)
	points := pointsAt(t, 0.001, []r3.Vector{{X: 0, Y: 0, Z: 0}})

	// the raw position fits thanks to the offset, the mileage of 1.5e7 does not
	points.Attributes.PosOffset = r3.Vector{X: 5e6}
	_, err := NewProfileProjector([]*geometry.Profile{long}).Apply(points)
	test.That(t, err, test.ShouldNotBeNil)
}
