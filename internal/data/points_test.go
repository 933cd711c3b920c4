package data

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/ecopia-map/potree_extract/internal/attributes"
)

func newTestPoints(t *testing.T, n int) *Points {
	attrs, err := attributes.NewAttributes([]attributes.Attribute{
		attributes.NewAttribute("position", attributes.Int32, 3),
		attributes.NewAttribute("intensity", attributes.Uint16, 1),
	}, r3.Vector{X: 0.5, Y: 0.25, Z: 1}, r3.Vector{X: 100, Y: 200, Z: 300})
	test.That(t, err, test.ShouldBeNil)

	points := NewPoints(attrs, n)
	position := points.Buffer("position")
	intensity := points.Buffer("intensity")
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(position[i*12:], uint32(i))
		binary.LittleEndian.PutUint32(position[i*12+4:], uint32(2*i))
		binary.LittleEndian.PutUint32(position[i*12+8:], uint32(int32(-i)))
		binary.LittleEndian.PutUint16(intensity[i*2:], uint16(1000+i))
	}
	return points
}

func TestPosition(t *testing.T) {
	points := newTestPoints(t, 4)
	test.That(t, points.HasPosition(), test.ShouldBeTrue)
	test.That(t, points.Position(3), test.ShouldResemble, r3.Vector{X: 101.5, Y: 201.5, Z: 297})
}

func TestCompactAcceptAll(t *testing.T) {
	points := newTestPoints(t, 10)
	before := [][]byte{
		append([]byte{}, points.Buffers[0]...),
		append([]byte{}, points.Buffers[1]...),
	}

	accepted := make([]int, 10)
	for i := range accepted {
		accepted[i] = i
	}
	points.Compact(accepted)

	test.That(t, points.NumPoints, test.ShouldEqual, 10)
	test.That(t, bytes.Equal(points.Buffers[0], before[0]), test.ShouldBeTrue)
	test.That(t, bytes.Equal(points.Buffers[1], before[1]), test.ShouldBeTrue)
}

func TestCompactRejectAll(t *testing.T) {
	points := newTestPoints(t, 10)
	points.Compact(nil)

	test.That(t, points.NumPoints, test.ShouldEqual, 0)
	test.That(t, points.Buffers[0], test.ShouldHaveLength, 0)
	test.That(t, points.Buffers[1], test.ShouldHaveLength, 0)
}

func TestCompactSubset(t *testing.T) {
	points := newTestPoints(t, 10)
	points.Compact([]int{1, 4, 9})

	test.That(t, points.NumPoints, test.ShouldEqual, 3)
	test.That(t, points.Buffers[0], test.ShouldHaveLength, 36)
	x, y, _ := points.RawPosition(1)
	test.That(t, x, test.ShouldEqual, int32(4))
	test.That(t, y, test.ShouldEqual, int32(8))
	test.That(t, binary.LittleEndian.Uint16(points.Record(1, 2)), test.ShouldEqual, uint16(1009))
}

func TestWithAttribute(t *testing.T) {
	points := newTestPoints(t, 2)

	extra := attributes.NewAttribute("position_projected_profile", attributes.Int32, 2)
	_, err := points.WithAttribute(extra, make([]byte, 3))
	test.That(t, err, test.ShouldNotBeNil)

	extended, err := points.WithAttribute(extra, make([]byte, 16))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, extended.Buffer("position_projected_profile"), test.ShouldHaveLength, 16)
	test.That(t, extended.Position(1), test.ShouldResemble, points.Position(1))
	test.That(t, points.Buffer("position_projected_profile"), test.ShouldBeNil)
}
