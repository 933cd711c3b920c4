package decoder_test

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/decoder"
	"github.com/ecopia-map/potree_extract/internal/octree"
	"github.com/ecopia-map/potree_extract/internal/testutils"
)

func brotliPositions(t *testing.T, positions [][3]uint32) []byte {
	var stream []byte
	for _, p := range positions {
		stream = append(stream, testutils.EncodeMortonPosition(p[0], p[1], p[2])...)
	}
	for range positions {
		stream = binary.LittleEndian.AppendUint16(stream, 0)
	}
	for range positions {
		stream = append(stream, testutils.EncodeMortonColor(0, 0, 0)...)
	}
	compressed, err := testutils.Compress(stream)
	test.That(t, err, test.ShouldBeNil)
	return compressed
}

func TestMortonPositionRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	positions := [][3]uint32{
		{0, 0, 0},
		{1, 2, 3},
		{0xFFFFFF, 0, 0xFFFFFF},
		{0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFF},
		{0x80000000, 0x00010000, 0x7FFFFFFF},
	}
	for i := 0; i < 500; i++ {
		positions = append(positions, [3]uint32{
			uint32(rng.Intn(1 << 24)), uint32(rng.Intn(1 << 24)), uint32(rng.Intn(1 << 24)),
		})
		positions = append(positions, [3]uint32{rng.Uint32(), rng.Uint32(), rng.Uint32()})
	}

	compressed := brotliPositions(t, positions)
	node := &octree.Node{Name: "r", Type: octree.Leaf, NumPoints: uint32(len(positions)), ByteSize: int64(len(compressed))}
	points, err := decoder.NewDecoder(testutils.Attributes(0.001), decoder.EncodingBrotli, 0).Decode(bytes.NewReader(compressed), node)
	test.That(t, err, test.ShouldBeNil)

	for i, p := range positions {
		x, y, z := points.RawPosition(i)
		test.That(t, [3]uint32{uint32(x), uint32(y), uint32(z)}, test.ShouldResemble, p)
	}
}

func encodeDefault(points [][3]int32, intensities []uint16) []byte {
	var out []byte
	for i, p := range points {
		for _, v := range p {
			out = binary.LittleEndian.AppendUint32(out, uint32(v))
		}
		out = binary.LittleEndian.AppendUint16(out, intensities[i])
		out = append(out, 0, 0, 0, 0, 0, 0)
	}
	return out
}

func TestDecodeDefault(t *testing.T) {
	attrs := testutils.Attributes(0.01)
	positions := [][3]int32{{1, 2, 3}, {-4, 5, -6}, {700, 800, 900}}
	intensities := []uint16{10, 20, 30}
	raw := append([]byte{0xde, 0xad}, encodeDefault(positions, intensities)...)

	node := &octree.Node{Name: "r1", Type: octree.Leaf, NumPoints: 3, ByteOffset: 2, ByteSize: int64(len(raw) - 2)}
	points, err := decoder.NewDecoder(attrs, decoder.EncodingDefault, 0).Decode(bytes.NewReader(raw), node)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, points.NumPoints, test.ShouldEqual, 3)

	x, y, z := points.RawPosition(1)
	test.That(t, [3]int32{x, y, z}, test.ShouldResemble, positions[1])
	test.That(t, binary.LittleEndian.Uint16(points.Record(1, 2)), test.ShouldEqual, uint16(30))
	test.That(t, points.Position(2).X, test.ShouldAlmostEqual, 7.0, 1e-9)
}

func TestDecodeDefaultShortNode(t *testing.T) {
	attrs := testutils.Attributes(0.01)
	raw := make([]byte, attrs.Bytes*2)
	node := &octree.Node{Name: "r", Type: octree.Normal, NumPoints: 3, ByteOffset: 0, ByteSize: int64(len(raw))}

	_, err := decoder.NewDecoder(attrs, decoder.EncodingDefault, 0).Decode(bytes.NewReader(raw), node)
	test.That(t, errors.Is(err, decoder.ErrShortNode), test.ShouldBeTrue)
}

func TestDecodeRejectsProxy(t *testing.T) {
	attrs := testutils.Attributes(0.01)
	node := &octree.Node{Name: "r", Type: octree.Proxy, NumPoints: 3}
	_, err := decoder.NewDecoder(attrs, decoder.EncodingDefault, 0).Decode(bytes.NewReader(nil), node)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDecodeBrotli(t *testing.T) {
	attrs := testutils.Attributes(0.001)
	positions := [][3]uint32{{1, 2, 3}, {0xFFFFFF, 17, 0x1000000}, {0xFFFFFFFF, 0, 0x7FFFFFFF}}
	colors := [][3]uint16{{1, 2, 3}, {65535, 0, 300}, {9, 9, 9}}

	var stream []byte
	for _, p := range positions {
		stream = append(stream, testutils.EncodeMortonPosition(p[0], p[1], p[2])...)
	}
	for i := range positions {
		stream = binary.LittleEndian.AppendUint16(stream, uint16(100+i))
	}
	for _, c := range colors {
		stream = append(stream, testutils.EncodeMortonColor(c[0], c[1], c[2])...)
	}
	compressed, err := testutils.Compress(stream)
	test.That(t, err, test.ShouldBeNil)

	node := &octree.Node{Name: "r", Type: octree.Normal, NumPoints: 3, ByteSize: int64(len(compressed))}
	dec := decoder.NewDecoder(attrs, decoder.EncodingBrotli, 0)

	// decode twice to exercise the reused scratch state
	for round := 0; round < 2; round++ {
		points, err := dec.Decode(bytes.NewReader(compressed), node)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, points.NumPoints, test.ShouldEqual, 3)

		for i, p := range positions {
			x, y, z := points.RawPosition(i)
			test.That(t, [3]uint32{uint32(x), uint32(y), uint32(z)}, test.ShouldResemble, p)
			test.That(t, binary.LittleEndian.Uint16(points.Record(1, i)), test.ShouldEqual, uint16(100+i))

			rgb := points.Record(2, i)
			test.That(t, [3]uint16{
				binary.LittleEndian.Uint16(rgb[0:]),
				binary.LittleEndian.Uint16(rgb[2:]),
				binary.LittleEndian.Uint16(rgb[4:]),
			}, test.ShouldResemble, colors[i])
		}
	}
}

func TestDecodeBrotliCorrupt(t *testing.T) {
	attrs := testutils.Attributes(0.001)
	garbage := bytes.Repeat([]byte{0xff, 0x13, 0x77}, 50)
	node := &octree.Node{Name: "r5", Type: octree.Leaf, NumPoints: 2, ByteSize: int64(len(garbage))}

	_, err := decoder.NewDecoder(attrs, decoder.EncodingBrotli, 2).Decode(bytes.NewReader(garbage), node)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDecodeBrotliRetryBudget(t *testing.T) {
	attrs := testutils.Attributes(0.001)
	// far more data than one point needs
	compressed, err := testutils.Compress(make([]byte, 100000))
	test.That(t, err, test.ShouldBeNil)
	node := &octree.Node{Name: "r", Type: octree.Leaf, NumPoints: 1, ByteSize: int64(len(compressed))}

	_, err = decoder.NewDecoder(attrs, decoder.EncodingBrotli, 1).Decode(bytes.NewReader(compressed), node)
	var decodeErr *decoder.DecodeError
	test.That(t, errors.As(err, &decodeErr), test.ShouldBeTrue)
	test.That(t, decodeErr.Attempts, test.ShouldEqual, 1)
	test.That(t, decodeErr.Node, test.ShouldEqual, "r")

	// enough doublings to hold the whole stream
	points, err := decoder.NewDecoder(attrs, decoder.EncodingBrotli, 8).Decode(bytes.NewReader(compressed), node)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, points.NumPoints, test.ShouldEqual, 1)
}

func TestDecodeBrotliTruncated(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	positions := make([][3]uint32, 400)
	for i := range positions {
		positions[i] = [3]uint32{rng.Uint32(), rng.Uint32(), rng.Uint32()}
	}
	compressed := brotliPositions(t, positions)
	cut := compressed[:len(compressed)/2]

	node := &octree.Node{Name: "r3", Type: octree.Leaf, NumPoints: uint32(len(positions)), ByteSize: int64(len(cut))}
	_, err := decoder.NewDecoder(testutils.Attributes(0.001), decoder.EncodingBrotli, 0).Decode(bytes.NewReader(cut), node)
	var decodeErr *decoder.DecodeError
	test.That(t, errors.As(err, &decodeErr), test.ShouldBeTrue)
	test.That(t, decodeErr.Node, test.ShouldEqual, "r3")
	test.That(t, errors.Is(err, decoder.ErrShortNode), test.ShouldBeFalse)
}

func TestDecodeBrotliNarrowColor(t *testing.T) {
	attrs, err := attributes.NewAttributes([]attributes.Attribute{
		attributes.NewAttribute("position", attributes.Int32, 3),
		attributes.NewAttribute("rgb", attributes.Uint16, 2),
	}, r3.Vector{X: 0.001, Y: 0.001, Z: 0.001}, r3.Vector{})
	test.That(t, err, test.ShouldBeNil)

	stream := append(testutils.EncodeMortonPosition(1, 2, 3), testutils.EncodeMortonColor(1, 2, 3)...)
	compressed, err := testutils.Compress(stream)
	test.That(t, err, test.ShouldBeNil)

	node := &octree.Node{Name: "r", Type: octree.Leaf, NumPoints: 1, ByteSize: int64(len(compressed))}
	_, err = decoder.NewDecoder(attrs, decoder.EncodingBrotli, 0).Decode(bytes.NewReader(compressed), node)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "rgb")
}
