package decoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/pkg/errors"

	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/octree"
)

type Encoding string

const (
	EncodingDefault Encoding = "DEFAULT"
	EncodingBrotli  Encoding = "BROTLI"
)

const DefaultMaxDecodeAttempts = 4

var ErrShortNode = errors.New("node data is shorter than its declared points")

// Failure to decompress a node after the retry budget is spent
type DecodeError struct {
	Node     string
	Attempts int
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode node %s after %d attempts: %v", e.Node, e.Attempts, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Turns node byte ranges of octree.bin into point batches. A Decoder keeps
// scratch buffers between calls and must be owned by a single goroutine.
type Decoder struct {
	attributes  *attributes.Attributes
	encoding    Encoding
	maxAttempts int

	raw     []byte
	scratch []byte
	brotli  *brotli.Reader
}

func NewDecoder(attrs *attributes.Attributes, encoding Encoding, maxAttempts int) *Decoder {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxDecodeAttempts
	}
	return &Decoder{
		attributes:  attrs,
		encoding:    encoding,
		maxAttempts: maxAttempts,
	}
}

func (d *Decoder) Attributes() *attributes.Attributes {
	return d.attributes
}

// Reads and decodes the points of a NORMAL or LEAF node
func (d *Decoder) Decode(r io.ReaderAt, node *octree.Node) (*data.Points, error) {
	if !node.HasPoints() {
		return nil, errors.Errorf("node %s of type %s has no point data", node.Name, node.Type)
	}

	if node.NumPoints == 0 {
		return data.NewPoints(d.attributes, 0), nil
	}

	d.raw = grow(d.raw, int(node.ByteSize))
	if n, err := r.ReadAt(d.raw, node.ByteOffset); err != nil && !(err == io.EOF && n == len(d.raw)) {
		return nil, errors.Wrapf(err, "reading points of node %s", node.Name)
	}

	if d.encoding == EncodingBrotli {
		return d.decodeBrotli(node, d.raw)
	}
	return d.decodeDefault(node, d.raw)
}

// Points are interleaved on disk, one record of attributes.Bytes per point
func (d *Decoder) decodeDefault(node *octree.Node, raw []byte) (*data.Points, error) {
	numPoints := int(node.NumPoints)
	stride := d.attributes.Bytes
	if len(raw) < numPoints*stride {
		return nil, errors.Wrapf(ErrShortNode, "node %s: %d bytes for %d points of %d bytes", node.Name, len(raw), numPoints, stride)
	}

	points := data.NewPoints(d.attributes, numPoints)
	for a, attr := range d.attributes.List {
		offset := d.attributes.OffsetAt(a)
		target := points.Buffers[a]
		for i := 0; i < numPoints; i++ {
			source := i*stride + offset
			copy(target[i*attr.Size:(i+1)*attr.Size], raw[source:source+attr.Size])
		}
	}

	return points, nil
}

// Size of one point of the attribute inside the decompressed stream
func encodedSize(attr attributes.Attribute) int {
	switch attr.Name {
	case "position":
		return 16
	case "rgb", "rgba":
		return 8
	}
	return attr.Size
}

// The decompressed stream stores the attributes one after the other.
// Positions and colors are morton encoded, the rest is stored as is.
func (d *Decoder) decodeBrotli(node *octree.Node, raw []byte) (*data.Points, error) {
	numPoints := int(node.NumPoints)
	expected := 0
	for _, attr := range d.attributes.List {
		expected += numPoints * encodedSize(attr)
	}

	stream, err := d.decompress(node, raw, expected)
	if err != nil {
		return nil, err
	}
	if len(stream) < expected {
		return nil, errors.Wrapf(ErrShortNode, "node %s: decompressed %d bytes, expected %d", node.Name, len(stream), expected)
	}

	points := data.NewPoints(d.attributes, numPoints)
	offset := 0
	for a, attr := range d.attributes.List {
		target := points.Buffers[a]
		size := encodedSize(attr)
		source := stream[offset : offset+numPoints*size]

		switch {
		case attr.Name == "position":
			for i := 0; i < numPoints; i++ {
				x, y, z := decodeMortonPosition(source[i*16:])
				record := target[i*attr.Size:]
				binary.LittleEndian.PutUint32(record[0:], x)
				binary.LittleEndian.PutUint32(record[4:], y)
				binary.LittleEndian.PutUint32(record[8:], z)
			}
		case attr.Name == "rgb" || attr.Name == "rgba":
			if attr.Size < 6 {
				return nil, errors.Errorf("node %s: attribute %s has %d bytes, colors need at least 6", node.Name, attr.Name, attr.Size)
			}
			for i := 0; i < numPoints; i++ {
				r, g, b := decodeMortonColor(source[i*8:])
				record := target[i*attr.Size:]
				binary.LittleEndian.PutUint16(record[0:], r)
				binary.LittleEndian.PutUint16(record[2:], g)
				binary.LittleEndian.PutUint16(record[4:], b)
			}
		default:
			copy(target, source)
		}

		offset += numPoints * size
	}

	return points, nil
}

// Decompresses raw into the scratch buffer. The buffer starts at the
// expected size and is doubled whenever the stream does not fit, at most
// maxAttempts times.
func (d *Decoder) decompress(node *octree.Node, raw []byte, expected int) ([]byte, error) {
	capacity := expected
	if capacity < 2*len(raw) {
		capacity = 2 * len(raw)
	}
	if capacity < 1024 {
		capacity = 1024
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		d.scratch = grow(d.scratch, capacity)

		source := bytes.NewReader(raw)
		if d.brotli == nil {
			d.brotli = brotli.NewReader(source)
		} else if err := d.brotli.Reset(source); err != nil {
			return nil, &DecodeError{Node: node.Name, Attempts: attempt, Err: err}
		}

		n, err := readFull(d.brotli, d.scratch)
		switch {
		case err == io.EOF:
			return d.scratch[:n], nil
		case err != nil:
			return nil, &DecodeError{Node: node.Name, Attempts: attempt, Err: err}
		}

		// buffer full, make sure the stream is over
		var extra [1]byte
		m, err := d.brotli.Read(extra[:])
		if m == 0 && err == io.EOF {
			return d.scratch[:n], nil
		}
		if err != nil && err != io.EOF {
			return nil, &DecodeError{Node: node.Name, Attempts: attempt, Err: err}
		}

		lastErr = errors.Errorf("decompressed data exceeds %d bytes", capacity)
		capacity *= 2
	}

	return nil, &DecodeError{Node: node.Name, Attempts: d.maxAttempts, Err: lastErr}
}

// Fills buf from r. Unlike io.ReadFull the error of r is kept as is, so a
// clean end of stream reads as io.EOF and a truncated one as whatever r
// reports. The error is nil only when buf is full.
func readFull(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, io.ErrNoProgress
		}
	}
	return n, nil
}

// Resizes buf to n bytes, reallocating only when the capacity is too small
func grow(buf []byte, n int) []byte {
	if cap(buf) < n {
		return make([]byte, n)
	}
	return buf[:n]
}
