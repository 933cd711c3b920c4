package data

import (
	"encoding/binary"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/ecopia-map/potree_extract/internal/attributes"
)

// Decoded points of one node. Buffers is index aligned with
// Attributes.List and holds NumPoints * attribute.Size bytes per attribute.
type Points struct {
	Attributes *attributes.Attributes
	NumPoints  int
	Buffers    [][]byte

	position int
}

// Builds a batch with zeroed buffers for numPoints points
func NewPoints(attrs *attributes.Attributes, numPoints int) *Points {
	points := &Points{
		Attributes: attrs,
		NumPoints:  numPoints,
		Buffers:    make([][]byte, len(attrs.List)),
		position:   attrs.Index("position"),
	}
	for i, attr := range attrs.List {
		points.Buffers[i] = make([]byte, numPoints*attr.Size)
	}
	return points
}

// Buffer of the named attribute, nil if the schema does not have it
func (p *Points) Buffer(name string) []byte {
	i := p.Attributes.Index(name)
	if i < 0 {
		return nil
	}
	return p.Buffers[i]
}

// Bytes of attribute index attr for point i
func (p *Points) Record(attr, i int) []byte {
	size := p.Attributes.List[attr].Size
	return p.Buffers[attr][i*size : (i+1)*size]
}

// Raw int32 position of point i
func (p *Points) RawPosition(i int) (int32, int32, int32) {
	buf := p.Buffers[p.position][i*12:]
	return int32(binary.LittleEndian.Uint32(buf[0:])),
		int32(binary.LittleEndian.Uint32(buf[4:])),
		int32(binary.LittleEndian.Uint32(buf[8:]))
}

// World position of point i: raw * scale + offset
func (p *Points) Position(i int) r3.Vector {
	x, y, z := p.RawPosition(i)
	scale := p.Attributes.PosScale
	offset := p.Attributes.PosOffset
	return r3.Vector{
		X: float64(x)*scale.X + offset.X,
		Y: float64(y)*scale.Y + offset.Y,
		Z: float64(z)*scale.Z + offset.Z,
	}
}

func (p *Points) HasPosition() bool {
	return p.position >= 0
}

// Moves the accepted points to the front of every buffer and shrinks the
// batch to len(accepted) points. accepted must be strictly increasing.
func (p *Points) Compact(accepted []int) {
	if len(accepted) == p.NumPoints {
		identity := true
		for i, index := range accepted {
			if i != index {
				identity = false
				break
			}
		}
		if identity {
			return
		}
	}

	for a, attr := range p.Attributes.List {
		size := attr.Size
		buf := p.Buffers[a]
		for target, source := range accepted {
			if target != source {
				copy(buf[target*size:(target+1)*size], buf[source*size:(source+1)*size])
			}
		}
		p.Buffers[a] = buf[:len(accepted)*size]
	}
	p.NumPoints = len(accepted)
}

// Returns a batch sharing the existing buffers, extended by one attribute
// whose buffer must hold NumPoints * attr.Size bytes.
func (p *Points) WithAttribute(attr attributes.Attribute, buffer []byte) (*Points, error) {
	if len(buffer) != p.NumPoints*attr.Size {
		return nil, errors.Errorf("buffer of %d bytes does not fit %d points of %q", len(buffer), p.NumPoints, attr.Name)
	}
	attrs, err := p.Attributes.With(attr)
	if err != nil {
		return nil, err
	}
	buffers := append(append([][]byte{}, p.Buffers...), buffer)
	return &Points{
		Attributes: attrs,
		NumPoints:  p.NumPoints,
		Buffers:    buffers,
		position:   p.position,
	}, nil
}
