package attributes

import (
	"encoding/binary"
	"math"
)

// Reads element i of a value of this type stored little endian at the start of record
func (t Type) Read(record []byte, i int) float64 {
	b := record[i*t.Size():]
	switch t {
	case Int8:
		return float64(int8(b[0]))
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(b)))
	case Uint8:
		return float64(b[0])
	case Uint16:
		return float64(binary.LittleEndian.Uint16(b))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(b))
	case Uint64:
		return float64(binary.LittleEndian.Uint64(b))
	case Float:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Double:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// Decodes all the elements of the attribute for one point record
func (a Attribute) Values(record []byte) []float64 {
	if a.Type == Undefined || a.ElementSize == 0 {
		return nil
	}
	n := a.NumElements
	if n*a.ElementSize > len(record) {
		n = len(record) / a.ElementSize
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = a.Type.Read(record, i)
	}
	return out
}
