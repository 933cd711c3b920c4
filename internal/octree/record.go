package octree

import (
	"encoding/binary"
)

const RecordSize = 22

// One entry of hierarchy.bin
type Record struct {
	Type       NodeType
	ChildMask  uint8
	NumPoints  uint32
	ByteOffset int64
	ByteSize   int64
}

func DecodeRecord(b []byte) Record {
	return Record{
		Type:       NodeType(b[0]),
		ChildMask:  b[1],
		NumPoints:  binary.LittleEndian.Uint32(b[2:]),
		ByteOffset: int64(binary.LittleEndian.Uint64(b[6:])),
		ByteSize:   int64(binary.LittleEndian.Uint64(b[14:])),
	}
}

// Appends the 22 byte little endian encoding of the record to b
func (r Record) Append(b []byte) []byte {
	var buf [RecordSize]byte
	buf[0] = byte(r.Type)
	buf[1] = r.ChildMask
	binary.LittleEndian.PutUint32(buf[2:], r.NumPoints)
	binary.LittleEndian.PutUint64(buf[6:], uint64(r.ByteOffset))
	binary.LittleEndian.PutUint64(buf[14:], uint64(r.ByteSize))
	return append(b, buf[:]...)
}
