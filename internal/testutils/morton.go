package testutils

import "encoding/binary"

// Interleaves 16 bits of x, y and z into 48 bits, x in the lowest position
func interleave48(x, y, z uint32) uint64 {
	var out uint64
	for i := 0; i < 16; i++ {
		out |= uint64((x>>i)&1) << (3 * i)
		out |= uint64((y>>i)&1) << (3*i + 1)
		out |= uint64((z>>i)&1) << (3*i + 2)
	}
	return out
}

// 16 byte morton code: bits 16..31 of each axis in bytes 0..8, bits 0..15
// in bytes 8..16
func EncodeMortonPosition(x, y, z uint32) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[0:], interleave48(x>>16, y>>16, z>>16))
	binary.LittleEndian.PutUint64(out[8:], interleave48(x&0xFFFF, y&0xFFFF, z&0xFFFF))
	return out
}

func EncodeMortonColor(r, g, b uint16) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, interleave48(uint32(r), uint32(g), uint32(b)))
	return out
}
