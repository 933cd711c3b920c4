package decoder

import "encoding/binary"

// Compacts every third bit of the low 24 bits into 8 bits
func dealign24b(x uint32) uint32 {
	x = ((x & 0b001000001000001000001000) >> 2) | (x & 0b000001000001000001000001)
	x = ((x & 0b000011000000000011000000) >> 4) | (x & 0b000000000011000000000011)
	x = ((x & 0b000000001111000000000000) >> 8) | (x & 0b000000000000000000001111)
	return x & 0b000000000000000011111111
}

// Extracts 16 bits of the axis selected by shift (0, 1 or 2) from a 48 bit
// interleaved code split into a low and a high word.
func deinterleave48(low, high uint32, shift uint) uint32 {
	return dealign24b((low&0x00FFFFFF)>>shift) |
		dealign24b(((low>>24)|(high<<8))>>shift)<<8
}

// Decodes a 16 byte morton position. Bytes 8..16 carry bits 0..15 of each
// axis, bytes 0..8 carry bits 16..31.
func decodeMortonPosition(b []byte) (x, y, z uint32) {
	mc1 := binary.LittleEndian.Uint32(b[0:])
	mc0 := binary.LittleEndian.Uint32(b[4:])
	mc3 := binary.LittleEndian.Uint32(b[8:])
	mc2 := binary.LittleEndian.Uint32(b[12:])

	x = deinterleave48(mc3, mc2, 0)
	y = deinterleave48(mc3, mc2, 1)
	z = deinterleave48(mc3, mc2, 2)

	if mc1 != 0 || mc0 != 0 {
		x |= deinterleave48(mc1, mc0, 0) << 16
		y |= deinterleave48(mc1, mc0, 1) << 16
		z |= deinterleave48(mc1, mc0, 2) << 16
	}

	return x, y, z
}

// Decodes an 8 byte morton color into 16 bit channels
func decodeMortonColor(b []byte) (r, g, bl uint16) {
	mc1 := binary.LittleEndian.Uint32(b[0:])
	mc0 := binary.LittleEndian.Uint32(b[4:])
	return uint16(deinterleave48(mc1, mc0, 0)),
		uint16(deinterleave48(mc1, mc0, 1)),
		uint16(deinterleave48(mc1, mc0, 2))
}
