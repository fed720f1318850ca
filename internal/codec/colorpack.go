package codec

import "github.com/duvholt/bifrost/internal/errs"

// PackColor12 packs a 12-bit (x, y) pair into the 3-byte form used by both
// gradient_colors entries in the combined-state frame and light blocks in
// the entertainment frame:
//
//	byte0 = x & 0xFF
//	byte1 = ((x >> 8) & 0x0F) | ((y & 0x0F) << 4)
//	byte2 = (y >> 4) & 0xFF
//
// x and y must already be clamped to 12 bits; the top 4 bits of each are
// silently discarded, matching the wire format's capacity.
func PackColor12(x, y uint16) [3]byte {
	return [3]byte{
		byte(x & 0xFF),
		byte((x>>8)&0x0F) | byte((y&0x0F)<<4),
		byte((y >> 4) & 0xFF),
	}
}

// UnpackColor12 is the exact inverse of PackColor12.
func UnpackColor12(b [3]byte) (x, y uint16) {
	x = uint16(b[0]) | uint16(b[1]&0x0F)<<8
	y = uint16(b[1]>>4) | uint16(b[2])<<4
	return x, y
}

// decodeColor12 reads a packed 3-byte color at offset off in data,
// returning a MalformedFrame error with the byte offset if data is too
// short.
func decodeColor12(data []byte, off int) (x, y uint16, err error) {
	if off+3 > len(data) {
		return 0, 0, errs.Malformed(off, "truncated packed color")
	}
	x, y = UnpackColor12([3]byte{data[off], data[off+1], data[off+2]})
	return x, y, nil
}
