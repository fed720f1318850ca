package codec

import (
	"encoding/binary"

	"github.com/duvholt/bifrost/internal/errs"
)

// CombinedState is the decoded form of a cluster-0xFC03 command-0 frame:
// any subset of 9 light properties packed into one Zigbee command. A nil
// field means the property was absent from the frame (its header bit was
// clear); present fields are always in their canonical Go domain value,
// except GradientParams and GradientColors' reserved bytes, which are
// kept raw to preserve byte-exact round trips.
type CombinedState struct {
	OnOff          *bool
	Brightness     *uint8
	ColorMirek     *uint16
	ColorXY        *XY
	FadeSpeed      *uint16
	EffectType     *EffectType
	GradientColors *GradientColors
	EffectSpeed    *uint8
	GradientParams *GradientParams
}

// GradientColors is the decoded gradient_colors field.
type GradientColors struct {
	Style    GradientStyle
	Points   []XY
	Reserved [2]byte // structurally reserved, must be zero on emit for new values
}

// GradientParams is the decoded gradient_params field. Scale and Offset
// are kept as their raw wire bytes (5 integer bits, 3 fractional bits)
// rather than a converted float, so Serialize reproduces the exact input
// byte even for the zoom-to-fit sentinel (0x00).
type GradientParams struct {
	Scale  uint8
	Offset uint8
}

// ZoomToFit reports whether Scale carries the zoom-to-fit sentinel.
func (p GradientParams) ZoomToFit() bool { return p.Scale == 0x00 }

// ScaleValue returns Scale as a 5.3 fixed-point float. Only meaningful
// when !ZoomToFit().
func (p GradientParams) ScaleValue() float64 { return float64(p.Scale) / 8.0 }

// OffsetValue returns Offset as a 5.3 fixed-point float.
func (p GradientParams) OffsetValue() float64 { return float64(p.Offset) / 8.0 }

// EncodeScale5_3 converts a fixed-point 5.3 float into its raw byte. Use
// Scale = 0x00 directly for the zoom-to-fit sentinel instead.
func EncodeScale5_3(v float64) uint8 {
	scaled := int(v*8 + 0.5)
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 0xFF {
		scaled = 0xFF
	}
	return uint8(scaled)
}

// Flags reports the header bitset this CombinedState would serialize to.
func (cs *CombinedState) Flags() Flags {
	var f Flags
	if cs.OnOff != nil {
		f |= FlagOnOff
	}
	if cs.Brightness != nil {
		f |= FlagBrightness
	}
	if cs.ColorMirek != nil {
		f |= FlagColorMirek
	}
	if cs.ColorXY != nil {
		f |= FlagColorXY
	}
	if cs.FadeSpeed != nil {
		f |= FlagFadeSpeed
	}
	if cs.EffectType != nil {
		f |= FlagEffectType
	}
	if cs.GradientParams != nil {
		f |= FlagGradientParams
	}
	if cs.EffectSpeed != nil {
		f |= FlagEffectSpeed
	}
	if cs.GradientColors != nil {
		f |= FlagGradientColors
	}
	return f
}

// ParseCombinedState decodes a cluster-0xFC03 command-0 frame. Parsing is
// total and deterministic: the header is read first, then exactly the
// fields the header declares, in fixed wire order, regardless of header
// bit order. Any trailing bytes or malformed field causes a clean
// rejection naming the byte offset.
func ParseCombinedState(data []byte) (*CombinedState, error) {
	if len(data) < 2 {
		return nil, errs.Malformed(0, "frame shorter than header")
	}
	flags := Flags(binary.LittleEndian.Uint16(data[0:2]))
	if flags&flagsReserved != 0 {
		return nil, errs.Malformed(0, "reserved flag bits 9-15 set")
	}

	cs := &CombinedState{}
	off := 2

	if flags.Has(FlagOnOff) {
		if off+1 > len(data) {
			return nil, errs.Malformed(off, "truncated on_off")
		}
		v := data[off] != 0
		cs.OnOff = &v
		off++
	}

	if flags.Has(FlagBrightness) {
		if off+1 > len(data) {
			return nil, errs.Malformed(off, "truncated brightness")
		}
		b := data[off]
		if b == 0 || b == 255 {
			return nil, errs.Malformed(off, "brightness out of range")
		}
		cs.Brightness = &b
		off++
	}

	if flags.Has(FlagColorMirek) {
		if off+2 > len(data) {
			return nil, errs.Malformed(off, "truncated color_mirek")
		}
		v := binary.LittleEndian.Uint16(data[off : off+2])
		cs.ColorMirek = &v
		off += 2
	}

	if flags.Has(FlagColorXY) {
		if off+4 > len(data) {
			return nil, errs.Malformed(off, "truncated color_xy")
		}
		x := binary.LittleEndian.Uint16(data[off : off+2])
		y := binary.LittleEndian.Uint16(data[off+2 : off+4])
		cs.ColorXY = &XY{X: DecodeUnit16(x), Y: DecodeUnit16(y)}
		off += 4
	}

	if flags.Has(FlagFadeSpeed) {
		if off+2 > len(data) {
			return nil, errs.Malformed(off, "truncated fade_speed")
		}
		v := binary.LittleEndian.Uint16(data[off : off+2])
		cs.FadeSpeed = &v
		off += 2
	}

	if flags.Has(FlagEffectType) {
		if off+1 > len(data) {
			return nil, errs.Malformed(off, "truncated effect_type")
		}
		v := data[off]
		if !ValidEffectType(v) {
			return nil, errs.Malformed(off, "unknown effect_type")
		}
		et := EffectType(v)
		cs.EffectType = &et
		off++
	}

	if flags.Has(FlagGradientColors) {
		gc, next, err := parseGradientColors(data, off)
		if err != nil {
			return nil, err
		}
		cs.GradientColors = gc
		off = next
	}

	if flags.Has(FlagEffectSpeed) {
		if off+1 > len(data) {
			return nil, errs.Malformed(off, "truncated effect_speed")
		}
		v := data[off]
		cs.EffectSpeed = &v
		off++
	}

	if flags.Has(FlagGradientParams) {
		if off+2 > len(data) {
			return nil, errs.Malformed(off, "truncated gradient_params")
		}
		scale, offset := data[off], data[off+1]
		if scale != 0x00 && scale < 0x08 {
			return nil, errs.Malformed(off, "gradient scale below 0x08 and not zoom-to-fit")
		}
		cs.GradientParams = &GradientParams{Scale: scale, Offset: offset}
		off += 2
	}

	if off != len(data) {
		return nil, errs.Malformed(off, "trailing bytes after declared fields")
	}

	return cs, nil
}

func parseGradientColors(data []byte, off int) (*GradientColors, int, error) {
	if off+1 > len(data) {
		return nil, off, errs.Malformed(off, "truncated gradient_colors size")
	}
	size := int(data[off])
	blockStart := off + 1
	if blockStart+size > len(data) {
		return nil, off, errs.Malformed(off, "gradient_colors block exceeds frame")
	}
	if size < 4 {
		return nil, off, errs.Malformed(off, "gradient_colors block too short")
	}

	nibbleByte := data[blockStart]
	if nibbleByte&0x0F != 0 {
		return nil, blockStart, errs.Malformed(blockStart, "gradient_colors low nibble must be zero")
	}
	count := int(nibbleByte >> 4)
	if count == 0 || count >= 10 {
		return nil, blockStart, errs.Malformed(blockStart, "gradient color count out of range")
	}

	styleByte := data[blockStart+1]
	if !ValidGradientStyle(styleByte) {
		return nil, blockStart + 1, errs.Malformed(blockStart+1, "unknown gradient_style")
	}

	wantSize := 4 + 3*count
	if size != wantSize {
		return nil, off, errs.Malformed(off, "gradient_colors size does not match color count")
	}

	var reserved [2]byte
	copy(reserved[:], data[blockStart+2:blockStart+4])

	points := make([]XY, count)
	colorsStart := blockStart + 4
	for i := 0; i < count; i++ {
		x, y, err := decodeColor12(data, colorsStart+i*3)
		if err != nil {
			return nil, colorsStart + i*3, err
		}
		points[i] = DecodeGamut12(x, y)
	}

	return &GradientColors{
		Style:    GradientStyle(styleByte),
		Points:   points,
		Reserved: reserved,
	}, blockStart + size, nil
}

// Serialize is the exact inverse of ParseCombinedState for any valid
// CombinedState: fields are emitted in fixed wire order, and the header is
// derived from which fields are non-nil.
func (cs *CombinedState) Serialize() []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(cs.Flags()))

	if cs.OnOff != nil {
		if *cs.OnOff {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	if cs.Brightness != nil {
		buf = append(buf, *cs.Brightness)
	}
	if cs.ColorMirek != nil {
		buf = binary.LittleEndian.AppendUint16(buf, *cs.ColorMirek)
	}
	if cs.ColorXY != nil {
		buf = binary.LittleEndian.AppendUint16(buf, EncodeUnit16(cs.ColorXY.X))
		buf = binary.LittleEndian.AppendUint16(buf, EncodeUnit16(cs.ColorXY.Y))
	}
	if cs.FadeSpeed != nil {
		buf = binary.LittleEndian.AppendUint16(buf, *cs.FadeSpeed)
	}
	if cs.EffectType != nil {
		buf = append(buf, uint8(*cs.EffectType))
	}
	if cs.GradientColors != nil {
		buf = append(buf, serializeGradientColors(cs.GradientColors)...)
	}
	if cs.EffectSpeed != nil {
		buf = append(buf, *cs.EffectSpeed)
	}
	if cs.GradientParams != nil {
		buf = append(buf, cs.GradientParams.Scale, cs.GradientParams.Offset)
	}

	return buf
}

func serializeGradientColors(gc *GradientColors) []byte {
	count := len(gc.Points)
	size := byte(4 + 3*count)
	out := make([]byte, 0, 1+int(size))
	out = append(out, size)
	out = append(out, byte(count)<<4)
	out = append(out, byte(gc.Style))
	out = append(out, gc.Reserved[0], gc.Reserved[1])
	for _, p := range gc.Points {
		x, y := EncodeGamut12(p)
		packed := PackColor12(x, y)
		out = append(out, packed[0], packed[1], packed[2])
	}
	return out
}
