// Package codec implements the bit-exact wire formats this bridge speaks:
// the manufacturer-specific Zigbee cluster 0xFC03 combined-state frame, the
// cluster 0xFC01 entertainment frame, and the Hue gamut XY encoding. Every
// exported function here is pure and total: no I/O, no partial frames.
package codec

// Flags is the 16-bit property bitset carried in a combined-state frame
// header. Bit position matches transmission order of the header itself,
// which is independent of the field order on the wire (see Field order in
// fc03.go).
type Flags uint16

const (
	FlagOnOff          Flags = 1 << 0
	FlagBrightness     Flags = 1 << 1
	FlagColorMirek     Flags = 1 << 2
	FlagColorXY        Flags = 1 << 3
	FlagFadeSpeed      Flags = 1 << 4
	FlagEffectType     Flags = 1 << 5
	FlagGradientParams Flags = 1 << 6
	FlagEffectSpeed    Flags = 1 << 7
	FlagGradientColors Flags = 1 << 8

	// flagsReserved is the set of bits (9..15) that must be zero on emit and
	// reject a frame on parse.
	flagsReserved Flags = 0xFE00
)

// Has reports whether f has all the bits in mask set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// EffectType is the closed set of light effects a combined-state frame
// may carry.
type EffectType uint8

const (
	EffectNone       EffectType = 0x00
	EffectCandle     EffectType = 0x01
	EffectFireplace  EffectType = 0x02
	EffectPrism      EffectType = 0x03
	EffectSparkle    EffectType = 0x0a
	EffectOpal       EffectType = 0x0b
	EffectGlisten    EffectType = 0x0c
	EffectUnderwater EffectType = 0x0e
	EffectCosmos     EffectType = 0x0f
	EffectSunbeam    EffectType = 0x10
	EffectEnchant    EffectType = 0x11
	EffectSunrise    EffectType = 0x09
)

// ValidEffectType reports whether v names a known effect.
func ValidEffectType(v uint8) bool {
	switch EffectType(v) {
	case EffectNone, EffectCandle, EffectFireplace, EffectPrism, EffectSparkle,
		EffectOpal, EffectGlisten, EffectUnderwater, EffectCosmos, EffectSunbeam,
		EffectEnchant, EffectSunrise:
		return true
	default:
		return false
	}
}

// GradientStyle is the closed set of gradient rendering styles.
type GradientStyle uint8

const (
	GradientLinear   GradientStyle = 0x00
	GradientScattered GradientStyle = 0x02
	GradientMirrored GradientStyle = 0x04
)

// ValidGradientStyle reports whether v names a known gradient style.
func ValidGradientStyle(v uint8) bool {
	switch GradientStyle(v) {
	case GradientLinear, GradientScattered, GradientMirrored:
		return true
	default:
		return false
	}
}
