package codec

import (
	"encoding/binary"

	"github.com/duvholt/bifrost/internal/errs"
)

// MaxEntertainmentLights is the maximum number of light blocks a single
// cluster-0xFC01 command-1 frame may carry.
const MaxEntertainmentLights = 10

const entertainmentReservedMarker = 0x04

// LightBlock is one 7-byte per-light update inside an entertainment
// frame: a Zigbee short address, an 11-bit brightness, and a packed XY
// color.
type LightBlock struct {
	Addr       uint16
	Brightness uint16 // 11-bit; upper 5 bits always zero
	Color      XY
}

// EntertainmentFrame is the decoded form of a cluster-0xFC01 command-1
// frame: a monotonic counter and 1-10 light blocks.
type EntertainmentFrame struct {
	Counter uint32
	Lights  []LightBlock
}

// ParseEntertainmentFrame decodes a cluster-0xFC01 command-1 frame.
func ParseEntertainmentFrame(data []byte) (*EntertainmentFrame, error) {
	if len(data) < 6 {
		return nil, errs.Malformed(0, "entertainment frame shorter than fixed header")
	}
	counter := binary.LittleEndian.Uint32(data[0:4])
	// data[4] is reserved_x0, undocumented per spec; accept anything.
	if data[5] != entertainmentReservedMarker {
		return nil, errs.Malformed(5, "entertainment frame missing 0x04 marker")
	}

	rest := data[6:]
	if len(rest) == 0 || len(rest)%7 != 0 {
		return nil, errs.Malformed(6, "entertainment light blocks not a multiple of 7 bytes")
	}
	n := len(rest) / 7
	if n > MaxEntertainmentLights {
		return nil, errs.Malformed(6, "too many entertainment light blocks")
	}

	lights := make([]LightBlock, n)
	for i := 0; i < n; i++ {
		off := i * 7
		addr := binary.LittleEndian.Uint16(rest[off : off+2])
		rawBrightness := binary.LittleEndian.Uint16(rest[off+2 : off+4])
		if rawBrightness&0xF800 != 0 {
			return nil, errs.Malformed(6+off+2, "entertainment brightness upper bits must be zero")
		}
		x, y, err := decodeColor12(rest, off+4)
		if err != nil {
			return nil, errs.Malformed(6+off+4, "truncated entertainment packed color")
		}
		lights[i] = LightBlock{
			Addr:       addr,
			Brightness: rawBrightness,
			Color:      DecodeGamut12(x, y),
		}
	}

	return &EntertainmentFrame{Counter: counter, Lights: lights}, nil
}

// Serialize is the inverse of ParseEntertainmentFrame, except that the
// reserved byte after the counter, which parsing does not keep, is always
// written as zero.
func (f *EntertainmentFrame) Serialize() []byte {
	buf := make([]byte, 6, 6+7*len(f.Lights))
	binary.LittleEndian.PutUint32(buf[0:4], f.Counter)
	buf[4] = 0x00
	buf[5] = entertainmentReservedMarker

	for _, l := range f.Lights {
		var lb [7]byte
		binary.LittleEndian.PutUint16(lb[0:2], l.Addr)
		binary.LittleEndian.PutUint16(lb[2:4], l.Brightness&0x07FF)
		x, y := EncodeGamut12(l.Color)
		packed := PackColor12(x, y)
		lb[4], lb[5], lb[6] = packed[0], packed[1], packed[2]
		buf = append(buf, lb[:]...)
	}
	return buf
}

// SyncFrame is the decoded form of cluster-0xFC01 command-3. The two
// leading bytes have undocumented semantics (spec §9 Open Questions); we
// emit zeros and accept anything on parse.
type SyncFrame struct {
	X0      uint8
	X1      uint8
	Counter uint32
}

// ParseSyncFrame decodes a command-3 sync frame.
func ParseSyncFrame(data []byte) (*SyncFrame, error) {
	if len(data) != 6 {
		return nil, errs.Malformed(0, "sync frame must be exactly 6 bytes")
	}
	return &SyncFrame{
		X0:      data[0],
		X1:      data[1],
		Counter: binary.LittleEndian.Uint32(data[2:6]),
	}, nil
}

// Serialize is the exact inverse of ParseSyncFrame.
func (f *SyncFrame) Serialize() []byte {
	buf := make([]byte, 6)
	buf[0], buf[1] = f.X0, f.X1
	binary.LittleEndian.PutUint32(buf[2:6], f.Counter)
	return buf
}

// NewSyncFrame builds a sync frame with the conventional zeroed leading
// bytes, per spec §9's Open Question guidance.
func NewSyncFrame(counter uint32) *SyncFrame {
	return &SyncFrame{Counter: counter}
}

// SegmentEntry is one virtual-address assignment inside a command-7
// segment-map configure request.
type SegmentEntry struct {
	VirtualAddr uint16
}

// SegmentConfigureRequest is the decoded form of a command-7 segment-map
// configure payload: a leading byte pair and one virtual address per
// segment. Scenario §8.5 shows a 7-segment example payload.
type SegmentConfigureRequest struct {
	Unknown  [2]byte
	Segments []SegmentEntry
}

// ParseSegmentConfigureRequest decodes a command-7 payload.
func ParseSegmentConfigureRequest(data []byte) (*SegmentConfigureRequest, error) {
	if len(data) < 2 {
		return nil, errs.Malformed(0, "segment configure frame shorter than header")
	}
	rest := data[2:]
	if len(rest)%2 != 0 {
		return nil, errs.Malformed(2, "segment configure addresses not a multiple of 2 bytes")
	}
	n := len(rest) / 2
	segs := make([]SegmentEntry, n)
	for i := 0; i < n; i++ {
		segs[i] = SegmentEntry{VirtualAddr: binary.LittleEndian.Uint16(rest[i*2 : i*2+2])}
	}
	return &SegmentConfigureRequest{Unknown: [2]byte{data[0], data[1]}, Segments: segs}, nil
}

// Serialize is the exact inverse of ParseSegmentConfigureRequest.
func (r *SegmentConfigureRequest) Serialize() []byte {
	buf := make([]byte, 2, 2+2*len(r.Segments))
	buf[0], buf[1] = r.Unknown[0], r.Unknown[1]
	for _, s := range r.Segments {
		buf = binary.LittleEndian.AppendUint16(buf, s.VirtualAddr)
	}
	return buf
}

// SegmentConfigureOK is the success response code for a command-7 request.
const SegmentConfigureOK uint16 = 0x0000
