package upstream

import (
	"encoding/hex"
	"encoding/json"

	"github.com/duvholt/bifrost/internal/codec"
)

// Intent is a client-originated change targeting a single light, prior to
// being resolved to an owning gateway session.
type Intent struct {
	LightAddr string // the light's gateway-native addressing key (e.g. IEEE address)

	On         *bool
	Brightness *uint8 // already converted to the gateway's [1,254] native scale
	ColorMirek *uint16
	ColorXY    *codec.XY
	FadeSpeed  *uint16
	EffectType *codec.EffectType
	EffectSpeed *uint8
	Gradient    *codec.GradientColors
	GradientParams *codec.GradientParams
}

// isTrivial reports whether an intent can go out as the gateway's native
// "set" message rather than a raw combined-state frame.
func (i Intent) isTrivial() bool {
	return i.FadeSpeed == nil && i.EffectType == nil && i.EffectSpeed == nil &&
		i.Gradient == nil && i.GradientParams == nil
}

// clusterFC03 and clusterFC01 are the manufacturer-specific cluster ids
// the combined-state and entertainment frames travel on.
const (
	clusterFC03 uint16 = 0xFC03
	clusterFC01 uint16 = 0xFC01

	commandCombinedState    uint8 = 0x00
	commandEntertainment    uint8 = 0x01
	commandSegmentConfigure uint8 = 0x07
)

// Translate converts an Intent into the envelope payload + topic/type the
// gateway expects, following spec §4.3: trivial state goes out as a
// native "set" message; anything involving gradient, effect, fade speed
// or gradient params goes out as a raw combined-state frame.
func Translate(i Intent) (topic, msgType string, payload json.RawMessage, err error) {
	if i.isTrivial() {
		set := SetPayload{Addr: i.LightAddr}
		if i.On != nil {
			set.State = *i.On
		}
		set.Brightness = i.Brightness
		set.ColorTemp = i.ColorMirek
		if i.ColorXY != nil {
			set.ColorXY = &[2]float64{i.ColorXY.X, i.ColorXY.Y}
		}
		body, mErr := json.Marshal(set)
		if mErr != nil {
			return "", "", nil, mErr
		}
		return "set", "set", body, nil
	}

	cs := &codec.CombinedState{
		OnOff:          i.On,
		Brightness:     i.Brightness,
		ColorMirek:     i.ColorMirek,
		ColorXY:        i.ColorXY,
		FadeSpeed:      i.FadeSpeed,
		EffectType:     i.EffectType,
		EffectSpeed:    i.EffectSpeed,
		GradientColors: i.Gradient,
		GradientParams: i.GradientParams,
	}
	raw := RawCommandPayload{
		Addr:       i.LightAddr,
		ClusterID:  clusterFC03,
		CommandID:  commandCombinedState,
		HexPayload: hex.EncodeToString(cs.Serialize()),
	}
	body, mErr := json.Marshal(raw)
	if mErr != nil {
		return "", "", nil, mErr
	}
	return "publish", "raw_command", body, nil
}

// TranslateEntertainmentFrame wraps an already-parsed entertainment frame
// for the priority path, bypassing the normal intent queue.
func TranslateEntertainmentFrame(addr string, frame *codec.EntertainmentFrame) (topic, msgType string, payload json.RawMessage, err error) {
	raw := RawCommandPayload{
		Addr:       addr,
		ClusterID:  clusterFC01,
		CommandID:  commandEntertainment,
		HexPayload: hex.EncodeToString(frame.Serialize()),
	}
	body, mErr := json.Marshal(raw)
	if mErr != nil {
		return "", "", nil, mErr
	}
	return "publish", "raw_command", body, nil
}
