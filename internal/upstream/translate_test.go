package upstream

import (
	"encoding/json"
	"testing"

	"github.com/duvholt/bifrost/internal/codec"
)

func TestTranslateTrivialStateUsesSetMessage(t *testing.T) {
	on := true
	var b uint8 = 200
	topic, msgType, payload, err := Translate(Intent{LightAddr: "0x01", On: &on, Brightness: &b})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if topic != "set" || msgType != "set" {
		t.Fatalf("topic/type = %s/%s, want set/set", topic, msgType)
	}
	var decoded SetPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.State || *decoded.Brightness != 200 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestTranslateFadeSpeedUsesRawCommand(t *testing.T) {
	fade := uint16(10)
	topic, msgType, payload, err := Translate(Intent{LightAddr: "0x01", FadeSpeed: &fade})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if topic != "publish" || msgType != "raw_command" {
		t.Fatalf("topic/type = %s/%s, want publish/raw_command", topic, msgType)
	}
	var decoded RawCommandPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ClusterID != clusterFC03 || decoded.CommandID != commandCombinedState {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestTranslateEntertainmentFrame(t *testing.T) {
	frame := &codec.EntertainmentFrame{Counter: 1, Lights: []codec.LightBlock{{Addr: 1}}}
	topic, msgType, payload, err := TranslateEntertainmentFrame("0x01", frame)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	var decoded RawCommandPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if topic != "publish" || decoded.ClusterID != clusterFC01 {
		t.Errorf("topic=%s decoded=%+v", topic, decoded)
	}
	_ = msgType
}
