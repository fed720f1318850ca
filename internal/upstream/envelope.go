package upstream

import "encoding/json"

// Envelope is the wire shape of every gateway WebSocket message, in both
// directions. ID correlates a request with its response: a request sets
// it to a freshly generated value, and the gateway echoes it back on the
// matching response envelope. Unsolicited pushes (state_change, the
// inventory-refresh notices) carry no ID.
type Envelope struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// RawCommandPayload is the payload shape for opaque raw-Zigbee commands
// sent on the gateway's "publish" topic: a cluster id, command id, and
// hex-encoded frame body built by the codec package.
type RawCommandPayload struct {
	Addr      string `json:"addr"`
	ClusterID uint16 `json:"cluster_id"`
	CommandID uint8  `json:"command_id"`
	HexPayload string `json:"payload_hex"`
}

// SetPayload is the payload shape for a gateway's native "set" message
// covering trivial light state (on/off, brightness, CT, XY) that doesn't
// need the raw combined-state frame.
type SetPayload struct {
	Addr       string   `json:"addr"`
	State      bool     `json:"state,omitempty"`
	Brightness *uint8   `json:"brightness,omitempty"` // gateway's native 1-254 scale
	ColorTemp  *uint16  `json:"color_temp,omitempty"`
	ColorXY    *[2]float64 `json:"color_xy,omitempty"`
}

// InventoryDevice is one entry in a gateway's device-list response.
type InventoryDevice struct {
	IEEEAddr     string            `json:"ieee_addr"`
	FriendlyName string            `json:"friendly_name"`
	Model        string            `json:"model,omitempty"`
	Endpoints    []string          `json:"endpoints,omitempty"`
	Attrs        map[string]string `json:"attrs,omitempty"`
}

// InventoryGroup is one entry in a gateway's group-list response.
type InventoryGroup struct {
	Name    string   `json:"name"`
	Members []string `json:"members"` // member IEEE addresses
}

// StateChange is a live per-device push from the gateway.
type StateChange struct {
	IEEEAddr string          `json:"ieee_addr"`
	State    json.RawMessage `json:"state"`
}
