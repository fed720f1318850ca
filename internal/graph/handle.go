// Package graph implements the in-memory resource graph and change log:
// a typed, versioned, referentially-consistent store of Hue v2 resources
// with subscription fan-out.
package graph

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is a resource-type tag from the closed set the bridge understands.
type Kind string

const (
	KindBridge                    Kind = "bridge"
	KindBridgeHome                Kind = "bridge_home"
	KindDevice                    Kind = "device"
	KindRoom                      Kind = "room"
	KindZone                      Kind = "zone"
	KindGroup                     Kind = "group"
	KindLight                     Kind = "light"
	KindButton                    Kind = "button"
	KindMotion                    Kind = "motion"
	KindTemperature               Kind = "temperature"
	KindScene                     Kind = "scene"
	KindEntertainment             Kind = "entertainment"
	KindEntertainmentConfig       Kind = "entertainment_configuration"
	KindGeofenceClient            Kind = "geofence_client"
	KindBehaviorScript            Kind = "behavior_script"
	KindBehaviorInstance          Kind = "behavior_instance"
	KindZigbeeConnectivity        Kind = "zigbee_connectivity"
)

// bridgeNamespace is the fixed namespace UUID resource identities are
// derived under, so identity survives process restart. Any valid v4 UUID
// works here; what matters is that it never changes.
var bridgeNamespace = uuid.MustParse("2871c274-1f01-4e71-b9b0-4b8e671c1234")

// NewID derives a stable resource identifier from the upstream device's
// unique signature (e.g. its Zigbee IEEE address, or a fixed well-known
// suffix for bridge-owned resources). The same (kind, signature) pair
// always yields the same id, so a restart preserves identity.
func NewID(kind Kind, signature string) uuid.UUID {
	return uuid.NewSHA1(bridgeNamespace, []byte(string(kind)+":"+signature))
}

// Handle is the pair (type, id) that uniquely names a resource.
type Handle struct {
	Kind Kind
	ID   uuid.UUID
}

func (h Handle) String() string {
	return fmt.Sprintf("%s/%s", h.Kind, h.ID)
}

// IsZero reports whether h is the zero Handle (no kind, nil UUID).
func (h Handle) IsZero() bool {
	return h.Kind == "" && h.ID == uuid.Nil
}
