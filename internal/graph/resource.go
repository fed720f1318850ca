package graph

import "github.com/duvholt/bifrost/internal/codec"

// Resource is the interface every arm of the closed resource-type variant
// implements. Per-type behavior (the references a resource holds, how it
// is copied) lives on the concrete arm; the store only ever talks to resources through
// this interface, per the "tagged variant" design note.
type Resource interface {
	Handle() Handle
	Version() int64
	setVersion(int64)
	// References lists the handles this resource points to. The store
	// checks every one resolves before committing a mutation batch.
	References() []Handle
	// Clone returns a deep-enough copy safe to hand to a reader without
	// aliasing mutable fields the writer might still touch.
	Clone() Resource
}

// Base is embedded by every concrete resource type and implements the
// identity/versioning half of the Resource interface.
type Base struct {
	H   Handle
	Ver int64
}

func (b *Base) Handle() Handle      { return b.H }
func (b *Base) Version() int64      { return b.Ver }
func (b *Base) setVersion(v int64)  { b.Ver = v }

// Metadata is the name/icon pair almost every v2 resource carries.
type Metadata struct {
	Name      string `json:"name" yaml:"name"`
	Archetype string `json:"archetype,omitempty" yaml:"archetype,omitempty"`
}

// Gradient describes a light's gradient state, present iff the light
// advertises gradient capability.
type Gradient struct {
	Points     []codec.XY         `json:"points" yaml:"points"`
	Style      codec.GradientStyle `json:"style" yaml:"style"`
	PixelCount int                `json:"pixel_count,omitempty" yaml:"pixel_count,omitempty"`
}

// ColorMode names which color representation was most recently set on a
// light; both values are retained regardless of which is "current".
type ColorMode string

const (
	ColorModeXY    ColorMode = "xy"
	ColorModeMirek ColorMode = "mirek"
)

// Light is the `light` resource arm.
type Light struct {
	Base
	Owner      Handle // the device this light belongs to
	Metadata   Metadata
	On         bool
	Brightness float64 // percent, [1, 100]
	ColorXY    *codec.XY
	ColorMirek *uint16
	ColorMode  ColorMode
	Gradient   *Gradient
	Effect     codec.EffectType
	EffectSpeed uint8
	FadeSpeed  uint16
	GatewayID  string // which upstream gateway session owns this light
	GatewayRef string // the light's addressing key on that gateway (e.g. Zigbee IEEE address)
}

func (l *Light) References() []Handle {
	if l.Owner.IsZero() {
		return nil
	}
	return []Handle{l.Owner}
}

func (l *Light) Clone() Resource {
	c := *l
	if l.ColorXY != nil {
		v := *l.ColorXY
		c.ColorXY = &v
	}
	if l.ColorMirek != nil {
		v := *l.ColorMirek
		c.ColorMirek = &v
	}
	if l.Gradient != nil {
		g := *l.Gradient
		g.Points = append([]codec.XY(nil), l.Gradient.Points...)
		c.Gradient = &g
	}
	return &c
}

// Device is the `device` resource arm: an upstream endpoint owning one or
// more service resources (lights, buttons, sensors, zigbee_connectivity).
type Device struct {
	Base
	Metadata  Metadata
	Services  []Handle
	GatewayID string
	Signature string // the upstream unique identity this device was derived from
}

func (d *Device) References() []Handle  { return d.Services }
func (d *Device) Clone() Resource {
	c := *d
	c.Services = append([]Handle(nil), d.Services...)
	return &c
}

// Room is a user-authored grouping of devices.
type Room struct {
	Base
	Metadata Metadata
	Children []Handle // devices
	GroupedLight Handle
}

func (r *Room) References() []Handle {
	out := append([]Handle(nil), r.Children...)
	if !r.GroupedLight.IsZero() {
		out = append(out, r.GroupedLight)
	}
	return out
}
func (r *Room) Clone() Resource {
	c := *r
	c.Children = append([]Handle(nil), r.Children...)
	return &c
}

// Zone is a user-authored grouping of services, cross-cutting rooms.
type Zone struct {
	Base
	Metadata     Metadata
	Children     []Handle
	GroupedLight Handle
}

func (z *Zone) References() []Handle {
	out := append([]Handle(nil), z.Children...)
	if !z.GroupedLight.IsZero() {
		out = append(out, z.GroupedLight)
	}
	return out
}
func (z *Zone) Clone() Resource {
	c := *z
	c.Children = append([]Handle(nil), z.Children...)
	return &c
}

// Group is a `grouped_light` style aggregate: the owning room/zone plus
// the lights it fans out writes to.
type Group struct {
	Base
	Owner  Handle
	Lights []Handle
	On     bool
}

func (g *Group) References() []Handle {
	out := append([]Handle(nil), g.Lights...)
	if !g.Owner.IsZero() {
		out = append(out, g.Owner)
	}
	return out
}
func (g *Group) Clone() Resource {
	c := *g
	c.Lights = append([]Handle(nil), g.Lights...)
	return &c
}

// SceneAction is one per-target action inside a scene's recall list.
type SceneAction struct {
	Target Handle
	State  Light // reuses Light's color/brightness/on fields as the recall payload
}

// Scene is a user-authored named light configuration for a group.
type Scene struct {
	Base
	Metadata Metadata
	Group    Handle
	Actions  []SceneAction
}

func (s *Scene) References() []Handle {
	out := []Handle{s.Group}
	for _, a := range s.Actions {
		out = append(out, a.Target)
	}
	return out
}
func (s *Scene) Clone() Resource {
	c := *s
	c.Actions = append([]SceneAction(nil), s.Actions...)
	return &c
}

// EntertainmentConfiguration groups lights and their segment virtual
// addresses for one entertainment session.
type EntertainmentConfiguration struct {
	Base
	Metadata Metadata
	Lights   []Handle
	Segments map[Handle][]uint16 // per-light virtual addresses, cached across sessions
	Active   bool
}

func (e *EntertainmentConfiguration) References() []Handle {
	return append([]Handle(nil), e.Lights...)
}
func (e *EntertainmentConfiguration) Clone() Resource {
	c := *e
	c.Lights = append([]Handle(nil), e.Lights...)
	c.Segments = make(map[Handle][]uint16, len(e.Segments))
	for h, v := range e.Segments {
		c.Segments[h] = append([]uint16(nil), v...)
	}
	return &c
}

// Entertainment is the per-light capability arm describing whether a
// light can participate in entertainment streaming.
type Entertainment struct {
	Base
	Owner   Handle
	MaxSegments int
}

func (e *Entertainment) References() []Handle { return []Handle{e.Owner} }
func (e *Entertainment) Clone() Resource      { c := *e; return &c }

// Bridge is the singleton bridge resource.
type Bridge struct {
	Base
	BridgeID string
	Owner    Handle // the device representing the bridge itself
}

func (b *Bridge) References() []Handle { return []Handle{b.Owner} }
func (b *Bridge) Clone() Resource      { c := *b; return &c }

// BridgeHome is the singleton top-level grouping resource clients attach
// rooms/zones under.
type BridgeHome struct {
	Base
	Children []Handle
}

func (h *BridgeHome) References() []Handle { return append([]Handle(nil), h.Children...) }
func (h *BridgeHome) Clone() Resource {
	c := *h
	c.Children = append([]Handle(nil), h.Children...)
	return &c
}

// Button is a device service exposing last-pressed button state.
type Button struct {
	Base
	Owner        Handle
	LastEvent    string
	EventCounter int64
}

func (b *Button) References() []Handle { return []Handle{b.Owner} }
func (b *Button) Clone() Resource      { c := *b; return &c }

// Motion is a device service exposing motion-sensor state.
type Motion struct {
	Base
	Owner   Handle
	Motion  bool
	Enabled bool
}

func (m *Motion) References() []Handle { return []Handle{m.Owner} }
func (m *Motion) Clone() Resource      { c := *m; return &c }

// Temperature is a device service exposing ambient temperature.
type Temperature struct {
	Base
	Owner       Handle
	Celsius     float64
	Enabled     bool
}

func (t *Temperature) References() []Handle { return []Handle{t.Owner} }
func (t *Temperature) Clone() Resource      { c := *t; return &c }

// GeofenceClient represents a paired mobile client's geofence presence.
type GeofenceClient struct {
	Base
	Name string
}

func (g *GeofenceClient) References() []Handle { return nil }
func (g *GeofenceClient) Clone() Resource      { c := *g; return &c }

// BehaviorScript is a read-only catalog entry describing an automation
// script the bridge supports (the bridge does not execute these itself;
// see spec.md §1's non-goals).
type BehaviorScript struct {
	Base
	Metadata Metadata
}

func (b *BehaviorScript) References() []Handle { return nil }
func (b *BehaviorScript) Clone() Resource      { c := *b; return &c }

// BehaviorInstance is a configured instantiation of a BehaviorScript.
type BehaviorInstance struct {
	Base
	Script  Handle
	Enabled bool
}

func (b *BehaviorInstance) References() []Handle { return []Handle{b.Script} }
func (b *BehaviorInstance) Clone() Resource      { c := *b; return &c }

// ZigbeeConnectivity is a device service exposing upstream link status.
type ZigbeeConnectivity struct {
	Base
	Owner  Handle
	Status string // "connected", "connectivity_issue", "disconnected"
}

func (z *ZigbeeConnectivity) References() []Handle { return []Handle{z.Owner} }
func (z *ZigbeeConnectivity) Clone() Resource       { c := *z; return &c }
