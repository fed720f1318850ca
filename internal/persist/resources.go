package persist

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/duvholt/bifrost/internal/graph"
)

// ResourcesFromStore captures every user-authored resource (rooms, zones,
// scenes, entertainment configurations, and the grouped_light each room
// or zone owns) into its persisted form. Gateway-native groups exposed
// straight from a reconciler's inventory sync carry a zero Owner and are
// skipped: they are rebuilt from the gateway's own state on every
// reconnect, not something this bridge authored.
func ResourcesFromStore(store *graph.Store) []PersistedResource {
	var out []PersistedResource

	for _, r := range store.List(graph.KindGroup) {
		g := r.(*graph.Group)
		if g.Owner.IsZero() {
			continue
		}
		out = append(out, PersistedResource{
			Kind: string(graph.KindGroup),
			ID:   g.Handle().ID.String(),
			Data: map[string]any{"owner": refString(g.Owner)},
		})
	}

	for _, r := range store.List(graph.KindRoom) {
		room := r.(*graph.Room)
		out = append(out, PersistedResource{
			Kind: string(graph.KindRoom),
			ID:   room.Handle().ID.String(),
			Data: map[string]any{
				"name":          room.Metadata.Name,
				"children":      refStrings(room.Children),
				"grouped_light": refString(room.GroupedLight),
			},
		})
	}

	for _, r := range store.List(graph.KindZone) {
		zone := r.(*graph.Zone)
		out = append(out, PersistedResource{
			Kind: string(graph.KindZone),
			ID:   zone.Handle().ID.String(),
			Data: map[string]any{
				"name":          zone.Metadata.Name,
				"children":      refStrings(zone.Children),
				"grouped_light": refString(zone.GroupedLight),
			},
		})
	}

	for _, r := range store.List(graph.KindScene) {
		scene := r.(*graph.Scene)
		actions := make([]map[string]any, len(scene.Actions))
		for i, a := range scene.Actions {
			actions[i] = map[string]any{
				"target_kind": string(a.Target.Kind),
				"target_id":   a.Target.ID.String(),
				"on":          a.State.On,
				"brightness":  a.State.Brightness,
			}
		}
		out = append(out, PersistedResource{
			Kind: string(graph.KindScene),
			ID:   scene.Handle().ID.String(),
			Data: map[string]any{
				"name":    scene.Metadata.Name,
				"group":   refString(scene.Group),
				"actions": actions,
			},
		})
	}

	for _, r := range store.List(graph.KindEntertainmentConfig) {
		cfg := r.(*graph.EntertainmentConfiguration)
		segments := make(map[string][]uint16, len(cfg.Segments))
		for h, addrs := range cfg.Segments {
			segments[h.ID.String()] = addrs
		}
		out = append(out, PersistedResource{
			Kind: string(graph.KindEntertainmentConfig),
			ID:   cfg.Handle().ID.String(),
			Data: map[string]any{
				"name":     cfg.Metadata.Name,
				"lights":   refStrings(cfg.Lights),
				"segments": segments,
			},
		})
	}

	return out
}

// ResourcesToMutations decodes persisted resources back into concrete
// graph.Resource values, ready for one Store.Apply call. It does not
// attempt to resolve references outside the batch: a Room referencing a
// Device it doesn't carry along still fails Apply's reference check, by
// design, since that Device is reconciler-owned and must already exist
// in the store.
func ResourcesToMutations(persisted []PersistedResource) ([]graph.Mutation, error) {
	muts := make([]graph.Mutation, 0, len(persisted))
	for _, p := range persisted {
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return nil, fmt.Errorf("persist: malformed resource id %q: %w", p.ID, err)
		}
		handle := graph.Handle{Kind: graph.Kind(p.Kind), ID: id}

		res, err := decodeResource(handle, p)
		if err != nil {
			return nil, err
		}

		muts = append(muts, graph.Mutation{Kind: graph.ChangeAdded, Handle: handle, Resource: res})
	}
	return muts, nil
}

func decodeResource(handle graph.Handle, p PersistedResource) (graph.Resource, error) {
	switch graph.Kind(p.Kind) {
	case graph.KindGroup:
		owner, err := parseRef(strField(p.Data, "owner"))
		if err != nil {
			return nil, err
		}
		return &graph.Group{Base: graph.Base{H: handle}, Owner: owner}, nil

	case graph.KindRoom, graph.KindZone:
		children, err := parseRefs(strSliceField(p.Data, "children"))
		if err != nil {
			return nil, err
		}
		grouped, err := parseRef(strField(p.Data, "grouped_light"))
		if err != nil {
			return nil, err
		}
		name := strField(p.Data, "name")
		if p.Kind == string(graph.KindRoom) {
			return &graph.Room{Base: graph.Base{H: handle}, Metadata: graph.Metadata{Name: name}, Children: children, GroupedLight: grouped}, nil
		}
		return &graph.Zone{Base: graph.Base{H: handle}, Metadata: graph.Metadata{Name: name}, Children: children, GroupedLight: grouped}, nil

	case graph.KindScene:
		group, err := parseRef(strField(p.Data, "group"))
		if err != nil {
			return nil, err
		}
		actions, err := decodeSceneActions(p.Data["actions"])
		if err != nil {
			return nil, err
		}
		return &graph.Scene{Base: graph.Base{H: handle}, Metadata: graph.Metadata{Name: strField(p.Data, "name")}, Group: group, Actions: actions}, nil

	case graph.KindEntertainmentConfig:
		lights, err := parseRefs(strSliceField(p.Data, "lights"))
		if err != nil {
			return nil, err
		}
		segments, err := decodeSegments(p.Data["segments"])
		if err != nil {
			return nil, err
		}
		return &graph.EntertainmentConfiguration{
			Base:     graph.Base{H: handle},
			Metadata: graph.Metadata{Name: strField(p.Data, "name")},
			Lights:   lights,
			Segments: segments,
		}, nil

	default:
		return nil, fmt.Errorf("persist: unknown persisted resource kind %q", p.Kind)
	}
}

func decodeSceneActions(raw any) ([]graph.SceneAction, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, nil
	}
	out := make([]graph.SceneAction, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		targetID, _ := m["target_id"].(string)
		id, err := uuid.Parse(targetID)
		if err != nil {
			return nil, fmt.Errorf("persist: malformed scene action target %q: %w", targetID, err)
		}
		targetKind, _ := m["target_kind"].(string)
		on, _ := m["on"].(bool)
		var brightness float64
		switch n := m["brightness"].(type) {
		case int:
			brightness = float64(n)
		case float64:
			brightness = n
		}
		out = append(out, graph.SceneAction{
			Target: graph.Handle{Kind: graph.Kind(targetKind), ID: id},
			State:  graph.Light{On: on, Brightness: brightness},
		})
	}
	return out, nil
}

func decodeSegments(raw any) (map[graph.Handle][]uint16, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, nil
	}
	out := make(map[graph.Handle][]uint16, len(m))
	for lightID, v := range m {
		id, err := uuid.Parse(lightID)
		if err != nil {
			return nil, fmt.Errorf("persist: malformed segment light id %q: %w", lightID, err)
		}
		handle := graph.Handle{Kind: graph.KindLight, ID: id}
		list, ok := v.([]any)
		if !ok {
			continue
		}
		addrs := make([]uint16, 0, len(list))
		for _, a := range list {
			switch n := a.(type) {
			case int:
				addrs = append(addrs, uint16(n))
			case float64:
				addrs = append(addrs, uint16(n))
			}
		}
		out[handle] = addrs
	}
	return out, nil
}

func strField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func strSliceField(data map[string]any, key string) []string {
	raw, ok := data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// refString encodes a handle as "<kind>:<uuid>" so a reference's kind
// survives the round trip even for fields (scene targets, room children)
// that can point at more than one kind of resource.
func refString(h graph.Handle) string {
	if h.IsZero() {
		return ""
	}
	return string(h.Kind) + ":" + h.ID.String()
}

func refStrings(hs []graph.Handle) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = refString(h)
	}
	return out
}

func parseRef(s string) (graph.Handle, error) {
	if s == "" {
		return graph.Handle{}, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return graph.Handle{}, fmt.Errorf("persist: malformed resource reference %q", s)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return graph.Handle{}, err
	}
	return graph.Handle{Kind: graph.Kind(parts[0]), ID: id}, nil
}

func parseRefs(strs []string) ([]graph.Handle, error) {
	out := make([]graph.Handle, 0, len(strs))
	for _, s := range strs {
		h, err := parseRef(s)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
