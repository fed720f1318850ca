package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duvholt/bifrost/internal/codec"
	"github.com/duvholt/bifrost/internal/errs"
	"github.com/duvholt/bifrost/internal/graph"
	"github.com/duvholt/bifrost/internal/upstream"
)

// resourceBody renders one graph.Resource into the clip/v2 JSON shape for
// its kind. Unrecognized kinds fall back to the identity/type envelope
// only, which is enough for clients that just enumerate resources.
func resourceBody(r graph.Resource) map[string]any {
	h := r.Handle()
	body := map[string]any{
		"id":    h.ID.String(),
		"id_v1": "",
		"type":  string(h.Kind),
	}

	switch v := r.(type) {
	case *graph.Light:
		body["owner"] = ownerRef(v.Owner)
		body["metadata"] = v.Metadata
		body["on"] = map[string]any{"on": v.On}
		body["dimming"] = map[string]any{"brightness": v.Brightness}
		if v.ColorXY != nil {
			body["color"] = map[string]any{"xy": map[string]any{"x": v.ColorXY.X, "y": v.ColorXY.Y}}
		}
		if v.ColorMirek != nil {
			body["color_temperature"] = map[string]any{"mirek": *v.ColorMirek}
		}
		if v.Gradient != nil {
			points := make([]map[string]any, len(v.Gradient.Points))
			for i, p := range v.Gradient.Points {
				points[i] = map[string]any{"color": map[string]any{"xy": map[string]any{"x": p.X, "y": p.Y}}}
			}
			body["gradient"] = map[string]any{"points": points, "mode": v.Gradient.Style}
		}
	case *graph.Device:
		body["metadata"] = v.Metadata
		services := make([]map[string]any, len(v.Services))
		for i, s := range v.Services {
			services[i] = ownerRef(s)
		}
		body["services"] = services
	case *graph.Room:
		body["metadata"] = v.Metadata
		body["children"] = refList(v.Children)
		if !v.GroupedLight.IsZero() {
			body["services"] = []map[string]any{ownerRef(v.GroupedLight)}
		}
	case *graph.Zone:
		body["metadata"] = v.Metadata
		body["children"] = refList(v.Children)
		if !v.GroupedLight.IsZero() {
			body["services"] = []map[string]any{ownerRef(v.GroupedLight)}
		}
	case *graph.Group:
		body["owner"] = ownerRef(v.Owner)
		body["on"] = map[string]any{"on": v.On}
	case *graph.Scene:
		body["metadata"] = v.Metadata
		body["group"] = ownerRef(v.Group)
		actions := make([]map[string]any, len(v.Actions))
		for i, a := range v.Actions {
			actions[i] = map[string]any{
				"target": ownerRef(a.Target),
				"action": map[string]any{"on": map[string]any{"on": a.State.On}, "dimming": map[string]any{"brightness": a.State.Brightness}},
			}
		}
		body["actions"] = actions
	case *graph.EntertainmentConfiguration:
		body["metadata"] = v.Metadata
		body["status"] = map[bool]string{true: "active", false: "inactive"}[v.Active]
		lights := make([]map[string]any, len(v.Lights))
		for i, l := range v.Lights {
			lights[i] = ownerRef(l)
		}
		body["light_services"] = lights
	case *graph.Bridge:
		body["bridge_id"] = v.BridgeID
		body["owner"] = ownerRef(v.Owner)
	case *graph.BridgeHome:
		body["children"] = refList(v.Children)
	case *graph.Button:
		body["owner"] = ownerRef(v.Owner)
		body["button"] = map[string]any{"last_event": v.LastEvent, "event_count": v.EventCounter}
	case *graph.Motion:
		body["owner"] = ownerRef(v.Owner)
		body["motion"] = map[string]any{"motion": v.Motion, "motion_valid": true}
		body["enabled"] = v.Enabled
	case *graph.Temperature:
		body["owner"] = ownerRef(v.Owner)
		body["temperature"] = map[string]any{"temperature": v.Celsius, "temperature_valid": true}
		body["enabled"] = v.Enabled
	case *graph.ZigbeeConnectivity:
		body["owner"] = ownerRef(v.Owner)
		body["status"] = v.Status
	case *graph.GeofenceClient:
		body["name"] = v.Name
	case *graph.BehaviorScript:
		body["metadata"] = v.Metadata
	case *graph.BehaviorInstance:
		body["script_id"] = v.Script.ID.String()
		body["enabled"] = v.Enabled
	}
	return body
}

func ownerRef(h graph.Handle) map[string]any {
	if h.IsZero() {
		return nil
	}
	return map[string]any{"rid": h.ID.String(), "rtype": string(h.Kind)}
}

func refList(hs []graph.Handle) []map[string]any {
	out := make([]map[string]any, len(hs))
	for i, h := range hs {
		out[i] = ownerRef(h)
	}
	return out
}

func parseHandle(kindStr, idStr string) (graph.Handle, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return graph.Handle{}, err
	}
	return graph.Handle{Kind: graph.Kind(kindStr), ID: id}, nil
}

func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	all := s.store.All()
	out := make([]map[string]any, 0, len(all))
	for _, res := range all {
		out = append(out, resourceBody(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListKind(w http.ResponseWriter, r *http.Request) {
	kind := graph.Kind(chi.URLParam(r, "kind"))
	list := s.store.List(kind)
	out := make([]map[string]any, 0, len(list))
	for _, res := range list {
		out = append(out, resourceBody(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	h, err := parseHandle(chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "malformed resource id")
		return
	}
	res, ok := s.store.Get(h)
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, []map[string]any{resourceBody(res)})
}

// lightPatch is the subset of a light's v2 JSON body a PUT may change.
// Fields omitted from the request body are left untouched, per the
// merge-patch semantics every clip/v2 resource follows.
type lightPatch struct {
	On *struct {
		On bool `json:"on"`
	} `json:"on"`
	Dimming *struct {
		Brightness float64 `json:"brightness"`
	} `json:"dimming"`
	Color *struct {
		XY struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"xy"`
	} `json:"color"`
	ColorTemperature *struct {
		Mirek uint16 `json:"mirek"`
	} `json:"color_temperature"`
	Dynamics *struct {
		Duration *uint16 `json:"duration"`
	} `json:"dynamics"`
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	h, err := parseHandle(chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "malformed resource id")
		return
	}

	res, ok := s.store.Get(h)
	if !ok {
		writeNotFound(w)
		return
	}

	switch h.Kind {
	case graph.KindLight:
		s.handlePutLight(w, r, res.(*graph.Light))
	case graph.KindGroup:
		s.handlePutGroup(w, r, res.(*graph.Group))
	default:
		writeBadRequest(w, "resource type does not accept writes")
	}
}

func (s *Server) handlePutLight(w http.ResponseWriter, r *http.Request, light *graph.Light) {
	var patch lightPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "body contains invalid JSON")
		return
	}

	intent := upstream.Intent{LightAddr: light.GatewayRef}
	if patch.On != nil {
		on := patch.On.On
		light.On = on
		intent.On = &on
	}
	if patch.Dimming != nil {
		light.Brightness = patch.Dimming.Brightness
		b := brightnessToWire(patch.Dimming.Brightness)
		intent.Brightness = &b
	}
	if patch.Color != nil {
		xy := &codec.XY{X: patch.Color.XY.X, Y: patch.Color.XY.Y}
		light.ColorXY = xy
		intent.ColorXY = xy
	}
	if patch.ColorTemperature != nil {
		mirek := patch.ColorTemperature.Mirek
		light.ColorMirek = &mirek
		intent.ColorMirek = &mirek
	}

	if err := s.store.Apply([]graph.Mutation{{Kind: graph.ChangeUpdated, Handle: light.Handle(), Resource: light}}); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if light.GatewayID != "" {
		if err := s.upstream.Submit(r.Context(), light.Handle(), light.GatewayRef, intent); err != nil {
			if errs.KindOf(err) == errs.KindUnavailable {
				writeV2Error(w, http.StatusOK, "device unreachable, state applied locally only")
			}
		}
	}

	writeJSON(w, http.StatusOK, []map[string]any{{"rid": light.Handle().ID.String(), "rtype": string(light.Handle().Kind)}})
}

func (s *Server) handlePutGroup(w http.ResponseWriter, r *http.Request, group *graph.Group) {
	var patch struct {
		On *struct {
			On bool `json:"on"`
		} `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "body contains invalid JSON")
		return
	}
	if patch.On == nil {
		writeJSON(w, http.StatusOK, []map[string]any{{"rid": group.Handle().ID.String(), "rtype": string(group.Handle().Kind)}})
		return
	}

	group.On = patch.On.On
	if err := s.store.Apply([]graph.Mutation{{Kind: graph.ChangeUpdated, Handle: group.Handle(), Resource: group}}); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	for _, lh := range group.Lights {
		lr, ok := s.store.Get(lh)
		if !ok {
			continue
		}
		light, ok := lr.(*graph.Light)
		if !ok || light.GatewayID == "" {
			continue
		}
		on := patch.On.On
		_ = s.upstream.Submit(ctx, lh, light.GatewayRef, upstream.Intent{LightAddr: light.GatewayRef, On: &on})
	}

	writeJSON(w, http.StatusOK, []map[string]any{{"rid": group.Handle().ID.String(), "rtype": string(group.Handle().Kind)}})
}

// createRequest is the subset of fields a user-authored room/zone
// creation body carries; scene and entertainment_configuration creation
// decode their own request types.
type createRequest struct {
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
	Children []struct {
		RID string `json:"rid"`
	} `json:"children"`
	Group struct {
		RID string `json:"rid"`
	} `json:"group"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	kind := graph.Kind(chi.URLParam(r, "kind"))
	switch kind {
	case graph.KindRoom, graph.KindZone:
		s.handleCreateRoomOrZone(w, r, kind)
	case graph.KindScene:
		s.handleCreateScene(w, r)
	case graph.KindEntertainmentConfig:
		s.handleCreateEntertainmentConfig(w, r)
	default:
		writeBadRequest(w, "resource type does not support creation")
	}
}

func (s *Server) handleCreateRoomOrZone(w http.ResponseWriter, r *http.Request, kind graph.Kind) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "body contains invalid JSON")
		return
	}
	if req.Metadata.Name == "" {
		writeBadRequest(w, "metadata.name is required")
		return
	}

	children := make([]graph.Handle, 0, len(req.Children))
	for _, c := range req.Children {
		id, err := uuid.Parse(c.RID)
		if err != nil {
			writeBadRequest(w, "malformed child rid")
			return
		}
		children = append(children, graph.Handle{Kind: graph.KindDevice, ID: id})
	}

	id := uuid.New()
	h := graph.Handle{Kind: kind, ID: id}
	groupHandle := graph.Handle{Kind: graph.KindGroup, ID: uuid.New()}

	var res graph.Resource
	if kind == graph.KindRoom {
		res = &graph.Room{Base: graph.Base{H: h}, Metadata: graph.Metadata{Name: req.Metadata.Name}, Children: children, GroupedLight: groupHandle}
	} else {
		res = &graph.Zone{Base: graph.Base{H: h}, Metadata: graph.Metadata{Name: req.Metadata.Name}, Children: children, GroupedLight: groupHandle}
	}

	muts := []graph.Mutation{
		{Kind: graph.ChangeAdded, Handle: groupHandle, Resource: &graph.Group{Base: graph.Base{H: groupHandle}, Owner: h}},
		{Kind: graph.ChangeAdded, Handle: h, Resource: res},
	}
	if err := s.store.Apply(muts); err != nil {
		writeConflict(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, []map[string]any{{"rid": h.ID.String(), "rtype": string(h.Kind)}})
}

// sceneCreateRequest is the subset of a scene creation body this emulator
// honors: the recall group and, per target, the on/dimming state to
// apply when the scene is selected.
type sceneCreateRequest struct {
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
	Group struct {
		RID string `json:"rid"`
	} `json:"group"`
	Actions []struct {
		Target struct {
			RID   string `json:"rid"`
			RType string `json:"rtype"`
		} `json:"target"`
		Action struct {
			On *struct {
				On bool `json:"on"`
			} `json:"on"`
			Dimming *struct {
				Brightness float64 `json:"brightness"`
			} `json:"dimming"`
		} `json:"action"`
	} `json:"actions"`
}

func (s *Server) handleCreateScene(w http.ResponseWriter, r *http.Request) {
	var req sceneCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "body contains invalid JSON")
		return
	}
	if req.Metadata.Name == "" {
		writeBadRequest(w, "metadata.name is required")
		return
	}
	groupID, err := uuid.Parse(req.Group.RID)
	if err != nil {
		writeBadRequest(w, "malformed group rid")
		return
	}
	groupHandle := graph.Handle{Kind: graph.KindGroup, ID: groupID}
	if _, ok := s.store.Get(groupHandle); !ok {
		writeBadRequest(w, "group does not exist")
		return
	}

	actions := make([]graph.SceneAction, 0, len(req.Actions))
	for _, a := range req.Actions {
		targetID, err := uuid.Parse(a.Target.RID)
		if err != nil {
			writeBadRequest(w, "malformed action target rid")
			return
		}
		target := graph.Handle{Kind: graph.Kind(a.Target.RType), ID: targetID}

		var state graph.Light
		if a.Action.On != nil {
			state.On = a.Action.On.On
		}
		if a.Action.Dimming != nil {
			state.Brightness = a.Action.Dimming.Brightness
		}
		actions = append(actions, graph.SceneAction{Target: target, State: state})
	}

	h := graph.Handle{Kind: graph.KindScene, ID: uuid.New()}
	scene := &graph.Scene{
		Base:     graph.Base{H: h},
		Metadata: graph.Metadata{Name: req.Metadata.Name},
		Group:    groupHandle,
		Actions:  actions,
	}
	if err := s.store.Apply([]graph.Mutation{{Kind: graph.ChangeAdded, Handle: h, Resource: scene}}); err != nil {
		writeConflict(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, []map[string]any{{"rid": h.ID.String(), "rtype": string(h.Kind)}})
}

// entertainmentConfigCreateRequest carries the lights an entertainment
// configuration streams to; each is provisioned a virtual address on its
// owning gateway as part of creation, per spec §4.4.
type entertainmentConfigCreateRequest struct {
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
	LightServices []struct {
		RID string `json:"rid"`
	} `json:"light_services"`
}

func (s *Server) handleCreateEntertainmentConfig(w http.ResponseWriter, r *http.Request) {
	if s.entertainment == nil {
		writeBadRequest(w, "entertainment streaming is not enabled on this bridge")
		return
	}

	var req entertainmentConfigCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "body contains invalid JSON")
		return
	}
	if req.Metadata.Name == "" {
		writeBadRequest(w, "metadata.name is required")
		return
	}
	if len(req.LightServices) == 0 {
		writeBadRequest(w, "light_services must include at least one light")
		return
	}

	lights := make([]graph.Handle, 0, len(req.LightServices))
	segments := make(map[graph.Handle][]uint16, len(req.LightServices))
	for _, ls := range req.LightServices {
		lightID, err := uuid.Parse(ls.RID)
		if err != nil {
			writeBadRequest(w, "malformed light_services rid")
			return
		}
		lh := graph.Handle{Kind: graph.KindLight, ID: lightID}
		res, ok := s.store.Get(lh)
		if !ok {
			writeBadRequest(w, "light does not exist")
			return
		}
		light, ok := res.(*graph.Light)
		if !ok || light.GatewayID == "" {
			writeBadRequest(w, "light is not bound to a gateway")
			return
		}

		segmentCount := 1
		if light.Gradient != nil && len(light.Gradient.Points) > 0 {
			segmentCount = len(light.Gradient.Points)
		}
		addrs, err := s.entertainment.ConfigureLight(r.Context(), lh, light.GatewayRef, segmentCount)
		if err != nil {
			writeV2Error(w, http.StatusOK, "failed to configure entertainment segments for a light")
			return
		}

		lights = append(lights, lh)
		segments[lh] = addrs
	}

	h := graph.Handle{Kind: graph.KindEntertainmentConfig, ID: uuid.New()}
	cfg := &graph.EntertainmentConfiguration{
		Base:     graph.Base{H: h},
		Metadata: graph.Metadata{Name: req.Metadata.Name},
		Lights:   lights,
		Segments: segments,
	}
	if err := s.store.Apply([]graph.Mutation{{Kind: graph.ChangeAdded, Handle: h, Resource: cfg}}); err != nil {
		writeConflict(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, []map[string]any{{"rid": h.ID.String(), "rtype": string(h.Kind)}})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	h, err := parseHandle(chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "malformed resource id")
		return
	}
	if _, ok := s.store.Get(h); !ok {
		writeNotFound(w)
		return
	}
	if err := s.store.Apply([]graph.Mutation{{Kind: graph.ChangeDeleted, Handle: h}}); err != nil {
		writeConflict(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, []map[string]any{{"rid": h.ID.String(), "rtype": string(h.Kind)}})
}

// brightnessToWire converts a [1,100] percent brightness into the
// gateway's native [1,254] scale.
func brightnessToWire(percent float64) uint8 {
	if percent < 1 {
		percent = 1
	}
	if percent > 100 {
		percent = 100
	}
	v := uint8((percent / 100) * 254)
	if v < 1 {
		v = 1
	}
	return v
}
