package persist

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/duvholt/bifrost/internal/graph"
)

func TestResourcesRoundTripThroughPersistence(t *testing.T) {
	store := graph.NewStore()

	lightHandle := graph.Handle{Kind: graph.KindLight, ID: uuid.New()}
	light := &graph.Light{Base: graph.Base{H: lightHandle}, Brightness: 50}
	if err := store.Apply([]graph.Mutation{{Kind: graph.ChangeAdded, Handle: lightHandle, Resource: light}}); err != nil {
		t.Fatalf("apply light: %v", err)
	}

	roomHandle := graph.Handle{Kind: graph.KindRoom, ID: uuid.New()}
	groupHandle := graph.Handle{Kind: graph.KindGroup, ID: uuid.New()}
	room := &graph.Room{
		Base:         graph.Base{H: roomHandle},
		Metadata:     graph.Metadata{Name: "Kitchen"},
		GroupedLight: groupHandle,
	}
	group := &graph.Group{Base: graph.Base{H: groupHandle}, Owner: roomHandle, Lights: []graph.Handle{lightHandle}}
	sceneHandle := graph.Handle{Kind: graph.KindScene, ID: uuid.New()}
	scene := &graph.Scene{
		Base:     graph.Base{H: sceneHandle},
		Metadata: graph.Metadata{Name: "Relax"},
		Group:    groupHandle,
		Actions:  []graph.SceneAction{{Target: lightHandle, State: graph.Light{On: true, Brightness: 40}}},
	}
	entHandle := graph.Handle{Kind: graph.KindEntertainmentConfig, ID: uuid.New()}
	ent := &graph.EntertainmentConfiguration{
		Base:     graph.Base{H: entHandle},
		Metadata: graph.Metadata{Name: "Movie night"},
		Lights:   []graph.Handle{lightHandle},
		Segments: map[graph.Handle][]uint16{lightHandle: {1, 2, 3}},
	}

	muts := []graph.Mutation{
		{Kind: graph.ChangeAdded, Handle: groupHandle, Resource: group},
		{Kind: graph.ChangeAdded, Handle: roomHandle, Resource: room},
		{Kind: graph.ChangeAdded, Handle: sceneHandle, Resource: scene},
		{Kind: graph.ChangeAdded, Handle: entHandle, Resource: ent},
	}
	if err := store.Apply(muts); err != nil {
		t.Fatalf("apply room/scene/entertainment config: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	state := NewState("001788FFFEAABBCC", "00:17:88:aa:bb:cc")
	state.Resources = ResourcesFromStore(store)
	if err := Save(path, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	restored, err := ResourcesToMutations(loaded.Resources)
	if err != nil {
		t.Fatalf("resources to mutations: %v", err)
	}

	// Restoring into a fresh store still needs the reconciler-owned light
	// present, exactly as it would after a gateway reconnect.
	fresh := graph.NewStore()
	if err := fresh.Apply([]graph.Mutation{{Kind: graph.ChangeAdded, Handle: lightHandle, Resource: light}}); err != nil {
		t.Fatalf("seed light: %v", err)
	}
	if err := fresh.Apply(restored); err != nil {
		t.Fatalf("apply restored resources: %v", err)
	}

	got, ok := fresh.Get(roomHandle)
	if !ok {
		t.Fatalf("room was not restored")
	}
	if got.(*graph.Room).Metadata.Name != "Kitchen" {
		t.Errorf("room name = %q", got.(*graph.Room).Metadata.Name)
	}

	gotScene, ok := fresh.Get(sceneHandle)
	if !ok {
		t.Fatalf("scene was not restored")
	}
	sceneRes := gotScene.(*graph.Scene)
	if len(sceneRes.Actions) != 1 || sceneRes.Actions[0].Target != lightHandle || !sceneRes.Actions[0].State.On {
		t.Errorf("scene actions = %+v", sceneRes.Actions)
	}

	gotEnt, ok := fresh.Get(entHandle)
	if !ok {
		t.Fatalf("entertainment configuration was not restored")
	}
	entRes := gotEnt.(*graph.EntertainmentConfiguration)
	if len(entRes.Segments[lightHandle]) != 3 {
		t.Errorf("segments = %+v", entRes.Segments)
	}
}

func TestResourcesToMutationsRejectsUnknownKind(t *testing.T) {
	_, err := ResourcesToMutations([]PersistedResource{{Kind: "unknown_kind", ID: uuid.New().String()}})
	if err == nil {
		t.Fatalf("expected an error for an unrecognized persisted resource kind")
	}
}
