package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duvholt/bifrost/internal/codec"
	"github.com/duvholt/bifrost/internal/config"
	"github.com/duvholt/bifrost/internal/graph"
)

// fakeGateway is a minimal echo-style gateway: it answers whatever
// request envelope types the test registers, correlating by ID exactly
// like a real gateway would.
type fakeGateway struct {
	responses map[string]func(Envelope) Envelope
}

func newFakeGatewayServer(t *testing.T, responses map[string]func(Envelope) Envelope) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			build, ok := responses[env.Type]
			if !ok {
				continue
			}
			resp := build(env)
			resp.ID = env.ID
			body, err := json.Marshal(resp)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial fake gateway: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRequestInventoryRoundTrip(t *testing.T) {
	conn := newFakeGatewayServer(t, map[string]func(Envelope) Envelope{
		"device_list_request": func(Envelope) Envelope {
			return Envelope{Type: "device_list", Payload: json.RawMessage(`{"devices":[{"ieee_addr":"0x1","friendly_name":"Kitchen"}]}`)}
		},
		"group_list_request": func(Envelope) Envelope {
			return Envelope{Type: "group_list", Payload: json.RawMessage(`{"groups":[{"name":"Living Room","members":["0x1"]}]}`)}
		},
	})

	store := graph.NewStore()
	s := NewSession(config.GatewayConfig{ID: "z2m"}, store, NewManager(store, nil))
	s.conn = conn

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go s.readLoop(ctx)

	devices, groups, err := s.requestInventory(ctx)
	if err != nil {
		t.Fatalf("requestInventory: %v", err)
	}
	if len(devices) != 1 || devices[0].FriendlyName != "Kitchen" {
		t.Fatalf("devices = %+v, want one device named Kitchen", devices)
	}
	if len(groups) != 1 || groups[0].Name != "Living Room" {
		t.Fatalf("groups = %+v, want one group named Living Room", groups)
	}
}

func TestConfigureSegmentsRoundTrip(t *testing.T) {
	conn := newFakeGatewayServer(t, map[string]func(Envelope) Envelope{
		"raw_command": func(Envelope) Envelope {
			return Envelope{Type: "raw_command_response", Payload: json.RawMessage(`{"status":0}`)}
		},
	})

	store := graph.NewStore()
	s := NewSession(config.GatewayConfig{ID: "z2m"}, store, NewManager(store, nil))
	s.conn = conn

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go s.readLoop(ctx)

	status, err := s.configureSegments(ctx, "0xABCD", &codec.SegmentConfigureRequest{Segments: []codec.SegmentEntry{{VirtualAddr: 1}}})
	if err != nil {
		t.Fatalf("configureSegments: %v", err)
	}
	if status != codec.SegmentConfigureOK {
		t.Fatalf("status = %#x, want SegmentConfigureOK", status)
	}
}

func TestDiffInventoryCreatesDeviceAndLight(t *testing.T) {
	store := graph.NewStore()
	s := NewSession(config.GatewayConfig{ID: "z2m"}, store, NewManager(store, nil))

	muts := s.diffInventory([]InventoryDevice{{IEEEAddr: "0x1", FriendlyName: "Kitchen"}}, nil)
	if len(muts) != 2 {
		t.Fatalf("mutations = %d, want 2 (device + light)", len(muts))
	}
	if err := store.Apply(muts); err != nil {
		t.Fatalf("apply: %v", err)
	}

	lights := store.List(graph.KindLight)
	if len(lights) != 1 {
		t.Fatalf("lights = %d, want 1", len(lights))
	}
	if lights[0].(*graph.Light).Metadata.Name != "Kitchen" {
		t.Errorf("light name = %q", lights[0].(*graph.Light).Metadata.Name)
	}
}

func TestDiffInventoryGroupPrefixFilter(t *testing.T) {
	store := graph.NewStore()
	s := NewSession(config.GatewayConfig{ID: "z2m", Prefix: "hue-"}, store, NewManager(store, nil))

	groups := []InventoryGroup{
		{Name: "hue-Living Room"},
		{Name: "raw-group-not-exposed"},
	}
	muts := s.diffInventory(nil, groups)
	if len(muts) != 1 {
		t.Fatalf("mutations = %d, want 1 (only the prefixed group)", len(muts))
	}
}

func TestDiffInventoryPreservesExistingLightState(t *testing.T) {
	store := graph.NewStore()
	s := NewSession(config.GatewayConfig{ID: "z2m"}, store, NewManager(store, nil))

	first := s.diffInventory([]InventoryDevice{{IEEEAddr: "0x1", FriendlyName: "Kitchen"}}, nil)
	if err := store.Apply(first); err != nil {
		t.Fatalf("apply: %v", err)
	}

	lights := store.List(graph.KindLight)
	lightHandle := lights[0].Handle()
	on := true
	updated := lights[0].(*graph.Light)
	updated.On = on
	updated.Brightness = 77
	if err := store.Apply([]graph.Mutation{{Kind: graph.ChangeUpdated, Handle: lightHandle, Resource: updated}}); err != nil {
		t.Fatalf("apply update: %v", err)
	}

	second := s.diffInventory([]InventoryDevice{{IEEEAddr: "0x1", FriendlyName: "Kitchen"}}, nil)
	if err := store.Apply(second); err != nil {
		t.Fatalf("re-apply: %v", err)
	}

	got, _ := store.Get(lightHandle)
	if !got.(*graph.Light).On || got.(*graph.Light).Brightness != 77 {
		t.Fatalf("re-running inventory should preserve live state, got %+v", got)
	}
}
