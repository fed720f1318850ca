package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/duvholt/bifrost/internal/clients"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	s := NewState("001788FFFEAABBCC", "00:17:88:aa:bb:cc")
	s.Resources = []PersistedResource{{Kind: "room", ID: "abc", Data: map[string]any{"name": "Kitchen"}}}

	if err := Save(path, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.BridgeID != s.BridgeID {
		t.Errorf("bridge id = %q, want %q", loaded.BridgeID, s.BridgeID)
	}
	if len(loaded.Resources) != 1 || loaded.Resources[0].ID != "abc" {
		t.Fatalf("resources = %+v", loaded.Resources)
	}
}

func TestLoadRejectsUnknownSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	s := NewState("x", "y")
	s.SchemaVersion = 999
	if err := Save(path, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Save always stamps the current version, so hand-write a bad one.
	raw := "schema_version: 999\nbridge_id: x\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected a schema version mismatch error")
	}
}

func TestClientsRoundTripThroughPersistence(t *testing.T) {
	store := clients.NewStore()
	store.Create("app-1", true)
	store.Create("app-2", false)

	persisted := ClientsFromStore(store)
	if len(persisted) != 2 {
		t.Fatalf("persisted = %d, want 2", len(persisted))
	}

	restored := clients.NewStore()
	RestoreClients(restored, persisted)
	if len(restored.All()) != 2 {
		t.Fatalf("restored = %d, want 2", len(restored.All()))
	}
}
