// Package persist implements the bridge's single persisted state file:
// identity, paired clients, and the user-authored resource graph subset,
// written atomically so a crash mid-write never corrupts the file a
// restart reads.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/duvholt/bifrost/internal/clients"
)

// schemaVersion is bumped whenever the on-disk shape changes in a way a
// future loader must reject rather than silently misinterpret.
const schemaVersion = 1

// PersistedClient is the on-disk shape of a paired client record.
type PersistedClient struct {
	Key       string    `yaml:"key"`
	ClientKey string    `yaml:"client_key,omitempty"`
	Name      string    `yaml:"name"`
	CreatedAt time.Time `yaml:"created_at"`
}

// PersistedResource is the on-disk shape of one user-authored resource
// (room, zone, the grouped_light a room or zone owns, scene, or
// entertainment configuration). Name/icon overrides on reconciler-owned
// resources are not persisted. Kept as a loosely typed
// document rather than the live graph.Resource interface, since this is
// the one place the bridge's own schema versioning applies, independent
// of in-memory representation.
type PersistedResource struct {
	Kind string         `yaml:"kind"`
	ID   string         `yaml:"id"`
	Data map[string]any `yaml:"data"`
}

// State is the full on-disk document.
type State struct {
	SchemaVersion int                 `yaml:"schema_version"`
	BridgeID      string              `yaml:"bridge_id"`
	MAC           string              `yaml:"mac"`
	CertFingerprint string            `yaml:"cert_fingerprint,omitempty"`
	Clients       []PersistedClient   `yaml:"clients"`
	Resources     []PersistedResource `yaml:"resources"`
}

// NewState builds an empty state document stamped with the current
// schema version.
func NewState(bridgeID, mac string) *State {
	return &State{SchemaVersion: schemaVersion, BridgeID: bridgeID, MAC: mac}
}

// Load reads and validates a state file. An unrecognized schema version
// is a hard error: future loaders must reject files they don't
// understand rather than guess.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("persist: parsing %s: %w", path, err)
	}
	if s.SchemaVersion != schemaVersion {
		return nil, fmt.Errorf("persist: %s has schema_version %d, this build understands %d",
			path, s.SchemaVersion, schemaVersion)
	}
	return &s, nil
}

// Save writes the state file atomically: marshal, write to a temp file in
// the same directory, fsync, then rename over the destination.
func Save(path string, s *State) error {
	s.SchemaVersion = schemaVersion

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// ClientsFromStore converts a live clients.Store into its persisted form.
func ClientsFromStore(store *clients.Store) []PersistedClient {
	live := store.All()
	out := make([]PersistedClient, 0, len(live))
	for _, c := range live {
		out = append(out, PersistedClient{
			Key:       c.Key,
			ClientKey: c.ClientKey,
			Name:      c.Name,
			CreatedAt: c.CreatedAt,
		})
	}
	return out
}

// RestoreClients loads persisted client records into a live store.
func RestoreClients(store *clients.Store, persisted []PersistedClient) {
	live := make([]*clients.Client, 0, len(persisted))
	for _, p := range persisted {
		live = append(live, &clients.Client{
			Key:       p.Key,
			ClientKey: p.ClientKey,
			Name:      p.Name,
			CreatedAt: p.CreatedAt,
		})
	}
	store.LoadAll(live)
}
