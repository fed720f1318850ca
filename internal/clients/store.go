// Package clients holds the paired-client map: application key to client
// name and derived entertainment secret, guarded by a mutex held only for
// the duration of a lookup or mutation, never across I/O.
package clients

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/duvholt/bifrost/internal/errs"
)

// Client is one paired application's record.
type Client struct {
	Key       string    // the 40-char application key, the bearer credential
	ClientKey string    // 32 hex chars, the entertainment DTLS-PSK secret
	Name      string    // devicetype string supplied at pairing time
	CreatedAt time.Time
}

// Store is the mutex-guarded paired-clients map.
type Store struct {
	mu    sync.Mutex
	byKey map[string]*Client
}

// NewStore returns an empty paired-clients store.
func NewStore() *Store {
	return &Store{byKey: make(map[string]*Client)}
}

// LoadAll replaces the store's contents, used when restoring from
// persisted state at startup.
func (s *Store) LoadAll(clients []*Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey = make(map[string]*Client, len(clients))
	for _, c := range clients {
		s.byKey[c.Key] = c
	}
}

// All returns every paired client, for persistence.
func (s *Store) All() []*Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Client, 0, len(s.byKey))
	for _, c := range s.byKey {
		out = append(out, c)
	}
	return out
}

// Create pairs a new client, generating a fresh application key and,
// when requested, an entertainment clientkey.
func (s *Store) Create(name string, generateClientKey bool) (*Client, error) {
	key, err := randomHex(20) // 40 hex chars
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to generate application key", err)
	}
	c := &Client{Key: key, Name: name, CreatedAt: time.Now()}
	if generateClientKey {
		ck, err := randomHex(16) // 32 hex chars
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, "failed to generate client key", err)
		}
		c.ClientKey = ck
	}

	s.mu.Lock()
	s.byKey[key] = c
	s.mu.Unlock()
	return c, nil
}

// Authenticate validates a bearer application key, as presented in the
// hue-application-key header on every non-pairing REST call.
func (s *Store) Authenticate(key string) (*Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byKey[key]
	return c, ok
}

// Lookup resolves a PSK identity (the application key presented during
// DTLS handshake) to the key and client name, for entertainment session
// setup.
func (s *Store) Lookup(identity string) (key, name string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byKey[identity]
	if !ok {
		return "", "", false
	}
	return c.Key, c.Name, true
}

// PSKSecret returns the raw PSK bytes for a presented identity, decoded
// from the client's stored hex clientkey. A client with no clientkey
// (never requested one) cannot start an entertainment session.
func (s *Store) PSKSecret(identity string) ([]byte, bool) {
	s.mu.Lock()
	c, ok := s.byKey[identity]
	s.mu.Unlock()
	if !ok || c.ClientKey == "" {
		return nil, false
	}
	secret, err := hex.DecodeString(c.ClientKey)
	if err != nil {
		return nil, false
	}
	return secret, true
}

// Revoke removes a paired client.
func (s *Store) Revoke(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byKey, key)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
