package clients

import "testing"

func TestCreateAndAuthenticate(t *testing.T) {
	s := NewStore()
	c, err := s.Create("test-app#device", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(c.Key) != 40 {
		t.Errorf("key length = %d, want 40", len(c.Key))
	}
	if len(c.ClientKey) != 32 {
		t.Errorf("clientkey length = %d, want 32", len(c.ClientKey))
	}

	got, ok := s.Authenticate(c.Key)
	if !ok || got.Name != "test-app#device" {
		t.Fatalf("authenticate failed: %+v, %v", got, ok)
	}
}

func TestAuthenticateRejectsUnknownKey(t *testing.T) {
	s := NewStore()
	if _, ok := s.Authenticate("bogus"); ok {
		t.Fatalf("unknown key should not authenticate")
	}
}

func TestPSKSecretRequiresClientKey(t *testing.T) {
	s := NewStore()
	c, err := s.Create("no-entertainment", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := s.PSKSecret(c.Key); ok {
		t.Fatalf("client without a clientkey should have no PSK secret")
	}

	withKey, err := s.Create("entertainment-client", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	secret, ok := s.PSKSecret(withKey.Key)
	if !ok || len(secret) != 16 {
		t.Fatalf("secret = %x, ok=%v, want 16 bytes", secret, ok)
	}
}

func TestRevoke(t *testing.T) {
	s := NewStore()
	c, _ := s.Create("bye", false)
	s.Revoke(c.Key)
	if _, ok := s.Authenticate(c.Key); ok {
		t.Fatalf("revoked key should not authenticate")
	}
}

func TestLoadAllReplacesContents(t *testing.T) {
	s := NewStore()
	s.Create("first", false)
	s.LoadAll([]*Client{{Key: "restored-key", Name: "restored"}})
	if _, ok := s.Authenticate("restored-key"); !ok {
		t.Fatalf("restored key should authenticate")
	}
	if len(s.All()) != 1 {
		t.Fatalf("store should contain exactly the restored set")
	}
}
