package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
bridge:
  mac: "00:17:88:aa:bb:cc"
gateways:
  - id: z2m
    url: "ws://localhost:8080"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Bridge.Name != "bifrost" {
		t.Errorf("bridge name default = %q, want bifrost", cfg.Bridge.Name)
	}
	if len(cfg.Gateways) != 1 {
		t.Fatalf("gateways = %d, want 1", len(cfg.Gateways))
	}
	if cfg.Gateways[0].RetryMultiplier != 2.0 {
		t.Errorf("retry multiplier default = %v, want 2.0", cfg.Gateways[0].RetryMultiplier)
	}
	if cfg.Entertainment.ListenAddr != "0.0.0.0:2100" {
		t.Errorf("entertainment listen addr default = %q", cfg.Entertainment.ListenAddr)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
bridge:
  mac: "00:17:88:aa:bb:cc"
entertainment:
  frame_gap: "2s500ms"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Entertainment.FrameGap.Duration() != 2*time.Second+500*time.Millisecond {
		t.Errorf("frame_gap = %v", cfg.Entertainment.FrameGap.Duration())
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("BIFROST_TOKEN", "secret123")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
bridge:
  mac: "00:17:88:aa:bb:cc"
gateways:
  - id: z2m
    url: "ws://localhost:8080"
    token: "${BIFROST_TOKEN}"
  - id: z2m-fallback
    url: "ws://localhost:8081"
    token: "${MISSING_VAR:default-token}"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateways[0].Token != "secret123" {
		t.Errorf("token = %q, want secret123", cfg.Gateways[0].Token)
	}
	if cfg.Gateways[1].Token != "default-token" {
		t.Errorf("fallback token = %q, want default-token", cfg.Gateways[1].Token)
	}
}
