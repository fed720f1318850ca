package upstream

import "testing"

func TestNormalizeGatewayURLAddsMissingPieces(t *testing.T) {
	got, err := NormalizeGatewayURL("localhost:8080")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := "ws://localhost:8080/api?token=your-secret-token"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeGatewayURLLeavesWellFormedURLAlone(t *testing.T) {
	got, err := NormalizeGatewayURL("wss://gw.local:8080/api?token=abc123")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := "wss://gw.local:8080/api?token=abc123"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
