package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// apiVersion is reported on every v1 config probe, matching the version
// string real Hue apps sniff to decide whether clip/v2 is available.
const apiVersion = "1.56.0"

type v1Config struct {
	Name             string `json:"name"`
	DatastoreVersion string `json:"datastoreversion"`
	SWVersion        string `json:"swversion"`
	APIVersion       string `json:"apiversion"`
	Mac              string `json:"mac"`
	BridgeID         string `json:"bridgeid"`
	FactoryNew       bool   `json:"factorynew"`
	ModelID          string `json:"modelid"`
}

// v1Config is read by older apps and by the SSDP/mDNS discovery flow as a
// capability probe; bifrost never serves a full v1 CRUD surface (clip/v2
// is the only write path), only this config mirror.
func (s *Server) v1ConfigBody() v1Config {
	return v1Config{
		Name:             "bifrost",
		DatastoreVersion: "131",
		SWVersion:        "1967054030",
		APIVersion:       apiVersion,
		BridgeID:         s.bridgeID,
		FactoryNew:       false,
		ModelID:          "BSB002",
	}
}

func (s *Server) handleV1Config(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if _, ok := s.clients.Authenticate(username); !ok {
		writeUnauthorized(w)
		return
	}
	writeRawJSON(w, http.StatusOK, s.v1ConfigBody())
}

func (s *Server) handleV1NoUserConfig(w http.ResponseWriter, r *http.Request) {
	writeRawJSON(w, http.StatusOK, s.v1ConfigBody())
}
