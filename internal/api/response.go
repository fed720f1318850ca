package api

import (
	"encoding/json"
	"net/http"
)

// v2Envelope wraps every clip/v2 response body, per the real API's
// {errors, data} shape.
type v2Envelope struct {
	Errors []v2Error `json:"errors"`
	Data   any       `json:"data"`
}

type v2Error struct {
	Description string `json:"description"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v2Envelope{Errors: []v2Error{}, Data: data})
}

// writeJSONArray writes the v1-compatible bare-array response shape used
// by the pairing handshake, which predates the v2 {errors, data}
// envelope.
func writeJSONArray(w http.ResponseWriter, status int, item any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode([]any{item})
}

// writeRawJSON writes a bare JSON value with neither the v1 array wrapper
// nor the v2 {errors, data} envelope, matching the v1 config probe's
// historical response shape.
func writeRawJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeV2Error(w http.ResponseWriter, status int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v2Envelope{Errors: []v2Error{{Description: description}}, Data: []any{}})
}

func writeBadRequest(w http.ResponseWriter, description string) {
	writeV2Error(w, http.StatusBadRequest, description)
}

func writeUnauthorized(w http.ResponseWriter) {
	writeV2Error(w, http.StatusUnauthorized, "unauthorized user")
}

func writeNotFound(w http.ResponseWriter) {
	writeV2Error(w, http.StatusNotFound, "resource not found")
}

func writeConflict(w http.ResponseWriter, description string) {
	writeV2Error(w, http.StatusConflict, description)
}

func writeInternalError(w http.ResponseWriter) {
	writeV2Error(w, http.StatusInternalServerError, "internal error")
}

// writeGone reports a gap a subscriber cannot resume from: its last-seen
// seq has already aged out of the retained change-log tail.
func writeGone(w http.ResponseWriter, description string) {
	writeV2Error(w, http.StatusGone, description)
}
