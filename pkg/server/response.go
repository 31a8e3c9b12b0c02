package server

import (
	"encoding/json"
	"errors"
	"net/http"
)

// errAPIKeyRequired is returned by New when the server would otherwise
// start accepting non-loopback requests with no way to authenticate them.
var errAPIKeyRequired = errors.New("server: API_KEY is required in non-loopback mode")

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a structured {"error": message} body. Every handler
// in this package returns a distinguishable error kind this way rather
// than a bare status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
