package server

import (
	"net/http"

	"github.com/relaycast/relaycast-go/version"
)

// HealthHandler reports the running version with a 200 status
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","version":"` + version.Version() + `"}`)) // nolint:errcheck
}
