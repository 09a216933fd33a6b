package env

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

const unset = "unset"

// Build describes the running binary, as served on the metrics listener.
type Build struct {
	Version   string    `json:"version"`
	GoVersion string    `json:"go_version"`
	StartedAt time.Time `json:"started_at"`
}

var current = Build{
	Version:   unset,
	GoVersion: runtime.Version(),
	StartedAt: time.Now().UTC(),
}

// SetVersion stamps the binary version. Call it once from main, before any
// listener starts.
func SetVersion(v string) {
	if v == "" {
		v = unset
	}
	current.Version = v
}

func Version() string {
	return current.Version
}

func Current() Build {
	return current
}

// IsRelease reports whether a version was stamped at startup.
func IsRelease() bool {
	return current.Version != unset
}

func VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(current) // nolint:errcheck
}
