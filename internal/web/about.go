package web

import (
	"net/http"
	"runtime"
	"runtime/debug"
)

type AboutResponse struct {
	Service   string `json:"service"`
	GoVersion string `json:"go_version"`
	Module    string `json:"module,omitempty"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
}

// AboutHandler reports build information embedded by the Go toolchain.
func AboutHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		resp := AboutResponse{Service: "servopwm", GoVersion: runtime.Version()}
		if bi, ok := debug.ReadBuildInfo(); ok {
			resp.Module = bi.Main.Path
			resp.Version = bi.Main.Version
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					resp.Commit = s.Value
				case "vcs.modified":
					resp.Dirty = s.Value == "true"
				}
			}
		}
		writeJSON(w, resp)
	})
}
