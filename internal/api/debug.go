package api

import (
	"net/http"
	hpprof "net/http/pprof"
)

const pprofPrefix = "/debug/pprof/"

// mountPprof registers the runtime profiler. The routes share the API token.
func mountPprof(mux *http.ServeMux) {
	mux.HandleFunc("GET "+pprofPrefix, hpprof.Index)
	mux.HandleFunc("GET "+pprofPrefix+"cmdline", hpprof.Cmdline)
	mux.HandleFunc("GET "+pprofPrefix+"profile", hpprof.Profile)
	mux.HandleFunc("GET "+pprofPrefix+"symbol", hpprof.Symbol)
	mux.HandleFunc("POST "+pprofPrefix+"symbol", hpprof.Symbol)
	mux.HandleFunc("GET "+pprofPrefix+"trace", hpprof.Trace)
}
