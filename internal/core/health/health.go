// Package health serves liveness and readiness probes.
package health

import (
	"encoding/json"
	"net/http"
)

type ReadinessReporter interface {
	// Readiness reports whether the service can answer requests and how
	// many map sources it serves.
	Readiness() (ready bool, maps int)
}

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status string `json:"status"`
			Maps   int    `json:"maps"`
		}
		ready, maps := rr.Readiness()
		out := resp{Status: "not_ready", Maps: maps}
		if ready {
			out.Status = "ready"
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
