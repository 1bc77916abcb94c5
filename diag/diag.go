// Package diag serves a read-only diagnostics API for the process instances stored in a backend.
package diag

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cschleiden/go-wfmc/backend"
	"github.com/cschleiden/go-wfmc/process"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Option func(*options)

type options struct {
	gatherer prometheus.Gatherer
}

// WithMetrics serves the metrics collected by gatherer at /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(o *options) {
		o.gatherer = gatherer
	}
}

// NewServeMux returns an *http.ServeMux that serves the diagnostics API at /api:
//
//	GET /api/stats                  instance counts
//	GET /api/instances/{instanceID} stored state of an instance
func NewServeMux(b backend.Backend, opts ...Option) *http.ServeMux {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		s, err := b.GetStats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, &StatsInfo{
			ActiveProcessInstances:   s.ActiveProcessInstances,
			FinishedProcessInstances: s.FinishedProcessInstances,
		})
	})

	mux.HandleFunc("GET /api/instances/{instanceID}", func(w http.ResponseWriter, r *http.Request) {
		record, err := b.GetProcessInstance(r.Context(), r.PathValue("instanceID"))
		if err != nil {
			if errors.Is(err, backend.ErrInstanceNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}

			writeError(w, http.StatusInternalServerError, err)
			return
		}

		var s *process.Snapshot
		if len(record.Snapshot) > 0 {
			s = &process.Snapshot{}
			if err := b.Options().Converter.From(record.Snapshot, s); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
		}

		writeJSON(w, newProcessInstanceInfo(record, s))
	})

	if o.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
