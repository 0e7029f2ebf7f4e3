// Package api exposes a read-only operational HTTP surface over the
// pipeline: job listings, per-job status history, and per-status
// counts. It exists for operators watching a submission wave, not for
// driving the pipeline; all mutations go through the controller and
// the maintenance CLI.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zzygyx9119/ensembl-pipeline/job"
)

// API wires the HTTP handlers over a job store.
type API struct {
	store  job.Store
	logger *slog.Logger
}

// New creates an API over the given store.
func New(store job.Store, logger *slog.Logger) *API {
	return &API{store: store, logger: logger}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/jobs", a.listJobs)
		r.Get("/jobs/{jobID}", a.getJob)
		r.Get("/jobs/{jobID}/history", a.jobHistory)
		r.Get("/stats", a.stats)
	})
	return r
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("api: encode response", slog.String("error", err.Error()))
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}
