package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	pipeline "github.com/zzygyx9119/ensembl-pipeline"
	"github.com/zzygyx9119/ensembl-pipeline/job"
)

const defaultListLimit = 100

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := job.FindOpts{
		Analysis: q.Get("analysis"),
		Status:   job.Status(q.Get("status")),
		Limit:    defaultListLimit,
	}
	if opts.Status != "" && !opts.Status.Valid() {
		a.writeError(w, http.StatusBadRequest, "unknown status "+string(opts.Status))
		return
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}

	var olderThan time.Duration
	if raw := q.Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, "invalid older_than duration")
			return
		}
		olderThan = d
	}

	jobs, err := a.store.Find(r.Context(), olderThan, opts)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []*job.Record{}
	}
	a.writeJSON(w, http.StatusOK, jobs)
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	rec, err := a.store.GetJob(r.Context(), jobID)
	if errors.Is(err, pipeline.ErrJobNotFound) {
		a.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}

func (a *API) jobHistory(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	events, err := a.store.StatusHistory(r.Context(), jobID)
	if errors.Is(err, pipeline.ErrJobNotFound) {
		a.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, events)
}
