package api

import "net/http"

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := a.store.CountByStatus(r.Context(), r.URL.Query().Get("analysis"))
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, counts)
}
