package handlers

import (
	"net/http"
)

// StatsOverview returns queue totals and top request countries.
func (a *App) StatsOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := a.Analytics.GetOverview(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("stats: overview failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, overview)
}
