package handlers

import (
	"net/http"
)

// MetricsHandler serves the prometheus registry when one is attached.
func (a *App) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if a.Metrics == nil {
		a.error(w, http.StatusNotFound, "metrics disabled")
		return
	}
	a.Metrics.ServeHTTP(w, r)
}
