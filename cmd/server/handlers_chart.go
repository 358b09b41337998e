package main

import (
	"context"
	"net/http"
	"time"
)

// handleChartData handles GET /api/chart-data/{chartName}
func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	chart, err := s.charts.GetChart(r.Context(), r.PathValue("chartName"))
	if err != nil {
		writeTabulaError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, chart)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unhealthy")
			return
		}
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}
