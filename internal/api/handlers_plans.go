package api

import (
	"net/http"

	"github.com/qr-hub/internal/plans"
)

// handlePlans handles GET /api/plans - The pricing comparison
func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"plans": plans.Comparison()})
}

// handleUserPlan handles GET /api/user/plan - The caller's plan, limits and usage
func (s *Server) handleUserPlan(w http.ResponseWriter, r *http.Request) {
	view, err := s.plans.View(r.Context(), ownerID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"plan": view})
}
