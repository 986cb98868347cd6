package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/service"
	"github.com/qr-hub/internal/types"
)

const msgInvalidBody = "Invalid request body"

// createQRRequest is the body of POST /api/qr
type createQRRequest struct {
	Name              string          `json:"name" validate:"required"`
	Type              types.QRType    `json:"type" validate:"required"`
	DestinationConfig json.RawMessage `json:"destination_config"`
}

// updateQRRequest is the body of PUT /api/qr/{id}
type updateQRRequest struct {
	Name              *string         `json:"name" validate:"omitempty,max=200"`
	DestinationConfig json.RawMessage `json:"destination_config"`
	IsActive          *bool           `json:"is_active"`
}

// eventRequest is the body of POST /api/qr/{slug}/event
type eventRequest struct {
	EventType types.EventType        `json:"event_type"`
	Country   string                 `json:"country"`
	UserAgent string                 `json:"user_agent"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// handleListQR handles GET /api/qr - List the owner's QR codes, newest first
func (s *Server) handleListQR(w http.ResponseWriter, r *http.Request) {
	records, err := s.qr.List(r.Context(), ownerID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []*models.QRRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"qrCodes": records})
}

// handleCreateQR handles POST /api/qr - Create a QR code
func (s *Server) handleCreateQR(w http.ResponseWriter, r *http.Request) {
	var req createQRRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Name and type are required")
		return
	}

	result, err := s.qr.Create(r.Context(), service.CreateInput{
		OwnerID:           ownerID(r),
		Name:              req.Name,
		Type:              types.QRType(strings.ToLower(strings.TrimSpace(string(req.Type)))),
		DestinationConfig: req.DestinationConfig,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// handleResolveQR handles GET /api/qr/{slug} - Resolve a QR code and count the scan
func (s *Server) handleResolveQR(w http.ResponseWriter, r *http.Request) {
	resolution, err := s.resolver.Resolve(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resolution)
}

// handleScan handles GET /q/{slug} - The URL encoded in printed QR codes.
// Single-destination codes redirect; multi-option codes return the choices.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	resolution, err := s.resolver.Resolve(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	s.events.RecordForRecord(r.Context(), resolution.Record.ID, service.EventInput{
		EventType: types.EventScan,
		Country:   requestCountry(r),
		UserAgent: r.UserAgent(),
	})

	if resolution.Redirect.Kind == types.RedirectChoice {
		respondJSON(w, http.StatusOK, resolution)
		return
	}
	http.Redirect(w, r, strings.TrimSuffix(s.config.BaseURL, "/")+resolution.Redirect.Path, http.StatusFound)
}

// handleUpdateQR handles PUT /api/qr/{id} - Partially update a QR code
func (s *Server) handleUpdateQR(w http.ResponseWriter, r *http.Request) {
	var req updateQRRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	cfg := req.DestinationConfig
	if string(cfg) == "null" {
		cfg = nil
	}

	record, err := s.qr.Update(r.Context(), mux.Vars(r)["id"], ownerID(r), service.UpdateInput{
		Name:              req.Name,
		DestinationConfig: cfg,
		IsActive:          req.IsActive,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"qr": record})
}

// handleDeleteQR handles DELETE /api/qr/{id} - Delete a QR code
func (s *Server) handleDeleteQR(w http.ResponseWriter, r *http.Request) {
	if err := s.qr.Delete(r.Context(), mux.Vars(r)["id"], ownerID(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// handleAnalytics handles GET /api/qr/{slug}/analytics - Owner-only activity report
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := s.events.Analytics(r.Context(), mux.Vars(r)["slug"], ownerID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, analytics)
}

// handleRecordEvent handles POST /api/qr/{slug}/event. Tracking never fails the caller.
func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := parseJSONBody(r, &req); err != nil {
		req = eventRequest{}
	}

	if req.Country == "" {
		req.Country = requestCountry(r)
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	s.events.RecordEvent(r.Context(), mux.Vars(r)["slug"], service.EventInput{
		EventType: types.EventType(strings.ToLower(string(req.EventType))),
		Country:   req.Country,
		UserAgent: req.UserAgent,
		Metadata:  req.Metadata,
	})
	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// handleQRImage handles GET /api/qr/{slug}/image - PNG of the scan URL
func (s *Server) handleQRImage(w http.ResponseWriter, r *http.Request) {
	png, err := s.qr.RenderImage(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// requestCountry reads the caller's country from edge proxy headers
func requestCountry(r *http.Request) string {
	for _, header := range []string{"CF-IPCountry", "X-Country"} {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" && v != "XX" {
			return strings.ToUpper(v)
		}
	}
	return ""
}
