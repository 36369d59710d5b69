package incidents

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/pkg/httputil"
)

// Pagination constants.
const (
	DefaultIncidentsLimit = 20
	MaxIncidentsLimit     = 100
	DefaultHistoryDays    = 30
	MaxHistoryDays        = 365
)

// Handler handles HTTP requests for incidents.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for incidents.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/incidents", func(r chi.Router) {
		r.Get("/", h.ListIncidents)
		r.Get("/metrics", h.GetMetrics)
		r.Get("/history", h.GetHistory)
		r.Get("/{id}", h.GetIncident)
		r.Patch("/{id}", h.UpdateIncident)
		r.Post("/{id}/resolve", h.ResolveIncident)
		r.Get("/{id}/events", h.ListEvents)
	})
}

// UpdateIncidentRequest represents the request body for a partial update.
type UpdateIncidentRequest struct {
	Status   *string `json:"status" validate:"omitempty,oneof=investigating identified monitoring resolved"`
	Severity *string `json:"severity" validate:"omitempty,oneof=critical high medium low"`
	Title    *string `json:"title" validate:"omitempty,min=1,max=255"`
	Details  *string `json:"details"`
}

// ResolveIncidentRequest represents the request body for resolving.
type ResolveIncidentRequest struct {
	Message string `json:"message"`
}

// ListIncidents handles GET /incidents.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	filter := Filter{Page: 1, Limit: DefaultIncidentsLimit}

	if page, _ := strconv.Atoi(r.URL.Query().Get("page")); page > 0 {
		filter.Page = page
	}
	if limit, _ := strconv.Atoi(r.URL.Query().Get("limit")); limit > 0 {
		filter.Limit = min(limit, MaxIncidentsLimit)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		st := domain.IncidentStatus(status)
		if !st.IsValid() {
			httputil.Error(w, http.StatusBadRequest, "invalid incident status")
			return
		}
		filter.Status = &st
	}

	incidents, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"incidents": incidents,
		"total":     total,
		"page":      filter.Page,
		"limit":     filter.Limit,
	})
}

// GetIncident handles GET /incidents/{id}.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, incident)
}

// UpdateIncident handles PATCH /incidents/{id}.
func (h *Handler) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	var req UpdateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := UpdateInput{Title: req.Title, Details: req.Details}
	if req.Status != nil {
		status := domain.IncidentStatus(*req.Status)
		input.Status = &status
	}
	if req.Severity != nil {
		severity := domain.IncidentSeverity(*req.Severity)
		input.Severity = &severity
	}

	incident, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, incident)
}

// ResolveIncident handles POST /incidents/{id}/resolve.
func (h *Handler) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	var req ResolveIncidentRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	incident, err := h.service.Resolve(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, incident)
}

// ListEvents handles GET /incidents/{id}/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Events(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, events)
}

// GetMetrics handles GET /incidents/metrics.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.Metrics(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, metrics)
}

// GetHistory handles GET /incidents/history.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	days := DefaultHistoryDays
	if d, _ := strconv.Atoi(r.URL.Query().Get("days")); d > 0 {
		days = min(d, MaxHistoryDays)
	}

	history, err := h.service.History(r.Context(), days)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, history)
}

var incidentErrorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidTransition, Status: http.StatusConflict},
}
