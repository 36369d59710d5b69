package checks

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/pkg/httputil"
)

// Pagination defaults for result listings.
const (
	DefaultResultsLimit = 50
	MaxResultsLimit     = 200
)

// Runner runs checks outside their schedule. Implemented by the
// monitor orchestrator.
type Runner interface {
	RunAll(ctx context.Context) ([]domain.CheckResult, error)
	RunOne(ctx context.Context, checkID string) (*domain.CheckResult, error)
	Restart(ctx context.Context, checkID string) (string, error)
}

// Handler handles HTTP requests for check management.
type Handler struct {
	service   *Service
	runner    Runner
	validator *validator.Validate
}

// NewHandler creates a new checks handler.
func NewHandler(service *Service, runner Runner) *Handler {
	return &Handler{
		service:   service,
		runner:    runner,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for check management.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/checks", func(r chi.Router) {
		r.Get("/", h.ListChecks)
		r.Post("/", h.CreateCheck)
		r.Post("/run", h.RunAll)
		r.Get("/results/latest", h.LatestResults)
		r.Get("/{id}", h.GetCheck)
		r.Put("/{id}", h.UpdateCheck)
		r.Delete("/{id}", h.DeleteCheck)
		r.Get("/{id}/results", h.ListResults)
		r.Post("/{id}/run", h.RunCheck)
		r.Post("/{id}/restart", h.RestartCheck)
	})
}

// CheckRequest represents the request body for creating or updating a check.
type CheckRequest struct {
	Name            string `json:"name" validate:"required,min=1,max=255"`
	Kind            string `json:"kind" validate:"required,oneof=API PROCESS SERVICE SERVER"`
	Enabled         *bool  `json:"enabled"`
	IntervalSeconds int    `json:"interval_seconds" validate:"required,min=10"`
	Endpoint        string `json:"endpoint" validate:"omitempty,url"`
	TimeoutMs       int    `json:"timeout_ms" validate:"omitempty,min=1"`
	ProcessKeyword  string `json:"process_keyword"`
	Port            int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Command         string `json:"command"`
	ExpectedOutput  string `json:"expected_output"`
	RestartCommand  string `json:"restart_command"`
	NotifyOnFailure *bool  `json:"notify_on_failure"`
}

// ToDomain converts the request to a domain model.
func (r *CheckRequest) ToDomain() *domain.HealthCheck {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	notify := true
	if r.NotifyOnFailure != nil {
		notify = *r.NotifyOnFailure
	}

	return &domain.HealthCheck{
		Name:            r.Name,
		Kind:            domain.CheckKind(r.Kind),
		Enabled:         enabled,
		IntervalSeconds: r.IntervalSeconds,
		Endpoint:        r.Endpoint,
		TimeoutMs:       r.TimeoutMs,
		ProcessKeyword:  r.ProcessKeyword,
		Port:            r.Port,
		Command:         r.Command,
		ExpectedOutput:  r.ExpectedOutput,
		RestartCommand:  r.RestartCommand,
		NotifyOnFailure: notify,
	}
}

// CreateCheck handles POST /checks.
func (h *Handler) CreateCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	check, err := h.service.Create(r.Context(), req.ToDomain())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, checkErrorMappings)
		return
	}
	httputil.Success(w, http.StatusCreated, check)
}

// ListChecks handles GET /checks.
func (h *Handler) ListChecks(w http.ResponseWriter, r *http.Request) {
	var filter Filter
	if r.URL.Query().Get("enabled") == "true" {
		filter.EnabledOnly = true
	}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		k := domain.CheckKind(kind)
		if !k.IsValid() {
			httputil.Error(w, http.StatusBadRequest, "invalid check kind")
			return
		}
		filter.Kind = &k
	}

	checks, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, checkErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, checks)
}

// GetCheck handles GET /checks/{id}.
func (h *Handler) GetCheck(w http.ResponseWriter, r *http.Request) {
	check, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, checkErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, check)
}

// UpdateCheck handles PUT /checks/{id}.
func (h *Handler) UpdateCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	check := req.ToDomain()
	check.ID = chi.URLParam(r, "id")

	updated, err := h.service.Update(r.Context(), check)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, checkErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, updated)
}

// DeleteCheck handles DELETE /checks/{id}.
func (h *Handler) DeleteCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, checkErrorMappings)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListResults handles GET /checks/{id}/results.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = DefaultResultsLimit
	}
	if limit > MaxResultsLimit {
		limit = MaxResultsLimit
	}

	results, total, err := h.service.Results(r.Context(), chi.URLParam(r, "id"), page, limit)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, checkErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// LatestResults handles GET /checks/results/latest.
func (h *Handler) LatestResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.LatestResults(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, checkErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, results)
}

// RunCheck handles POST /checks/{id}/run: an on-demand probe outside
// the schedule.
func (h *Handler) RunCheck(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunOne(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, checkErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, result)
}

// RunAll handles POST /checks/run: a full on-demand sweep.
func (h *Handler) RunAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.runner.RunAll(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, checkErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"status":  "completed",
		"results": results,
	})
}

// RestartCheck handles POST /checks/{id}/restart.
func (h *Handler) RestartCheck(w http.ResponseWriter, r *http.Request) {
	output, err := h.runner.Restart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, checkErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]string{"output": output})
}

var checkErrorMappings = []httputil.ErrorMapping{
	{Error: ErrCheckNotFound, Status: http.StatusNotFound},
}
