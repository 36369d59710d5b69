package notifications

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/pkg/httputil"
)

// Handler handles HTTP requests for notifications.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new notifications handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for notifications.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", h.ListSubscriptions)
			r.Post("/", h.Subscribe)
			r.Get("/verify/{token}", h.Verify)
			r.Get("/unsubscribe/{token}", h.Unsubscribe)
			r.Delete("/{id}", h.DeleteSubscription)
		})
		r.Get("/email-config", h.GetEmailConfig)
		r.Put("/email-config", h.UpdateEmailConfig)
		r.Get("/webhook-config", h.GetWebhookConfig)
		r.Put("/webhook-config", h.UpdateWebhookConfig)
		r.Get("/records", h.ListRecords)
	})
}

// SubscribeRequest represents the request body for creating a subscription.
type SubscribeRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	CheckID  *string `json:"check_id" validate:"omitempty,uuid"`
	Severity string  `json:"severity" validate:"omitempty,oneof=critical high all"`
}

// EmailConfigRequest represents the request body for the email channel.
type EmailConfigRequest struct {
	Enabled         bool     `json:"enabled"`
	Recipients      []string `json:"recipients" validate:"dive,email"`
	ThrottleMinutes int      `json:"throttle_minutes" validate:"omitempty,min=1,max=1440"`
}

// WebhookConfigRequest represents the request body for the webhook channel.
type WebhookConfigRequest struct {
	Enabled         bool   `json:"enabled"`
	URL             string `json:"url" validate:"omitempty,url"`
	ThrottleMinutes int    `json:"throttle_minutes" validate:"omitempty,min=1,max=1440"`
}

// ListSubscriptions handles GET /notifications/subscriptions.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.ListSubscriptions(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, notificationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, subs)
}

// Subscribe handles POST /notifications/subscriptions.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	sub, err := h.service.Subscribe(r.Context(), SubscribeInput{
		Email:    req.Email,
		CheckID:  req.CheckID,
		Severity: domain.SubscriptionSeverity(req.Severity),
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, notificationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusCreated, sub)
}

// Verify handles GET /notifications/subscriptions/verify/{token}.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Verify(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, notificationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, sub)
}

// Unsubscribe handles GET /notifications/subscriptions/unsubscribe/{token}.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unsubscribe(r.Context(), chi.URLParam(r, "token")); err != nil {
		httputil.HandleError(r.Context(), w, err, notificationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, map[string]string{"message": "unsubscribed"})
}

// DeleteSubscription handles DELETE /notifications/subscriptions/{id}.
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSubscription(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, notificationErrorMappings)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEmailConfig handles GET /notifications/email-config.
func (h *Handler) GetEmailConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.EmailConfig(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, notificationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, cfg)
}

// UpdateEmailConfig handles PUT /notifications/email-config.
func (h *Handler) UpdateEmailConfig(w http.ResponseWriter, r *http.Request) {
	var req EmailConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	cfg := &domain.EmailConfig{
		Enabled:         req.Enabled,
		Recipients:      req.Recipients,
		ThrottleMinutes: req.ThrottleMinutes,
	}
	if err := h.service.UpdateEmailConfig(r.Context(), cfg); err != nil {
		httputil.HandleError(r.Context(), w, err, notificationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, cfg)
}

// GetWebhookConfig handles GET /notifications/webhook-config.
func (h *Handler) GetWebhookConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.WebhookConfig(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, notificationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, cfg)
}

// UpdateWebhookConfig handles PUT /notifications/webhook-config.
func (h *Handler) UpdateWebhookConfig(w http.ResponseWriter, r *http.Request) {
	var req WebhookConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}
	if req.Enabled && req.URL == "" {
		httputil.Error(w, http.StatusBadRequest, "url is required when the webhook channel is enabled")
		return
	}

	cfg := &domain.WebhookConfig{
		Enabled:         req.Enabled,
		URL:             req.URL,
		ThrottleMinutes: req.ThrottleMinutes,
	}
	if err := h.service.UpdateWebhookConfig(r.Context(), cfg); err != nil {
		httputil.HandleError(r.Context(), w, err, notificationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, cfg)
}

// ListRecords handles GET /notifications/records.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.service.Records(r.Context(), limit)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, notificationErrorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, records)
}

var notificationErrorMappings = []httputil.ErrorMapping{
	{Error: ErrSubscriptionNotFound, Status: http.StatusNotFound},
	{Error: ErrTokenNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidSeverity, Status: http.StatusBadRequest},
	{Error: ErrDuplicateEmail, Status: http.StatusConflict},
}
