package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/notify-dispatch/internal/domain"
	"github.com/notify-dispatch/internal/pkg/id"
	"github.com/notify-dispatch/internal/pkg/validate"
	"github.com/notify-dispatch/internal/transport/http/middleware"
)

type templateStore interface {
	Put(ctx context.Context, t *domain.NotificationTemplate) error
	Get(ctx context.Context, templateID string) (*domain.NotificationTemplate, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.NotificationTemplate, error)
	Delete(ctx context.Context, templateID string) error
}

// TemplateHandler handles notification template endpoints.
type TemplateHandler struct {
	store templateStore
}

func NewTemplateHandler(store templateStore) *TemplateHandler {
	return &TemplateHandler{store: store}
}

type templateInput struct {
	Name       string                                           `json:"name" validate:"required"`
	Type       domain.NotificationType                          `json:"notification_type" validate:"required"`
	Deliveries map[domain.DeliveryMethod]*domain.MethodTemplate `json:"delivery_methods" validate:"required,min=1"`
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var input templateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := &domain.NotificationTemplate{
		TemplateID: id.New(),
		TenantID:   claims.TenantID,
		Name:       input.Name,
		Type:       input.Type,
		Deliveries: input.Deliveries,
		CreatedAt:  time.Now().UnixMilli(),
	}
	if len(t.EnabledMethods()) == 0 {
		writeError(w, http.StatusBadRequest, "template enables no delivery method")
		return
	}
	if err := h.store.Put(r.Context(), t); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	t, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	if t.TenantID != claims.TenantID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	templates, err := h.store.ListByTenant(r.Context(), claims.TenantID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	existing, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	if existing.TenantID != claims.TenantID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	var input templateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing.Name = input.Name
	existing.Type = input.Type
	existing.Deliveries = input.Deliveries
	if len(existing.EnabledMethods()) == 0 {
		writeError(w, http.StatusBadRequest, "template enables no delivery method")
		return
	}
	if err := h.store.Put(r.Context(), existing); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	t, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	if t.TenantID != claims.TenantID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := h.store.Delete(r.Context(), t.TemplateID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "template deleted"})
}
