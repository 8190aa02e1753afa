package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/notify-dispatch/internal/application/target"
	"github.com/notify-dispatch/internal/domain"
	"github.com/notify-dispatch/internal/pkg/id"
	"github.com/notify-dispatch/internal/pkg/validate"
	"github.com/notify-dispatch/internal/transport/http/middleware"
)

type targetStore interface {
	Put(ctx context.Context, t *domain.NotificationTarget) error
	Get(ctx context.Context, targetID string) (*domain.NotificationTarget, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.NotificationTarget, error)
	Delete(ctx context.Context, targetID string) error
}

// TargetHandler handles notification target endpoints.
type TargetHandler struct {
	store    targetStore
	resolver target.Service
}

func NewTargetHandler(store targetStore, resolver target.Service) *TargetHandler {
	return &TargetHandler{store: store, resolver: resolver}
}

type targetInput struct {
	Name   string              `json:"name" validate:"required"`
	Config domain.TargetConfig `json:"configuration" validate:"required"`
}

func (h *TargetHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var input targetInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateTargetConfig(&input.Config); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := &domain.NotificationTarget{
		TargetID:  id.New(),
		TenantID:  claims.TenantID,
		Name:      input.Name,
		Config:    input.Config,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := h.store.Put(r.Context(), t); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TargetHandler) Get(w http.ResponseWriter, r *http.Request) {
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

func (h *TargetHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	targets, err := h.store.ListByTenant(r.Context(), claims.TenantID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

// Recipients expands one target without sending anything, for target editors.
func (h *TargetHandler) Recipients(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	recipients, err := h.resolver.Resolve(r.Context(), claims.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	previews := make([]string, 0, len(recipients))
	for _, rec := range recipients {
		previews = append(previews, rec.Preview())
	}
	writeJSON(w, http.StatusOK, previews)
}

func (h *TargetHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.store.Delete(r.Context(), t.TargetID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "target deleted"})
}

func errEmptyField(name string) error {
	return fmt.Errorf("missing or invalid %s: %w", name, domain.ErrBadRequest)
}

func validateTargetConfig(c *domain.TargetConfig) error {
	switch c.Type {
	case domain.TargetPlatformUsers:
		switch c.Filter {
		case domain.FilterAllUsers, domain.FilterTenantAdmins, domain.FilterSystemAdmins:
			return nil
		case domain.FilterUserList:
			if len(c.UserIDs) == 0 {
				return errEmptyField("user_ids")
			}
		case domain.FilterCustomerUsers:
			if c.CustomerID == "" {
				return errEmptyField("customer_id")
			}
		default:
			return errEmptyField("users_filter")
		}
	case domain.TargetSlack:
		if c.Conversation == nil || c.Conversation.ID == "" {
			return errEmptyField("conversation")
		}
	case domain.TargetTeams:
		if c.WebhookURL == "" {
			return errEmptyField("webhook_url")
		}
	default:
		return errEmptyField("type")
	}
	return nil
}
