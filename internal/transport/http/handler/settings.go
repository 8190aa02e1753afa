package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/notify-dispatch/internal/domain"
	"github.com/notify-dispatch/internal/transport/http/middleware"
)

type settingsStore interface {
	GetUserSettings(ctx context.Context, userID string) (*domain.UserNotificationSettings, error)
	PutUserSettings(ctx context.Context, s *domain.UserNotificationSettings) error
	GetTenantSettings(ctx context.Context, tenantID string) (*domain.NotificationSettings, error)
	PutTenantSettings(ctx context.Context, s *domain.NotificationSettings) error
}

// SettingsHandler handles user preference and tenant channel settings endpoints.
type SettingsHandler struct {
	store settingsStore
}

func NewSettingsHandler(store settingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

func (h *SettingsHandler) GetUserSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	settings, err := h.store.GetUserSettings(r.Context(), claims.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		// No stored row means everything enabled.
		settings = &domain.UserNotificationSettings{UserID: claims.UserID}
	} else if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) PutUserSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var settings domain.UserNotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	settings.UserID = claims.UserID
	if err := h.store.PutUserSettings(r.Context(), &settings); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) GetTenantSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	settings, err := h.store.GetTenantSettings(r.Context(), claims.TenantID)
	if errors.Is(err, domain.ErrNotFound) {
		settings = &domain.NotificationSettings{TenantID: claims.TenantID}
	} else if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) PutTenantSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var settings domain.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	settings.TenantID = claims.TenantID
	if err := h.store.PutTenantSettings(r.Context(), &settings); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
