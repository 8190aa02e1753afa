package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/notify-dispatch/internal/application/dispatch"
	"github.com/notify-dispatch/internal/domain"
	"github.com/notify-dispatch/internal/pkg/validate"
	"github.com/notify-dispatch/internal/transport/http/middleware"
)

// RequestHandler handles notification request endpoints.
type RequestHandler struct {
	svc dispatch.Service
}

func NewRequestHandler(svc dispatch.Service) *RequestHandler {
	return &RequestHandler{svc: svc}
}

type submitRequestInput struct {
	TemplateID string              `json:"template_id" validate:"required"`
	Targets    []string            `json:"targets" validate:"required,min=1"`
	Info       *domain.RequestInfo `json:"info"`
	RuleID     string              `json:"rule_id"`
	DelaySec   int                 `json:"delay_sec" validate:"gte=0,lte=86400"`
}

func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var input submitRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := &domain.NotificationRequest{
		TemplateID: input.TemplateID,
		Targets:    input.Targets,
		Info:       input.Info,
		RuleID:     input.RuleID,
		DelaySec:   input.DelaySec,
	}
	created, err := h.svc.SubmitRequest(r.Context(), claims.TenantID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *RequestHandler) Preview(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var input submitRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	preview, err := h.svc.Preview(r.Context(), claims.TenantID, &domain.NotificationRequest{
		TemplateID: input.TemplateID,
		Targets:    input.Targets,
		Info:       input.Info,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *RequestHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	stats, err := h.svc.GetStats(r.Context(), claims.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	if stats == nil {
		// Request exists but has not finished processing.
		stats = &domain.RequestStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit := queryInt(r, "limit", 20)
	views, next, err := h.svc.ListRequests(r.Context(), claims.TenantID, int32(limit), r.URL.Query().Get("cursor"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PageEnvelope{Data: views, NextCursor: next})
}

func (h *RequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.DeleteRequest(r.Context(), claims.TenantID, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "request deleted"})
}

func (h *RequestHandler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.DeleteTenant(r.Context(), claims.TenantID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "tenant requests deleted"})
}

func queryInt(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
