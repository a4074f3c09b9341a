package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type ServicesHandler struct {
	store   storage.Store
	catalog *catalog.Cache
	logger  *slog.Logger
}

func NewServicesHandler(store storage.Store, cache *catalog.Cache, logger *slog.Logger) *ServicesHandler {
	return &ServicesHandler{store: store, catalog: cache, logger: logger}
}

type serviceRequest struct {
	Name            *string  `json:"name"`
	DurationMinutes *int     `json:"durationMinutes"`
	Price           *float64 `json:"price"`
}

type serviceResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"durationMinutes"`
	Price           float64 `json:"price"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

func toServiceResponse(s model.Service) serviceResponse {
	return serviceResponse{
		ID:              s.ID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price,
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// patch validates the supplied fields only.
func (req serviceRequest) patch() (model.ServicePatch, error) {
	var p model.ServicePatch
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return p, errors.New("name must not be empty")
		}
		p.Name = &name
	}
	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			return p, errors.New("durationMinutes must be positive")
		}
		if *req.DurationMinutes > model.MaxDurationMinutes {
			return p, fmt.Errorf("durationMinutes must be at most %d", model.MaxDurationMinutes)
		}
		p.DurationMinutes = req.DurationMinutes
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return p, errors.New("price must not be negative")
		}
		p.Price = req.Price
	}
	return p, nil
}

func (h *ServicesHandler) List(w http.ResponseWriter, r *http.Request) {
	services, err := h.store.ListServices(r.Context())
	if err != nil {
		writeAppErr(w, r, h.logger, "list services", apperr.Storage("list services", err))
		return
	}
	out := make([]serviceResponse, 0, len(services))
	for _, s := range services {
		out = append(out, toServiceResponse(s))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *ServicesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Name == nil || req.DurationMinutes == nil || req.Price == nil {
		httpx.WriteError(w, http.StatusBadRequest, "name, durationMinutes and price are required")
		return
	}
	p, err := req.patch()
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc, err := h.store.CreateService(r.Context(), p.Apply(model.Service{}))
	if err != nil {
		writeAppErr(w, r, h.logger, "create service", apperr.Storage("create service", err))
		return
	}
	h.invalidate(r, svc.ID)
	httpx.WriteJSON(w, http.StatusOK, toServiceResponse(svc))
}

func (h *ServicesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req serviceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	p, err := req.patch()
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc, err := h.store.UpdateService(r.Context(), id, p)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "service not found")
			return
		}
		writeAppErr(w, r, h.logger, "update service", apperr.Storage("update service", err))
		return
	}
	h.invalidate(r, id)
	httpx.WriteJSON(w, http.StatusOK, toServiceResponse(svc))
}

func (h *ServicesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteService(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			httpx.WriteError(w, http.StatusNotFound, "service not found")
		case errors.Is(err, storage.ErrInUse):
			httpx.WriteError(w, http.StatusConflict, "service has appointments and cannot be removed")
		default:
			writeAppErr(w, r, h.logger, "delete service", apperr.Storage("delete service", err))
		}
		return
	}
	h.invalidate(r, id)
	httpx.WriteJSON(w, http.StatusOK, msgResponse{Msg: "service removed"})
}

func (h *ServicesHandler) invalidate(r *http.Request, id string) {
	if err := h.catalog.Invalidate(r.Context(), id); err != nil {
		h.logger.Warn("catalog cache invalidate failed", "service_id", id, "err", err)
	}
}
