package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type BookingHandler struct {
	coordinator *booking.Coordinator
	store       storage.Store
	catalog     *catalog.Cache
	hours       availability.BusinessHours
	logger      *slog.Logger
	metrics     *metrics.BookingMetrics
	now         func() time.Time
}

func NewBookingHandler(coordinator *booking.Coordinator, store storage.Store, cache *catalog.Cache, hours availability.BusinessHours, logger *slog.Logger, m *metrics.BookingMetrics) *BookingHandler {
	return &BookingHandler{
		coordinator: coordinator,
		store:       store,
		catalog:     cache,
		hours:       hours,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

type customerRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Instagram string `json:"instagram"`
}

type createAppointmentRequest struct {
	Customer  *customerRequest `json:"customer"`
	ServiceID string           `json:"serviceId"`
	StartTime string           `json:"startTime"`
}

type appointmentResponse struct {
	ID         string `json:"id"`
	CustomerID string `json:"customerId"`
	ServiceID  string `json:"serviceId"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	CreatedAt  string `json:"createdAt"`
}

type listCustomer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type listService struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type listAppointmentItem struct {
	ID        string       `json:"id"`
	Customer  listCustomer `json:"customer"`
	Service   listService  `json:"service"`
	StartTime string       `json:"startTime"`
	EndTime   string       `json:"endTime"`
	CreatedAt string       `json:"createdAt"`
}

// Availability answers GET /api/appointments/availability?date=YYYY-MM-DD&serviceId=<id>.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dateRaw := strings.TrimSpace(q.Get("date"))
	serviceID := strings.TrimSpace(q.Get("serviceId"))
	if dateRaw == "" || serviceID == "" {
		h.metrics.ObserveAvailability("bad_request")
		httpx.WriteError(w, http.StatusBadRequest, "date and serviceId are required")
		return
	}
	date, err := h.hours.ParseDate(dateRaw)
	if err != nil {
		h.metrics.ObserveAvailability("bad_request")
		httpx.WriteError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	ctx := r.Context()
	svc, err := h.catalog.Get(ctx, serviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = apperr.NotFound(booking.MsgServiceNotFound)
		}
		err = apperr.Storage("load service", err)
		h.metrics.ObserveAvailability(apperr.KindOf(err).String())
		writeAppErr(w, r, h.logger, "availability", err)
		return
	}

	window := h.hours.Window(date)
	appts, err := h.store.ListAppointmentsBetween(ctx, window.Start, window.End)
	if err != nil {
		h.metrics.ObserveAvailability("storage")
		writeAppErr(w, r, h.logger, "availability", apperr.Storage("list appointments", err))
		return
	}
	busy := make([]availability.Interval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, availability.Interval{Start: a.StartTime, End: a.EndTime})
	}

	slots := h.hours.DaySlots(date, svc.Duration(), busy)
	h.metrics.ObserveAvailability("success")
	httpx.WriteJSON(w, http.StatusOK, h.hours.FormatSlots(slots))
}

// Create answers POST /api/appointments.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	bookReq := booking.Request{ServiceID: req.ServiceID}
	if req.Customer != nil {
		bookReq.Customer = booking.Customer{
			Name:      req.Customer.Name,
			Phone:     req.Customer.Phone,
			Instagram: req.Customer.Instagram,
		}
	}
	if raw := strings.TrimSpace(req.StartTime); raw != "" {
		start, err := h.hours.ParseStartTime(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid startTime")
			return
		}
		bookReq.StartTime = start
	}

	appt, err := h.coordinator.Book(r.Context(), bookReq)
	if err != nil {
		writeAppErr(w, r, h.logger, "create appointment", err)
		return
	}

	h.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"service_id", appt.ServiceID,
		"start_time", appt.StartTime.UTC().Format(time.RFC3339),
		"request_id", httpx.RequestIDFromContext(r.Context()),
	)
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// List answers GET /api/appointments with optional serviceId, days and month filters.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseListFilter(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	appts, err := h.store.ListAppointments(r.Context(), filter)
	if err != nil {
		writeAppErr(w, r, h.logger, "list appointments", apperr.Storage("list appointments", err))
		return
	}

	items := make([]listAppointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, listAppointmentItem{
			ID:        a.ID,
			Customer:  listCustomer{ID: a.CustomerID, Name: a.CustomerName, Phone: a.CustomerPhone},
			Service:   listService{ID: a.ServiceID, Name: a.ServiceName, Price: a.ServicePrice},
			StartTime: a.StartTime.UTC().Format(time.RFC3339),
			EndTime:   a.EndTime.UTC().Format(time.RFC3339),
			CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// parseListFilter applies days first and lets month override it.
func (h *BookingHandler) parseListFilter(r *http.Request) (model.AppointmentFilter, error) {
	q := r.URL.Query()
	var filter model.AppointmentFilter

	if id := strings.TrimSpace(q.Get("serviceId")); id != "" && id != "all" {
		filter.ServiceID = id
	}

	now := h.now().In(h.hours.Location)
	if raw := strings.TrimSpace(q.Get("days")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			return filter, errors.New("days must be a non-negative integer")
		}
		filter.From = now.AddDate(0, 0, -days)
	}

	if raw := strings.TrimSpace(q.Get("month")); raw != "" && raw != "all" {
		month, err := strconv.Atoi(raw)
		if err != nil || month < 0 || month > 11 {
			return filter, errors.New("month must be between 0 and 11")
		}
		first := time.Date(now.Year(), time.Month(month+1), 1, 0, 0, 0, 0, h.hours.Location)
		filter.From = first
		filter.To = first.AddDate(0, 1, 0)
	}
	return filter, nil
}

// Delete answers DELETE /api/appointments/{id}.
func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.coordinator.Delete(r.Context(), id); err != nil {
		writeAppErr(w, r, h.logger, "delete appointment", err)
		return
	}
	h.logger.Info("appointment deleted",
		"appointment_id", id,
		"request_id", httpx.RequestIDFromContext(r.Context()),
	)
	httpx.WriteJSON(w, http.StatusOK, msgResponse{Msg: "appointment removed"})
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:         a.ID,
		CustomerID: a.CustomerID,
		ServiceID:  a.ServiceID,
		StartTime:  a.StartTime.UTC().Format(time.RFC3339),
		EndTime:    a.EndTime.UTC().Format(time.RFC3339),
		CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
