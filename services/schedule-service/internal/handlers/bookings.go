package handlers

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/artistcal/libs/auth"
	"github.com/md-rashed-zaman/artistcal/libs/httpx"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/mutation"
)

func (h *ScheduleHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	artistID := r.PathValue("artistId")
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && !claims.CanManage(artistID) {
		// Customers only request holds for themselves; the artist confirms.
		if req.Status != "" && model.BookingStatus(req.Status) != model.BookingPending {
			httpx.WriteError(w, http.StatusForbidden, "customers may only request pending bookings")
			return
		}
		if req.CustomerID != claims.Subject {
			httpx.WriteError(w, http.StatusForbidden, "customerId must match the token subject")
			return
		}
	}
	b, replayed, err := h.mutations.CreateBooking(r.Context(), artistID, mutation.BookingRequest{
		CustomerID:     req.CustomerID,
		ServiceID:      req.ServiceID,
		Start:          req.Start,
		End:            req.End,
		Status:         model.BookingStatus(req.Status),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, toBookingResponse(b))
}

func (h *ScheduleHandler) SetBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req bookingStatusRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	b, err := h.mutations.SetBookingStatus(r.Context(), r.PathValue("artistId"), r.PathValue("bookingId"), model.BookingStatus(req.Status))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *ScheduleHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.queries.Booking(r.Context(), r.PathValue("artistId"), r.PathValue("bookingId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *ScheduleHandler) PendingBookings(w http.ResponseWriter, r *http.Request) {
	from, to, err := rangeParams(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	bs, err := h.queries.Pending(r.Context(), r.PathValue("artistId"), from, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]bookingResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingResponse(b))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
