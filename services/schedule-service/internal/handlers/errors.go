package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/md-rashed-zaman/artistcal/libs/httpx"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/lock"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
)

type errorResponse struct {
	Error         string   `json:"error"`
	Field         string   `json:"field,omitempty"`
	Kind          string   `json:"kind,omitempty"`
	ConflictingID string   `json:"conflictingId,omitempty"`
	BookingIDs    []string `json:"booking_ids,omitempty"`
}

// writeError maps the domain taxonomy to HTTP statuses; anything else is a 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		ve *model.ValidationError
		nf *model.NotFoundError
		oe *model.OverlapError
		bc *model.BookingConflictError
		oa *model.OutsideAvailabilityError
		cc *model.ConcurrencyConflictError
		fe validator.ValidationErrors
	)
	switch {
	case errors.As(err, &ve):
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: ve.Field})
	case errors.As(err, &fe):
		field := ""
		if len(fe) > 0 {
			field = fe[0].Field()
		}
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Field: field})
	case errors.As(err, &nf):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &oe):
		httpx.WriteJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: oe.Kind, ConflictingID: oe.ConflictingID})
	case errors.As(err, &bc):
		httpx.WriteJSON(w, http.StatusConflict, errorResponse{Error: "change would strand active bookings", BookingIDs: bc.BookingIDs})
	case errors.As(err, &oa):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &cc):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lock.ErrNotAcquired):
		w.Header().Set("Retry-After", "1")
		httpx.WriteError(w, http.StatusServiceUnavailable, "schedule busy, retry")
	default:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
