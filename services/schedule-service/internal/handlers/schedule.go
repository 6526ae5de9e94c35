package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/md-rashed-zaman/artistcal/libs/auth"
	"github.com/md-rashed-zaman/artistcal/libs/httpx"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/icalexport"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/mutation"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/notify"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/query"
)

type ScheduleHandler struct {
	queries   *query.Service
	mutations *mutation.Service
	hub       *notify.Hub
	logger    *slog.Logger
	validate  *validator.Validate
	heartbeat time.Duration
	now       func() time.Time

	writeLimit httpx.Middleware
}

func NewScheduleHandler(queries *query.Service, mutations *mutation.Service, hub *notify.Hub, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		queries:   queries,
		mutations: mutations,
		hub:       hub,
		logger:    logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		heartbeat: 25 * time.Second,
		now:       time.Now,
	}
}

// LimitWrites charges every authorized write against mw, after the caller is known.
func (h *ScheduleHandler) LimitWrites(mw httpx.Middleware) *ScheduleHandler {
	h.writeLimit = mw
	return h
}

// Register mounts the schedule API. A nil verifier leaves writes unauthenticated (local mode).
// Schedule edits need the artist or an admin; booking requests also accept customer tokens.
func (h *ScheduleHandler) Register(mux *http.ServeMux, verifier *auth.Verifier) {
	write := h.authorize(verifier, (*auth.Claims).CanManage, "not allowed to manage this schedule")
	book := h.authorize(verifier, (*auth.Claims).CanBook, "not allowed to book on this schedule")

	mux.HandleFunc("GET /schedule/{artistId}", h.Artist)
	mux.HandleFunc("GET /schedule/{artistId}/week/final", h.FinalWeek)
	mux.HandleFunc("GET /schedule/{artistId}/week/original", h.OriginalWeek)
	mux.HandleFunc("GET /schedule/{artistId}/week/final.ics", h.FinalWeekICS)
	mux.HandleFunc("GET /schedule/{artistId}/week/openings", h.Openings)
	mux.HandleFunc("GET /schedule/{artistId}/events", h.Events)

	mux.HandleFunc("GET /schedule/{artistId}/slot/{kind}", h.ListSlots)
	mux.Handle("POST /schedule/{artistId}/slot/{kind}", write(http.HandlerFunc(h.CreateSlot)))
	mux.Handle("PUT /schedule/{artistId}/slot/{kind}/{slotId}", write(http.HandlerFunc(h.UpdateSlot)))
	mux.Handle("DELETE /schedule/{artistId}/slot/{kind}/{slotId}", write(http.HandlerFunc(h.DeleteSlot)))
	mux.Handle("PUT /schedule/{artistId}/timezone", write(http.HandlerFunc(h.SetTimezone)))

	mux.HandleFunc("GET /schedule/{artistId}/bookings/pending", h.PendingBookings)
	mux.HandleFunc("GET /schedule/{artistId}/bookings/{bookingId}", h.GetBooking)
	mux.Handle("POST /schedule/{artistId}/bookings", book(http.HandlerFunc(h.CreateBooking)))
	mux.Handle("POST /schedule/{artistId}/bookings/{bookingId}/status", write(http.HandlerFunc(h.SetBookingStatus)))
}

func (h *ScheduleHandler) authorize(verifier *auth.Verifier, allowed func(*auth.Claims, string) bool, denied string) func(http.Handler) http.Handler {
	limit := h.writeLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	if verifier == nil {
		return limit
	}
	authn := auth.Require(verifier, httpx.WriteError)
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return authn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := auth.ClaimsFromContext(r.Context())
			if !allowed(claims, r.PathValue("artistId")) {
				httpx.WriteError(w, http.StatusForbidden, denied)
				return
			}
			limited.ServeHTTP(w, r)
		}))
	}
}

func (h *ScheduleHandler) Artist(w http.ResponseWriter, r *http.Request) {
	artist, _, err := h.queries.Artist(r.Context(), r.PathValue("artistId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, artistResponse{ID: artist.ID, Timezone: artist.Timezone, Version: artist.Version})
}

func (h *ScheduleHandler) FinalWeek(w http.ResponseWriter, r *http.Request) {
	week, err := h.queries.Final(r.Context(), r.PathValue("artistId"), r.URL.Query().Get("weekStart"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, week)
}

func (h *ScheduleHandler) OriginalWeek(w http.ResponseWriter, r *http.Request) {
	week, err := h.queries.Original(r.Context(), r.PathValue("artistId"), r.URL.Query().Get("weekStart"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, week)
}

func (h *ScheduleHandler) FinalWeekICS(w http.ResponseWriter, r *http.Request) {
	week, err := h.queries.Final(r.Context(), r.PathValue("artistId"), r.URL.Query().Get("weekStart"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+week.ArtistID+"-"+week.WeekStart+`.ics"`)
	if err := icalexport.Encode(w, week, h.now()); err != nil {
		h.logger.Error("ics export failed", "artist_id", week.ArtistID, "err", err)
	}
}

type openingsResponse struct {
	ArtistID string      `json:"artistId"`
	Duration int         `json:"durationMinutes"`
	Starts   []time.Time `json:"starts"`
}

func (h *ScheduleHandler) Openings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	duration, err := minutesParam(q.Get("duration"), 60)
	if err != nil {
		writeError(w, r, h.logger, &model.ValidationError{Field: "duration", Reason: "want whole minutes"})
		return
	}
	step, err := minutesParam(q.Get("step"), 0)
	if err != nil {
		writeError(w, r, h.logger, &model.ValidationError{Field: "step", Reason: "want whole minutes"})
		return
	}
	artistID := r.PathValue("artistId")
	starts, err := h.queries.Openings(r.Context(), artistID, q.Get("weekStart"), time.Duration(duration)*time.Minute, time.Duration(step)*time.Minute)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if starts == nil {
		starts = []time.Time{}
	}
	httpx.WriteJSON(w, http.StatusOK, openingsResponse{ArtistID: artistID, Duration: duration, Starts: starts})
}

func minutesParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// rangeParams reads optional RFC3339 from/to query bounds.
func rangeParams(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			return from, to, &model.ValidationError{Field: "from", Reason: "want RFC3339"}
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			return from, to, &model.ValidationError{Field: "to", Reason: "want RFC3339"}
		}
	}
	return from, to, nil
}

func (h *ScheduleHandler) decode(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		return &model.ValidationError{Field: "body", Reason: err.Error()}
	}
	return h.validate.Struct(dst)
}
