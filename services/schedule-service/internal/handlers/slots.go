package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/artistcal/libs/httpx"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/mutation"
)

func (h *ScheduleHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	artistID := r.PathValue("artistId")
	kind, err := model.ParseSlotKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if kind == model.SlotWorking {
		slots, err := h.queries.WorkingSlots(r.Context(), artistID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		out := make([]workingSlotResponse, 0, len(slots))
		for _, s := range slots {
			out = append(out, toWorkingResponse(s))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
		return
	}

	from, to, err := rangeParams(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	slots, err := h.queries.DatedSlots(r.Context(), artistID, kind, from, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]datedSlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toDatedResponse(s))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *ScheduleHandler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	h.saveSlot(w, r, "")
}

func (h *ScheduleHandler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	h.saveSlot(w, r, r.PathValue("slotId"))
}

// saveSlot creates (slotID empty) or replaces a slot of the kind in the path.
func (h *ScheduleHandler) saveSlot(w http.ResponseWriter, r *http.Request, slotID string) {
	ctx := r.Context()
	artistID := r.PathValue("artistId")
	kind, err := model.ParseSlotKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if slotID == "" {
		status = http.StatusCreated
	}

	var (
		slot any
		res  mutation.Result
	)
	if kind == model.SlotWorking {
		var req workingSlotRequest
		if err := h.decode(r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		ws, err := parseWorking(req)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		ws.ID = slotID
		if slotID == "" {
			ws, res, err = h.mutations.CreateWorking(ctx, artistID, ws)
		} else {
			ws, res, err = h.mutations.UpdateWorking(ctx, artistID, ws)
		}
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		slot = toWorkingResponse(ws)
	} else {
		var req datedSlotRequest
		if err := h.decode(r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		ds := model.DatedSlot{ID: slotID, Kind: kind, Start: req.Start, End: req.End, Note: req.Note}
		if slotID == "" {
			ds, res, err = h.mutations.CreateDated(ctx, artistID, ds)
		} else {
			ds, res, err = h.mutations.UpdateDated(ctx, artistID, ds)
		}
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		slot = toDatedResponse(ds)
	}

	httpx.WriteJSON(w, status, mutationResponse{Slot: slot, Version: res.Event.Version, Week: res.Week})
}

func (h *ScheduleHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	artistID, slotID := r.PathValue("artistId"), r.PathValue("slotId")
	kind, err := model.ParseSlotKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if kind == model.SlotWorking {
		_, err = h.mutations.DeleteWorking(r.Context(), artistID, slotID)
	} else {
		_, err = h.mutations.DeleteDated(r.Context(), artistID, kind, slotID)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) SetTimezone(w http.ResponseWriter, r *http.Request) {
	var req timezoneRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	artist, _, err := h.mutations.SetTimezone(r.Context(), r.PathValue("artistId"), req.Timezone)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, artistResponse{ID: artist.ID, Timezone: artist.Timezone, Version: artist.Version})
}

func parseWorking(req workingSlotRequest) (model.WorkingSlot, error) {
	day, err := model.ParseWeekday(req.Weekday)
	if err != nil {
		return model.WorkingSlot{}, err
	}
	start, err := model.ParseClock(req.StartTime)
	if err != nil {
		return model.WorkingSlot{}, err
	}
	end, err := model.ParseClock(req.EndTime)
	if err != nil {
		return model.WorkingSlot{}, err
	}
	return model.WorkingSlot{Weekday: day, StartMinute: start, EndMinute: end, Note: req.Note}, nil
}
