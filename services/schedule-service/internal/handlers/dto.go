package handlers

import (
	"time"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
)

type workingSlotRequest struct {
	Weekday   string `json:"weekday" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
	Note      string `json:"note" validate:"max=500"`
}

type datedSlotRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
	Note  string    `json:"note" validate:"max=500"`
}

type timezoneRequest struct {
	Timezone string `json:"timezone" validate:"required"`
}

type bookingRequest struct {
	CustomerID string    `json:"customerId" validate:"required,max=128"`
	ServiceID  string    `json:"serviceId" validate:"max=128"`
	Start      time.Time `json:"start" validate:"required"`
	End        time.Time `json:"end" validate:"required"`
	Status     string    `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED"`
}

type bookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=CONFIRMED COMPLETED CANCELLED"`
}

type workingSlotResponse struct {
	ID        string `json:"id"`
	ArtistID  string `json:"artistId"`
	Kind      string `json:"kind"`
	Weekday   string `json:"weekday"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Note      string `json:"note,omitempty"`
}

func toWorkingResponse(s model.WorkingSlot) workingSlotResponse {
	return workingSlotResponse{
		ID:        s.ID,
		ArtistID:  s.ArtistID,
		Kind:      string(model.SlotWorking),
		Weekday:   model.WeekdayCode(s.Weekday),
		StartTime: model.FormatClock(s.StartMinute),
		EndTime:   model.FormatClock(s.EndMinute),
		Note:      s.Note,
	}
}

type datedSlotResponse struct {
	ID       string    `json:"id"`
	ArtistID string    `json:"artistId"`
	Kind     string    `json:"kind"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Note     string    `json:"note,omitempty"`
}

func toDatedResponse(s model.DatedSlot) datedSlotResponse {
	return datedSlotResponse{ID: s.ID, ArtistID: s.ArtistID, Kind: string(s.Kind), Start: s.Start.UTC(), End: s.End.UTC(), Note: s.Note}
}

type bookingResponse struct {
	ID         string    `json:"id"`
	ArtistID   string    `json:"artistId"`
	CustomerID string    `json:"customerId"`
	ServiceID  string    `json:"serviceId,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	return bookingResponse{
		ID:         b.ID,
		ArtistID:   b.ArtistID,
		CustomerID: b.CustomerID,
		ServiceID:  b.ServiceID,
		Start:      b.Start.UTC(),
		End:        b.End.UTC(),
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt.UTC(),
		UpdatedAt:  b.UpdatedAt.UTC(),
	}
}

type artistResponse struct {
	ID       string `json:"id"`
	Timezone string `json:"timezone"`
	Version  int64  `json:"version"`
}

type mutationResponse struct {
	Slot    any   `json:"slot,omitempty"`
	Version int64 `json:"version"`
	Week    any   `json:"week,omitempty"`
}
