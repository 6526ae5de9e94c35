package model

import (
	"fmt"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// ActiveStatuses are the statuses that hold a slot and must never be stranded.
var ActiveStatuses = []BookingStatus{BookingPending, BookingConfirmed}

func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch s := BookingStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return s, nil
	default:
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown booking status %q", raw)}
	}
}

type Booking struct {
	ID         string
	ArtistID   string
	CustomerID string
	ServiceID  string
	Start      time.Time
	End        time.Time
	Status     BookingStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (b Booking) Active() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
