package mutation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/storage"
)

type BookingRequest struct {
	CustomerID string
	ServiceID  string
	Start      time.Time
	End        time.Time
	// Status is PENDING (default) or CONFIRMED.
	Status model.BookingStatus
	// IdempotencyKey makes retries of the same request return the original booking.
	IdempotencyKey string
}

// IdempotentBookingID derives a stable booking id from an idempotency key so a replay finds the
// first booking.
func IdempotentBookingID(artistID, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("artistcal:booking:"+artistID+":"+key)).String()
}

// CreateBooking records a booking after checking it against availability and other active
// bookings. replayed is true when the idempotency key matched an existing booking.
func (s *Service) CreateBooking(ctx context.Context, artistID string, req BookingRequest) (b model.Booking, replayed bool, err error) {
	if req.Status == "" {
		req.Status = model.BookingPending
	}
	if req.Status != model.BookingPending && req.Status != model.BookingConfirmed {
		return model.Booking{}, false, &model.ValidationError{Field: "status", Reason: "new bookings are PENDING or CONFIRMED"}
	}

	id := s.newID()
	if req.IdempotencyKey != "" {
		id = IdempotentBookingID(artistID, req.IdempotencyKey)
	}
	now := s.pending.Now().UTC()
	b = model.Booking{
		ID:         id,
		ArtistID:   artistID,
		CustomerID: req.CustomerID,
		ServiceID:  req.ServiceID,
		Start:      req.Start,
		End:        req.End,
		Status:     req.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = s.mutate(ctx, artistID, "booking.create", func(ctx context.Context, tx storage.Tx, artist model.Artist, loc *time.Location) (*change, error) {
		if req.IdempotencyKey != "" {
			existing, err := tx.GetBooking(ctx, artistID, b.ID)
			var nf *model.NotFoundError
			switch {
			case err == nil:
				b, replayed = existing, true
				return nil, nil
			case !errors.As(err, &nf):
				return nil, err
			}
		}
		if err := s.validator.Booking(ctx, tx, artist, loc, b); err != nil {
			return nil, err
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return nil, err
		}
		return &change{reason: "booking.created", at: b.Start}, nil
	})
	if err != nil {
		return model.Booking{}, false, err
	}
	return b, replayed, nil
}

// SetBookingStatus applies a lifecycle transition. Confirming re-checks the booking the way a
// new one is checked, since an expired hold may have lost its slot.
func (s *Service) SetBookingStatus(ctx context.Context, artistID, bookingID string, status model.BookingStatus) (model.Booking, error) {
	var out model.Booking
	_, err := s.mutate(ctx, artistID, "booking.status", func(ctx context.Context, tx storage.Tx, artist model.Artist, loc *time.Location) (*change, error) {
		b, err := tx.GetBooking(ctx, artistID, bookingID)
		if err != nil {
			return nil, err
		}
		if b.Status == status {
			out = b
			return nil, nil
		}
		if !b.Status.CanTransitionTo(status) {
			return nil, &model.ValidationError{Field: "status", Reason: "cannot move from " + string(b.Status) + " to " + string(status)}
		}
		if status == model.BookingConfirmed {
			if err := s.validator.Booking(ctx, tx, artist, loc, b); err != nil {
				return nil, err
			}
		}
		now := s.pending.Now().UTC()
		if err := tx.UpdateBookingStatus(ctx, artistID, bookingID, status, now); err != nil {
			return nil, err
		}
		b.Status, b.UpdatedAt = status, now
		out = b
		return &change{reason: "booking." + lowerStatus(status), at: b.Start}, nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	return out, nil
}

func lowerStatus(s model.BookingStatus) string {
	switch s {
	case model.BookingConfirmed:
		return "confirmed"
	case model.BookingCompleted:
		return "completed"
	case model.BookingCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}
