// Package feed applies booking events published by the storefront to the schedule. Created events
// become bookings keyed by the upstream booking id; cancelled events cancel them. Both go through
// the mutation service so they are validated, versioned and announced like local changes.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/artistcal/libs/kafkax"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/consumer"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/mutation"
)

type Bookings interface {
	CreateBooking(ctx context.Context, artistID string, req mutation.BookingRequest) (model.Booking, bool, error)
	SetBookingStatus(ctx context.Context, artistID, bookingID string, status model.BookingStatus) (model.Booking, error)
}

type Topics struct {
	Created   string
	Cancelled string
}

type bookingEvent struct {
	BookingID  string `json:"booking_id"`
	ArtistID   string `json:"artist_id"`
	CustomerID string `json:"customer_id"`
	ServiceID  string `json:"service_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Status     string `json:"status"`
}

// Handler returns the consumer handler. Malformed events and domain rejections are logged and
// acknowledged; only infrastructure failures are returned.
func Handler(bookings Bookings, topics Topics, logger *slog.Logger) consumer.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt bookingEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid booking event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if evt.ArtistID == "" {
			evt.ArtistID = kafkax.ExtractEventMeta(msg).ArtistID
		}
		if evt.ArtistID == "" || evt.BookingID == "" {
			logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}

		var err error
		switch msg.Topic {
		case topics.Created:
			err = created(ctx, bookings, evt)
		case topics.Cancelled:
			_, err = bookings.SetBookingStatus(ctx, evt.ArtistID, mutation.IdempotentBookingID(evt.ArtistID, evt.BookingID), model.BookingCancelled)
		default:
			logger.Warn("unexpected topic", "topic", msg.Topic)
			return nil
		}
		if domainRejection(err) {
			logger.Warn("booking event rejected", "topic", msg.Topic, "artist_id", evt.ArtistID, "booking_id", evt.BookingID, "err", err)
			return nil
		}
		return err
	}
}

func created(ctx context.Context, bookings Bookings, evt bookingEvent) error {
	start, err := time.Parse(time.RFC3339, evt.StartTime)
	if err != nil {
		return &model.ValidationError{Field: "start_time", Reason: "want RFC3339"}
	}
	end, err := time.Parse(time.RFC3339, evt.EndTime)
	if err != nil {
		return &model.ValidationError{Field: "end_time", Reason: "want RFC3339"}
	}
	status := model.BookingPending
	if evt.Status != "" {
		if status, err = model.ParseBookingStatus(evt.Status); err != nil {
			return err
		}
	}
	_, _, err = bookings.CreateBooking(ctx, evt.ArtistID, mutation.BookingRequest{
		CustomerID:     evt.CustomerID,
		ServiceID:      evt.ServiceID,
		Start:          start,
		End:            end,
		Status:         status,
		IdempotencyKey: evt.BookingID,
	})
	return err
}

func domainRejection(err error) bool {
	var (
		ve *model.ValidationError
		nf *model.NotFoundError
		oe *model.OverlapError
		oa *model.OutsideAvailabilityError
	)
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &oe) || errors.As(err, &oa)
}
