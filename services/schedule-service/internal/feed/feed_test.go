package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/artistcal/libs/kafkax"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/mutation"
)

type fakeBookings struct {
	created   []mutation.BookingRequest
	cancelled []string
	err       error
}

func (f *fakeBookings) CreateBooking(_ context.Context, _ string, req mutation.BookingRequest) (model.Booking, bool, error) {
	f.created = append(f.created, req)
	return model.Booking{}, false, f.err
}

func (f *fakeBookings) SetBookingStatus(_ context.Context, _, id string, _ model.BookingStatus) (model.Booking, error) {
	f.cancelled = append(f.cancelled, id)
	return model.Booking{}, f.err
}

var topics = Topics{Created: "booking.created.v1", Cancelled: "booking.cancelled.v1"}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCreatedEventBecomesIdempotentBooking(t *testing.T) {
	fb := &fakeBookings{}
	h := Handler(fb, topics, discard())

	err := h(context.Background(), kafka.Message{
		Topic:   topics.Created,
		Value:   []byte(`{"booking_id":"ext-1","customer_id":"c1","start_time":"2026-01-05T10:00:00Z","end_time":"2026-01-05T11:00:00Z","status":"confirmed"}`),
		Headers: kafkax.EventMeta{ArtistID: "a1"}.Headers(),
	})
	require.NoError(t, err)
	require.Len(t, fb.created, 1)
	req := fb.created[0]
	assert.Equal(t, "ext-1", req.IdempotencyKey)
	assert.Equal(t, model.BookingConfirmed, req.Status)
	assert.True(t, req.Start.Equal(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)))
}

func TestCancelledEventUsesDerivedID(t *testing.T) {
	fb := &fakeBookings{}
	h := Handler(fb, topics, discard())

	require.NoError(t, h(context.Background(), kafka.Message{
		Topic: topics.Cancelled,
		Value: []byte(`{"booking_id":"ext-1","artist_id":"a1"}`),
	}))
	assert.Equal(t, []string{mutation.IdempotentBookingID("a1", "ext-1")}, fb.cancelled)
}

func TestRejectionsAreAcknowledgedInfraErrorsAreNot(t *testing.T) {
	fb := &fakeBookings{err: &model.OutsideAvailabilityError{}}
	h := Handler(fb, topics, discard())
	msg := kafka.Message{
		Topic: topics.Created,
		Value: []byte(`{"booking_id":"ext-1","artist_id":"a1","start_time":"2026-01-05T10:00:00Z","end_time":"2026-01-05T11:00:00Z"}`),
	}
	assert.NoError(t, h(context.Background(), msg))

	fb.err = errors.New("db down")
	assert.Error(t, h(context.Background(), msg))

	assert.NoError(t, h(context.Background(), kafka.Message{Topic: topics.Created, Value: []byte(`not json`)}))
	assert.NoError(t, h(context.Background(), kafka.Message{Topic: topics.Created, Value: []byte(`{"booking_id":"x","artist_id":"a1","start_time":"bad"}`)}))
}
