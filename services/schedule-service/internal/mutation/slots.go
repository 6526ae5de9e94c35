package mutation

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/storage"
	"github.com/md-rashed-zaman/artistcal/services/schedule-service/internal/validator"
)

func (s *Service) CreateWorking(ctx context.Context, artistID string, slot model.WorkingSlot) (model.WorkingSlot, Result, error) {
	slot.ID = s.newID()
	slot.ArtistID = artistID
	res, err := s.mutate(ctx, artistID, "working.create", func(ctx context.Context, tx storage.Tx, artist model.Artist, loc *time.Location) (*change, error) {
		if _, err := s.validator.Working(ctx, tx, artist, loc, validator.Create, slot); err != nil {
			return nil, err
		}
		if err := tx.InsertWorkingSlot(ctx, slot); err != nil {
			return nil, err
		}
		return &change{reason: "working.created", recurring: true, at: s.pending.Now()}, nil
	})
	return slot, res, err
}

func (s *Service) UpdateWorking(ctx context.Context, artistID string, slot model.WorkingSlot) (model.WorkingSlot, Result, error) {
	slot.ArtistID = artistID
	res, err := s.mutate(ctx, artistID, "working.update", func(ctx context.Context, tx storage.Tx, artist model.Artist, loc *time.Location) (*change, error) {
		if _, err := s.validator.Working(ctx, tx, artist, loc, validator.Update, slot); err != nil {
			return nil, err
		}
		if err := tx.UpdateWorkingSlot(ctx, slot); err != nil {
			return nil, err
		}
		return &change{reason: "working.updated", recurring: true, at: s.pending.Now()}, nil
	})
	return slot, res, err
}

func (s *Service) DeleteWorking(ctx context.Context, artistID, slotID string) (Result, error) {
	return s.mutate(ctx, artistID, "working.delete", func(ctx context.Context, tx storage.Tx, artist model.Artist, loc *time.Location) (*change, error) {
		if _, err := s.validator.Working(ctx, tx, artist, loc, validator.Delete, model.WorkingSlot{ID: slotID, ArtistID: artistID}); err != nil {
			return nil, err
		}
		if err := tx.DeleteWorkingSlot(ctx, artistID, slotID); err != nil {
			return nil, err
		}
		return &change{reason: "working.deleted", recurring: true, at: s.pending.Now()}, nil
	})
}

func (s *Service) CreateDated(ctx context.Context, artistID string, slot model.DatedSlot) (model.DatedSlot, Result, error) {
	if err := datedKind(slot.Kind); err != nil {
		return slot, Result{}, err
	}
	slot.ID = s.newID()
	slot.ArtistID = artistID
	res, err := s.mutate(ctx, artistID, string(slot.Kind)+".create", func(ctx context.Context, tx storage.Tx, artist model.Artist, loc *time.Location) (*change, error) {
		if _, err := s.validator.Dated(ctx, tx, artist, loc, validator.Create, slot); err != nil {
			return nil, err
		}
		if err := tx.InsertDatedSlot(ctx, slot); err != nil {
			return nil, err
		}
		return &change{reason: string(slot.Kind) + ".created", at: slot.Start}, nil
	})
	return slot, res, err
}

func (s *Service) UpdateDated(ctx context.Context, artistID string, slot model.DatedSlot) (model.DatedSlot, Result, error) {
	if err := datedKind(slot.Kind); err != nil {
		return slot, Result{}, err
	}
	slot.ArtistID = artistID
	res, err := s.mutate(ctx, artistID, string(slot.Kind)+".update", func(ctx context.Context, tx storage.Tx, artist model.Artist, loc *time.Location) (*change, error) {
		if _, err := s.validator.Dated(ctx, tx, artist, loc, validator.Update, slot); err != nil {
			return nil, err
		}
		if err := tx.UpdateDatedSlot(ctx, slot); err != nil {
			return nil, err
		}
		return &change{reason: string(slot.Kind) + ".updated", at: slot.Start}, nil
	})
	return slot, res, err
}

func (s *Service) DeleteDated(ctx context.Context, artistID string, kind model.SlotKind, slotID string) (Result, error) {
	if err := datedKind(kind); err != nil {
		return Result{}, err
	}
	return s.mutate(ctx, artistID, string(kind)+".delete", func(ctx context.Context, tx storage.Tx, artist model.Artist, loc *time.Location) (*change, error) {
		prev, err := s.validator.Dated(ctx, tx, artist, loc, validator.Delete, model.DatedSlot{ID: slotID, ArtistID: artistID, Kind: kind})
		if err != nil {
			return nil, err
		}
		if err := tx.DeleteDatedSlot(ctx, artistID, kind, slotID); err != nil {
			return nil, err
		}
		return &change{reason: string(kind) + ".deleted", at: prev.Start}, nil
	})
}

// SetTimezone moves the working pattern to another IANA zone. Dated slots and bookings are
// absolute and keep their instants.
func (s *Service) SetTimezone(ctx context.Context, artistID, timezone string) (model.Artist, Result, error) {
	next, err := model.LoadLocation(timezone)
	if err != nil {
		return model.Artist{}, Result{}, err
	}
	var out model.Artist
	res, err := s.mutate(ctx, artistID, "timezone.set", func(ctx context.Context, tx storage.Tx, artist model.Artist, loc *time.Location) (*change, error) {
		if artist.Timezone == next.String() {
			out = artist
			return nil, nil
		}
		if err := s.validator.Timezone(ctx, tx, artist, loc, next); err != nil {
			return nil, err
		}
		artist.Timezone = next.String()
		if err := tx.UpsertArtist(ctx, artist); err != nil {
			return nil, err
		}
		out = artist
		return &change{reason: "timezone.changed", recurring: true, at: s.pending.Now(), loc: next}, nil
	})
	if err == nil && res.Event.Version != 0 {
		out.Version = res.Event.Version
	}
	return out, res, err
}

func datedKind(kind model.SlotKind) error {
	if kind != model.SlotOverride && kind != model.SlotBlocked {
		return &model.ValidationError{Field: "kind", Reason: "must be override or blocked"}
	}
	return nil
}
