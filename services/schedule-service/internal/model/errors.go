package model

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError is a malformed request: bad interval, unknown zone, non-Monday week start.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// OverlapError reports a same-kind sibling (or override/block pair, or booking pair) collision.
type OverlapError struct {
	Kind          string
	ConflictingID string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlaps %s %s", e.Kind, e.ConflictingID)
}

// BookingConflictError lists the active bookings a mutation would strand.
type BookingConflictError struct {
	BookingIDs []string
}

func (e *BookingConflictError) Error() string {
	return "change would strand bookings: " + strings.Join(e.BookingIDs, ", ")
}

type OutsideAvailabilityError struct {
	Start time.Time
	End   time.Time
}

func (e *OutsideAvailabilityError) Error() string {
	return fmt.Sprintf("requested time %s..%s is outside availability",
		e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339))
}

// ConcurrencyConflictError means another writer changed the artist's schedule first.
type ConcurrencyConflictError struct {
	ArtistID string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("schedule of artist %s was modified concurrently", e.ArtistID)
}
