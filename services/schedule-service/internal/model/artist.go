package model

import (
	"fmt"
	"time"
)

// Artist is the identity the schedule hangs off. Version increases with every committed
// schedule mutation.
type Artist struct {
	ID       string
	Timezone string
	Version  int64
}

func (a Artist) Location() (*time.Location, error) {
	return LoadLocation(a.Timezone)
}

func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, &ValidationError{Field: "timezone", Reason: "required"}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &ValidationError{Field: "timezone", Reason: fmt.Sprintf("unknown IANA zone %q", name)}
	}
	return loc, nil
}
