// Package geolocate resolves a device's radio environment (Wi-Fi hotspots
// and GSM towers) into coordinates through the Google Geolocation API.
package geolocate

import (
	"context"
	"errors"
	"fmt"

	"github.com/fcode09/topin-tracker/pkg/topin/types"
)

// Position is a resolved location with its accuracy radius in metres.
type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Locator resolves radio evidence to a position. Implementations must be
// safe for concurrent use and must bound every lookup: the protocol engine
// blocks on Locate between the two stages of a Wi-Fi positioning reply.
type Locator interface {
	Locate(ctx context.Context, ev types.Evidence) (Position, error)
}

// ErrDisabled is returned by the disabled locator used when no API
// credential is configured.
var ErrDisabled = errors.New("geolocation disabled: no API key")

// Disabled is a Locator that always fails. The engine degrades to empty
// stage-2 replies and validity-0 location rows.
type Disabled struct{}

// Locate implements Locator.
func (Disabled) Locate(context.Context, types.Evidence) (Position, error) {
	return Position{}, ErrDisabled
}

// APIError is a non-transport failure reported by the geolocation backend.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("geolocation API error %d: %s", e.Code, e.Message)
}
