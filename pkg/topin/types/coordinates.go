package types

import (
	"fmt"

	"github.com/golang/geo/s2"
)

// angularScale converts the raw 32-bit coordinate fields to degrees: the
// device multiplies seconds-of-angle by 30000.
const angularScale = 30000 * 60

// CourseStatus is the decoded 16-bit flags word that trails a GPS payload.
// Bit numbering follows the wire layout (bit 15 is the MSB of the first
// byte): bit 12 flags a valid fix, bit 11 selects the western hemisphere,
// bit 10 selects the northern hemisphere and bits 9..0 carry the heading.
type CourseStatus struct {
	PositionValid bool
	West          bool
	North         bool

	// Heading in degrees, 0..1023. Devices occasionally report values of 360
	// or more; they are stored verbatim.
	Heading uint16
}

const (
	flagPositionValid = 1 << 12
	flagWest          = 1 << 11
	flagNorth         = 1 << 10
	headingMask       = 0x03FF
)

// CourseStatusFromBytes decodes the 2-byte big-endian flags word.
func CourseStatusFromBytes(b []byte) (CourseStatus, error) {
	if len(b) != 2 {
		return CourseStatus{}, fmt.Errorf("course status must be 2 bytes, got %d", len(b))
	}
	f := uint16(b[0])<<8 | uint16(b[1])
	return CourseStatus{
		PositionValid: f&flagPositionValid != 0,
		West:          f&flagWest != 0,
		North:         f&flagNorth != 0,
		Heading:       f & headingMask,
	}, nil
}

// Coordinates is a decoded GPS position in signed decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// CoordinatesFromRaw converts the raw 32-bit latitude and longitude fields
// into signed degrees. Southern latitudes and western longitudes are negated
// according to the hemisphere flags.
func CoordinatesFromRaw(latRaw, lonRaw uint32, cs CourseStatus) Coordinates {
	lat := float64(latRaw) / angularScale
	lon := float64(lonRaw) / angularScale
	if !cs.North {
		lat = -lat
	}
	if cs.West {
		lon = -lon
	}
	return Coordinates{Latitude: lat, Longitude: lon}
}

// IsValid reports whether the coordinates are within -90..90 / -180..180.
func (c Coordinates) IsValid() bool {
	return s2.LatLngFromDegrees(c.Latitude, c.Longitude).IsValid()
}

// String formats the coordinates to six decimal places.
func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f, %.6f", c.Latitude, c.Longitude)
}
