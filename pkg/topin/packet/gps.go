package packet

import (
	"fmt"

	"github.com/fcode09/topin-tracker/pkg/topin/types"
)

// GPSPacket is a GPS fix (opcodes 0x10 and 0x11, identical layout). 0x11
// carries a fix recorded while the device was offline.
type GPSPacket struct {
	BasePacket

	// DateTime is the device UTC timestamp. May be all-zero when the device
	// clock has not been set; the raw bytes are still echoed in the reply.
	DateTime types.DateTime

	// LengthIndicator is the high nibble of payload byte 6. The device
	// populates it but no firmware revision is known to check it.
	LengthIndicator uint8

	// Satellites is the number of satellites used for the fix.
	Satellites uint8

	Coordinates types.Coordinates

	// Speed in km/h.
	Speed uint8

	Course types.CourseStatus
}

// IsPositioned reports whether the device flagged the fix as valid.
func (p *GPSPacket) IsPositioned() bool {
	return p.Course.PositionValid
}

// Validate checks the decoded coordinates are on the globe.
func (p *GPSPacket) Validate() error {
	if !p.Coordinates.IsValid() {
		return &ValidationError{Field: "Coordinates", Reason: p.Coordinates.String()}
	}
	return nil
}

func (p *GPSPacket) String() string {
	return fmt.Sprintf("GPSPacket{Time: %s, Pos: [%s], Speed: %d km/h, Heading: %d, Satellites: %d, Valid: %v}",
		p.DateTime.Time, p.Coordinates, p.Speed, p.Course.Heading, p.Satellites, p.IsPositioned())
}
