package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/fcode09/topin-tracker/internal/logsink"
	"github.com/fcode09/topin-tracker/pkg/topin/types"
)

// State is the lifecycle stage of a device connection.
type State int

const (
	// StateAwaitingLogin means no login packet has been accepted yet. Any
	// other opcode in this state is fatal.
	StateAwaitingLogin State = iota

	// StateActive means the device has identified itself.
	StateActive

	// StateClosing means the connection is being torn down: hibernation,
	// EOF or a fatal decode error.
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateAwaitingLogin:
		return "awaiting_login"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// Session is the per-connection device state. A session is owned by a single
// connection goroutine and is not shared.
type Session struct {
	// ID is a server-side identifier used in console logs before the device
	// has sent its IMEI.
	ID string

	// PeerIP is the remote address without the port, as written to log rows.
	PeerIP string

	// IMEI is empty until a login packet is accepted.
	IMEI string

	// SoftwareVersion is the firmware version byte from the login packet.
	SoftwareVersion uint8

	State State

	ConnectedAt time.Time

	// LastPosition is the most recent position row that carried coordinates,
	// whether a GPS fix or a geolocated scan. Nil until one is emitted.
	LastPosition *logsink.PositionRecord

	// Evidence is the radio environment from the latest Wi-Fi/LBS scan,
	// including scans that triggered no lookup.
	Evidence types.Evidence

	// FramesIn and FramesOut count frames handled on this session, for the
	// disconnect summary line.
	FramesIn  int
	FramesOut int
}

// NewSession creates a session in the awaiting-login state.
func NewSession(peerIP string) *Session {
	return &Session{
		ID:          uuid.NewString(),
		PeerIP:      peerIP,
		State:       StateAwaitingLogin,
		ConnectedAt: time.Now(),
	}
}

// Identity returns the IMEI once known, the session ID before that.
func (s *Session) Identity() string {
	if s.IMEI != "" {
		return s.IMEI
	}
	return s.ID
}
