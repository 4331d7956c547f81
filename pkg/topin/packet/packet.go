// Package packet defines the typed values produced by the TOPIN payload
// parsers. Each known opcode decodes into its own packet type; the engine
// dispatches on the concrete type.
package packet

import (
	"time"

	"github.com/fcode09/topin-tracker/pkg/topin/protocol"
)

// Packet is implemented by every decoded TOPIN packet.
type Packet interface {
	// Opcode returns the protocol opcode byte.
	Opcode() byte

	// Type returns the symbolic opcode name.
	Type() string

	// Raw returns the full frame bytes this packet was decoded from.
	Raw() []byte
}

// BasePacket carries the fields common to all packets.
type BasePacket struct {
	OpcodeByte byte
	RawData    []byte
	ParsedAt   time.Time
}

func (p *BasePacket) Opcode() byte { return p.OpcodeByte }

func (p *BasePacket) Type() string { return protocol.OpcodeName(p.OpcodeByte) }

func (p *BasePacket) Raw() []byte { return p.RawData }

// ValidationError describes a field that failed packet validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}
