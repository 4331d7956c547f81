// Package parser decodes TOPIN frame payloads into typed packets. One parser
// is registered per opcode; the registry is immutable after init.
package parser

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fcode09/topin-tracker/pkg/topin"
	"github.com/fcode09/topin-tracker/pkg/topin/packet"
)

// ErrDecode is the sentinel wrapped by all payload decode errors. The engine
// closes the connection on any decode error.
var ErrDecode = errors.New("decode error")

// Parser decodes the payload of one opcode.
type Parser interface {
	// Opcode returns the opcode this parser handles.
	Opcode() byte

	// Name returns a human-readable parser name for logs.
	Name() string

	// Parse decodes a reassembled frame into a typed packet.
	Parse(f topin.Frame) (packet.Packet, error)
}

// BaseParser provides the Opcode and Name accessors.
type BaseParser struct {
	opcode byte
	name   string
}

// NewBaseParser creates a BaseParser.
func NewBaseParser(opcode byte, name string) BaseParser {
	return BaseParser{opcode: opcode, name: name}
}

func (b BaseParser) Opcode() byte { return b.opcode }

func (b BaseParser) Name() string { return b.name }

// base builds the BasePacket fields shared by every parsed packet.
func base(f topin.Frame) packet.BasePacket {
	return packet.BasePacket{
		OpcodeByte: f.Opcode,
		RawData:    f.Raw,
		ParsedAt:   time.Now(),
	}
}

var registry = map[byte]Parser{}

// MustRegister adds a parser to the default registry and panics on a
// duplicate opcode. Called from init functions only.
func MustRegister(p Parser) {
	if _, dup := registry[p.Opcode()]; dup {
		panic(fmt.Sprintf("parser: duplicate registration for opcode 0x%02X", p.Opcode()))
	}
	registry[p.Opcode()] = p
}

// Lookup returns the parser for an opcode.
func Lookup(opcode byte) (Parser, bool) {
	p, ok := registry[opcode]
	return p, ok
}

// Registered returns all registered opcodes in ascending order.
func Registered() []byte {
	opcodes := make([]byte, 0, len(registry))
	for op := range registry {
		opcodes = append(opcodes, op)
	}
	sort.Slice(opcodes, func(i, j int) bool { return opcodes[i] < opcodes[j] })
	return opcodes
}

// Parse decodes a frame with the registered parser for its opcode. The
// second return is false when the opcode is unknown; unknown opcodes are not
// an error.
func Parse(f topin.Frame) (packet.Packet, bool, error) {
	p, ok := Lookup(f.Opcode)
	if !ok {
		return nil, false, nil
	}
	pkt, err := p.Parse(f)
	return pkt, true, err
}
