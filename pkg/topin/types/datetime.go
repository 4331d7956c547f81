// Package types holds the value types shared by the TOPIN parsers, packets
// and the response encoder: device timestamps, coordinates, course flags and
// radio evidence.
package types

import (
	"fmt"
	"time"
)

// DateTime is a device timestamp decoded from a 6-byte field. Two codings
// exist on the wire: Wi-Fi/LBS scans are decimal coded (byte 0x23 means
// decimal 23) and GPS fixes carry plain binary values. The raw bytes are
// retained because several replies echo them verbatim, including the
// all-zero case.
type DateTime struct {
	time.Time

	// Raw holds the 6 bytes exactly as received.
	Raw [6]byte
}

// DecimalValue converts a decimal-coded byte to its integer value:
// 0x23 -> 23. Nibbles above 9 are invalid.
func DecimalValue(b byte) (int, error) {
	hi := int(b >> 4)
	lo := int(b & 0x0F)
	if hi > 9 || lo > 9 {
		return 0, fmt.Errorf("byte 0x%02X is not decimal coded", b)
	}
	return hi*10 + lo, nil
}

// encodeDecimalByte converts 0..99 to its decimal-coded byte. 23 -> 0x23.
func encodeDecimalByte(v int) byte {
	return byte(v/10)<<4 | byte(v%10)
}

// DateTimeFromBytes decodes a 6-byte YY MM DD HH MM SS device timestamp.
// The year is offset from 2000 and the timestamp is UTC. An all-zero field is
// legal and means the device clock has not been set yet; it decodes to a
// DateTime whose IsZero() is true.
func DateTimeFromBytes(b []byte) (DateTime, error) {
	if len(b) != 6 {
		return DateTime{}, fmt.Errorf("datetime field must be 6 bytes, got %d", len(b))
	}

	var dt DateTime
	copy(dt.Raw[:], b)
	if dt.AllZero() {
		return dt, nil
	}

	var parts [6]int
	for i, raw := range b {
		v, err := DecimalValue(raw)
		if err != nil {
			return DateTime{}, fmt.Errorf("datetime byte %d: %w", i, err)
		}
		parts[i] = v
	}
	if parts[1] < 1 || parts[1] > 12 || parts[2] < 1 || parts[2] > 31 ||
		parts[3] > 23 || parts[4] > 59 || parts[5] > 59 {
		return DateTime{}, fmt.Errorf("datetime out of range: % X", b)
	}

	dt.Time = time.Date(2000+parts[0], time.Month(parts[1]), parts[2],
		parts[3], parts[4], parts[5], 0, time.UTC)
	return dt, nil
}

// DateTimeFromBinary decodes a 6-byte YY MM DD HH MM SS timestamp whose
// components are plain binary values (byte 0x18 means 24). GPS fixes use
// this coding; Wi-Fi/LBS scans use the decimal coding of DateTimeFromBytes.
// An all-zero field is legal, as above.
func DateTimeFromBinary(b []byte) (DateTime, error) {
	if len(b) != 6 {
		return DateTime{}, fmt.Errorf("datetime field must be 6 bytes, got %d", len(b))
	}

	var dt DateTime
	copy(dt.Raw[:], b)
	if dt.AllZero() {
		return dt, nil
	}

	month, day := int(b[1]), int(b[2])
	hour, min, sec := int(b[3]), int(b[4]), int(b[5])
	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour > 23 || min > 59 || sec > 59 {
		return DateTime{}, fmt.Errorf("datetime out of range: % X", b)
	}

	dt.Time = time.Date(2000+int(b[0]), time.Month(month), day,
		hour, min, sec, 0, time.UTC)
	return dt, nil
}

// AllZero reports whether the device sent an all-zero timestamp, i.e. a fix
// taken before the device clock was synchronised.
func (dt DateTime) AllZero() bool {
	return dt.Raw == [6]byte{}
}

// EncodeTimestamp returns the 6-byte YY MM DD HH MM SS decimal-coded form of
// t in UTC.
func EncodeTimestamp(t time.Time) []byte {
	t = t.UTC()
	return []byte{
		encodeDecimalByte(t.Year() % 100),
		encodeDecimalByte(int(t.Month())),
		encodeDecimalByte(t.Day()),
		encodeDecimalByte(t.Hour()),
		encodeDecimalByte(t.Minute()),
		encodeDecimalByte(t.Second()),
	}
}

// EncodeServerTime returns the 7-byte YYYY MM DD HH MM SS decimal-coded form
// used by the time synchronisation reply: two bytes for the full year, one
// byte per remaining component. 2024-01-15T08:30:45Z encodes to
// 20 24 01 15 08 30 45.
func EncodeServerTime(t time.Time) []byte {
	t = t.UTC()
	year := t.Year()
	return []byte{
		encodeDecimalByte(year / 100),
		encodeDecimalByte(year % 100),
		encodeDecimalByte(int(t.Month())),
		encodeDecimalByte(t.Day()),
		encodeDecimalByte(t.Hour()),
		encodeDecimalByte(t.Minute()),
		encodeDecimalByte(t.Second()),
	}
}
