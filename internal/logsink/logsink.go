// Package logsink provides the two append-only TSV streams the server
// feeds: a traffic log of every inbound and outbound frame, and a location
// log of every decoded position.
package logsink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Direction labels for traffic log rows.
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// Default file names under the log directory.
const (
	InfoFileName     = "server_log.txt"
	LocationFileName = "location_log.txt"
)

const timestampLayout = "2006/01/02 15:04:05"

// PositionRecord is one decoded position. Absent fields are empty strings so
// the TSV columns stay aligned.
type PositionRecord struct {
	Method    string
	Datetime  string
	Validity  int
	NbSat     string
	Latitude  string
	Longitude string
	Accuracy  string
	Speed     string
	Heading   string
}

// Sink receives traffic and location records. Implementations must be safe
// for concurrent use: connection handlers share one sink.
type Sink interface {
	// Info appends one traffic row: direction is IN or OUT, payload is the
	// full frame in hex.
	Info(peerIP, imei, direction, hexPayload string) error

	// Location appends one position row.
	Location(peerIP, imei string, rec PositionRecord) error

	// Close releases the underlying files.
	Close() error
}

// FileSink writes TSV rows to two files under a directory, flushing after
// each record. A mutex serialises appends so rows from concurrent
// connections do not interleave.
type FileSink struct {
	mu       sync.Mutex
	info     *os.File
	location *os.File

	now func() time.Time
}

// NewFileSink creates the log directory if needed and opens both streams for
// appending.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logsink: create directory: %w", err)
	}

	info, err := os.OpenFile(filepath.Join(dir, InfoFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logsink: open info log: %w", err)
	}
	location, err := os.OpenFile(filepath.Join(dir, LocationFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		info.Close()
		return nil, fmt.Errorf("logsink: open location log: %w", err)
	}

	return &FileSink{info: info, location: location, now: time.Now}, nil
}

// Info implements Sink.
func (s *FileSink) Info(peerIP, imei, direction, hexPayload string) error {
	row := strings.Join([]string{
		s.now().Format(timestampLayout), peerIP, imei, direction, hexPayload,
	}, "\t")
	return s.append(s.info, row)
}

// Location implements Sink.
func (s *FileSink) Location(peerIP, imei string, rec PositionRecord) error {
	row := strings.Join([]string{
		s.now().Format(timestampLayout), peerIP, imei,
		rec.Method, rec.Datetime, fmt.Sprintf("%d", rec.Validity), rec.NbSat,
		rec.Latitude, rec.Longitude, rec.Accuracy, rec.Speed, rec.Heading,
	}, "\t")
	return s.append(s.location, row)
}

func (s *FileSink) append(f *os.File, row string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := f.WriteString(row + "\n"); err != nil {
		return fmt.Errorf("logsink: append: %w", err)
	}
	return f.Sync()
}

// Close implements Sink.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	infoErr := s.info.Close()
	locErr := s.location.Close()
	if infoErr != nil {
		return infoErr
	}
	return locErr
}
