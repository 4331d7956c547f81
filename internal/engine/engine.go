// Package engine drives the per-opcode protocol conversation: it parses
// reassembled frames, updates the session, writes log rows and builds the
// replies devices expect.
package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/fcode09/topin-tracker/internal/geolocate"
	"github.com/fcode09/topin-tracker/internal/logsink"
	"github.com/fcode09/topin-tracker/internal/metrics"
	"github.com/fcode09/topin-tracker/internal/parser"
	"github.com/fcode09/topin-tracker/pkg/topin"
	"github.com/fcode09/topin-tracker/pkg/topin/encoder"
	"github.com/fcode09/topin-tracker/pkg/topin/packet"
	"github.com/fcode09/topin-tracker/pkg/topin/protocol"
	"github.com/fcode09/topin-tracker/pkg/topin/types"
)

// ErrLoginRequired is returned when a device sends any frame before a valid
// login. The connection is closed.
var ErrLoginRequired = errors.New("first packet must be a login")

// FrameWriter sends one complete reply frame to the device. Implementations
// must flush before returning: the two-stage Wi-Fi reply depends on stage 1
// reaching the device before the geolocation lookup starts.
type FrameWriter interface {
	WriteFrame(frame []byte) error
}

const defaultGeolocationTimeout = 15 * time.Second

const rowTimeLayout = "2006/01/02 15:04:05"

// Engine handles decoded frames for all sessions. It is stateless across
// frames apart from what lives in the Session, so one Engine serves every
// connection.
type Engine struct {
	enc     *encoder.Encoder
	locator geolocate.Locator
	sink    logsink.Sink
	setup   encoder.SetupConfig
	logger  *log.Logger

	geoTimeout time.Duration

	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithSetupConfig overrides the configuration sent in setup replies.
func WithSetupConfig(cfg encoder.SetupConfig) Option {
	return func(e *Engine) { e.setup = cfg }
}

// WithGeolocationTimeout bounds the blocking lookup between the two stages
// of a Wi-Fi positioning reply.
func WithGeolocationTimeout(d time.Duration) Option {
	return func(e *Engine) { e.geoTimeout = d }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(locator geolocate.Locator, sink logsink.Sink, logger *log.Logger, opts ...Option) *Engine {
	e := &Engine{
		enc:        encoder.New(),
		locator:    locator,
		sink:       sink,
		setup:      encoder.DefaultSetupConfig(),
		logger:     logger,
		geoTimeout: defaultGeolocationTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleFrame processes one reassembled frame. keepAlive false tells the
// caller to close the connection; a non-nil error additionally means the
// close is abnormal.
func (e *Engine) HandleFrame(ctx context.Context, sess *Session, w FrameWriter, f topin.Frame) (keepAlive bool, err error) {
	sess.FramesIn++
	metrics.FramesIn.WithLabelValues(protocol.OpcodeName(f.Opcode)).Inc()

	pkt, known, parseErr := parser.Parse(f)

	// A login packet identifies the session before its frame is logged, so
	// the login row already carries the IMEI.
	if login, ok := pkt.(*packet.LoginPacket); ok && parseErr == nil {
		sess.IMEI = login.IMEI
		sess.SoftwareVersion = login.SoftwareVersion
	}

	e.logTraffic(sess, logsink.DirectionIn, f.Raw)

	if !known {
		metrics.UnknownOpcodes.Inc()
		e.logger.Printf("[%s] unknown opcode 0x%02X ignored: %s",
			sess.Identity(), f.Opcode, hex.EncodeToString(f.Raw))
		return true, nil
	}
	if parseErr != nil {
		metrics.DecodeErrors.Inc()
		sess.State = StateClosing
		return false, fmt.Errorf("%s: %w", protocol.OpcodeName(f.Opcode), parseErr)
	}

	if sess.State == StateAwaitingLogin && f.Opcode != protocol.OpcodeLogin {
		sess.State = StateClosing
		return false, fmt.Errorf("%w: got %s", ErrLoginRequired, protocol.OpcodeName(f.Opcode))
	}

	switch p := pkt.(type) {
	case *packet.LoginPacket:
		return e.handleLogin(sess, w, p)
	case *packet.GPSPacket:
		return e.handleGPS(sess, w, p)
	case *packet.WifiLBSPacket:
		return e.handleWifiLBS(ctx, sess, w, p)
	case *packet.StatusPacket:
		e.logger.Printf("[%s] status: %s", sess.Identity(), p)
		return true, nil
	case *packet.TimePacket:
		return true, e.reply(sess, w, e.enc.TimeResponse(e.now()))
	case *packet.SetupPacket:
		return true, e.reply(sess, w, e.enc.SetupResponse(e.setup))
	case *packet.UploadIntervalPacket:
		e.logger.Printf("[%s] upload interval changed to %ds", sess.Identity(), p.Interval())
		return true, e.reply(sess, w, e.enc.UploadIntervalResponse(p.IntervalRaw))
	case *packet.HibernationPacket:
		e.logger.Printf("[%s] hibernation announced, closing", sess.Identity())
		sess.State = StateClosing
		return false, nil
	case *packet.EventPacket:
		e.logger.Printf("[%s] %s event", sess.Identity(), p.Type())
		return true, nil
	default:
		// Every registered parser produces one of the types above.
		return true, nil
	}
}

func (e *Engine) handleLogin(sess *Session, w FrameWriter, p *packet.LoginPacket) (bool, error) {
	sess.State = StateActive
	e.logger.Printf("[%s] login: software version %d", p.IMEI, p.SoftwareVersion)
	return true, e.reply(sess, w, e.enc.LoginResponse())
}

func (e *Engine) handleGPS(sess *Session, w FrameWriter, p *packet.GPSPacket) (bool, error) {
	validity := protocol.ValidityInvalid
	if p.IsPositioned() {
		validity = protocol.ValidityValid
	}

	// An all-zero timestamp means the device clock was unset when the fix
	// was stored. The row gets the server time and a distinct validity, but
	// the reply still echoes the raw zeros.
	rowTime := p.DateTime.Time
	if p.DateTime.AllZero() {
		validity = protocol.ValidityNoClock
		rowTime = e.now()
	}

	e.logPosition(sess, logsink.PositionRecord{
		Method:    protocol.MethodGPS,
		Datetime:  rowTime.Local().Format(rowTimeLayout),
		Validity:  validity,
		NbSat:     strconv.Itoa(int(p.Satellites)),
		Latitude:  strconv.FormatFloat(p.Coordinates.Latitude, 'f', 6, 64),
		Longitude: strconv.FormatFloat(p.Coordinates.Longitude, 'f', 6, 64),
		Accuracy:  "0.0",
		Speed:     strconv.Itoa(int(p.Speed)),
		Heading:   strconv.Itoa(int(p.Course.Heading)),
	})

	return true, e.reply(sess, w, e.enc.GPSResponse(p.Opcode(), p.DateTime.Raw))
}

func (e *Engine) handleWifiLBS(ctx context.Context, sess *Session, w FrameWriter, p *packet.WifiLBSPacket) (bool, error) {
	sess.Evidence = p.Evidence

	// Stage 1 echoes the timestamp. It must reach the device before the
	// geolocation lookup runs: devices time out waiting for it.
	if err := e.reply(sess, w, e.enc.WifiStage1Response(p.Opcode(), p.DateTime.Raw)); err != nil {
		return false, err
	}
	if p.Opcode() != protocol.OpcodeWifiPositioning {
		return true, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, e.geoTimeout)
	defer cancel()
	pos, err := e.locator.Locate(lookupCtx, p.Evidence)

	if err != nil {
		e.logger.Printf("[%s] geolocation failed: %v", sess.Identity(), err)
		e.logPosition(sess, logsink.PositionRecord{
			Method:   protocol.MethodLBS,
			Validity: protocol.ValidityInvalid,
		})
		return true, e.reply(sess, w, e.enc.WifiStage2Response(p.Opcode(), nil))
	}

	validity := protocol.ValidityValid
	rowTime := p.DateTime.Time
	if p.DateTime.AllZero() {
		validity = protocol.ValidityNoClock
		rowTime = e.now()
	}

	method := protocol.MethodLBSGSM
	if p.Evidence.HasWifi() {
		method = protocol.MethodLBSGSMWifi
	}
	e.logPosition(sess, logsink.PositionRecord{
		Method:    method,
		Datetime:  rowTime.Local().Format(rowTimeLayout),
		Validity:  validity,
		Latitude:  strconv.FormatFloat(pos.Latitude, 'f', 6, 64),
		Longitude: strconv.FormatFloat(pos.Longitude, 'f', 6, 64),
		Accuracy:  strconv.FormatFloat(pos.Accuracy, 'f', 1, 64),
	})

	coords := types.Coordinates{Latitude: pos.Latitude, Longitude: pos.Longitude}
	return true, e.reply(sess, w, e.enc.WifiStage2Response(p.Opcode(), &coords))
}

// reply writes one frame, logs the outbound row and counts it.
func (e *Engine) reply(sess *Session, w FrameWriter, frame []byte) error {
	if err := w.WriteFrame(frame); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	sess.FramesOut++
	metrics.FramesOut.Inc()
	e.logTraffic(sess, logsink.DirectionOut, frame)
	return nil
}

func (e *Engine) logTraffic(sess *Session, direction string, frame []byte) {
	if err := e.sink.Info(sess.PeerIP, sess.IMEI, direction, hex.EncodeToString(frame)); err != nil {
		e.logger.Printf("[%s] traffic log write failed: %v", sess.Identity(), err)
	}
}

func (e *Engine) logPosition(sess *Session, rec logsink.PositionRecord) {
	if rec.Latitude != "" {
		sess.LastPosition = &rec
	}
	if err := e.sink.Location(sess.PeerIP, sess.IMEI, rec); err != nil {
		e.logger.Printf("[%s] location log write failed: %v", sess.Identity(), err)
	}
}
