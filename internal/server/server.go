// Package server runs the TCP listener and pumps each connection's byte
// stream through the frame decoder into the protocol engine.
package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/fcode09/topin-tracker/internal/engine"
	"github.com/fcode09/topin-tracker/internal/metrics"
	"github.com/fcode09/topin-tracker/pkg/topin"
)

const (
	defaultReadTimeout  = 5 * time.Minute
	defaultWriteTimeout = 30 * time.Second

	readBufferSize = 4096
)

// Server accepts device connections and hands their frames to the engine.
type Server struct {
	addr   string
	eng    *engine.Engine
	logger *log.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration
	strict       bool

	wg sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithReadTimeout sets the per-read idle deadline. Devices upload on
// multi-minute intervals, so the default is generous.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.readTimeout = d }
}

// WithWriteTimeout sets the per-reply write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// WithStrictFraming makes connections drop on leading garbage instead of
// resynchronising on the next start marker.
func WithStrictFraming(strict bool) Option {
	return func(s *Server) { s.strict = strict }
}

// New creates a Server listening on addr.
func New(addr string, eng *engine.Engine, logger *log.Logger, opts ...Option) *Server {
	s := &Server{
		addr:         addr,
		eng:          eng,
		logger:       logger,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe accepts connections until ctx is cancelled, then closes the
// listener and waits for in-flight connections to finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.addr, err)
	}
	s.logger.Printf("listening on %s", ln.Addr())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn owns one device connection: read, reassemble, dispatch.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	sess := engine.NewSession(peerIP(conn.RemoteAddr()))
	s.logger.Printf("[%s] connected from %s", sess.ID, conn.RemoteAddr())

	w := &connWriter{conn: conn, timeout: s.writeTimeout}
	dec := topin.NewDecoder(topin.WithStrictMode(s.strict))

	var residue []byte
	buf := make([]byte, readBufferSize)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			break
		}
		n, err := conn.Read(buf)
		if n > 0 {
			frames, rest, decErr := dec.DecodeStream(append(residue, buf[:n]...))
			residue = rest

			for _, f := range frames {
				keepAlive, handleErr := s.eng.HandleFrame(ctx, sess, w, f)
				if handleErr != nil {
					s.logger.Printf("[%s] closing: %v", sess.Identity(), handleErr)
					s.summarise(sess)
					return
				}
				if !keepAlive {
					s.summarise(sess)
					return
				}
			}
			if decErr != nil {
				metrics.FrameErrors.Inc()
				s.logger.Printf("[%s] closing: %v: unframed bytes %s",
					sess.Identity(), decErr, hex.EncodeToString(residue))
				break
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Printf("[%s] read error: %v", sess.Identity(), err)
			}
			break
		}
	}

	s.summarise(sess)
}

func (s *Server) summarise(sess *engine.Session) {
	s.logger.Printf("[%s] disconnected after %s: %d frames in, %d out",
		sess.Identity(), time.Since(sess.ConnectedAt).Round(time.Second),
		sess.FramesIn, sess.FramesOut)
}

// connWriter writes reply frames with a bounded deadline. net.Conn writes are
// unbuffered, so a returned nil means the frame was handed to the kernel,
// which is the ordering guarantee the two-stage replies need.
type connWriter struct {
	conn    net.Conn
	timeout time.Duration
}

func (w *connWriter) WriteFrame(frame []byte) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return err
	}
	_, err := w.conn.Write(frame)
	return err
}

// peerIP strips the port from a remote address.
func peerIP(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
