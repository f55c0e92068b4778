// Package server is the TCP front end of the key-value service. It accepts
// connections, runs one goroutine per connection and answers every framed
// request with exactly one framed response in the request's format.
package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/IvanBrykalov/kvcache/kverr"
	"github.com/IvanBrykalov/kvcache/log"
	"github.com/IvanBrykalov/kvcache/wire"
)

// Server timeout defaults.
const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("server: closed")

// Service is what the server dispatches to; *kv.Service implements it.
type Service interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
}

// Options configures a Server. Zero values are replaced in New():
//   - nil Logger         => log.NopLogger
//   - ReadTimeout <= 0   => DefaultReadTimeout (idle limit between requests)
//   - WriteTimeout <= 0  => DefaultWriteTimeout
//   - MaxConns <= 0      => unlimited
type Options struct {
	Logger       log.Logger
	MaxConns     int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves one Service over TCP.
type Server struct {
	svc Service
	opt Options
	log log.Logger
	sem *semaphore.Weighted

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// New creates a Server; call Serve or ListenAndServe to start it.
func New(svc Service, opt Options) *Server {
	opt.Logger = log.OrNop(opt.Logger)
	if opt.ReadTimeout <= 0 {
		opt.ReadTimeout = DefaultReadTimeout
	}
	if opt.WriteTimeout <= 0 {
		opt.WriteTimeout = DefaultWriteTimeout
	}
	s := &Server{svc: svc, opt: opt, log: opt.Logger, conns: make(map[net.Conn]struct{})}
	if opt.MaxConns > 0 {
		s.sem = semaphore.NewWeighted(opt.MaxConns)
	}
	return s
}

// ListenAndServe listens on addr and serves until ctx is done or Close.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Close is called. It
// returns ErrServerClosed in both cases, after every connection handler
// has returned.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.mu.Unlock()

	s.log.Info("listening", log.Fields{"addr": ln.Addr().String()})

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		if s.sem != nil {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				_ = s.Close()
				s.wg.Wait()
				return ErrServerClosed
			}
		}
		conn, err := ln.Accept()
		if err != nil {
			s.release()
			if s.isClosed() {
				s.wg.Wait()
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn("accept failed", log.Fields{"err": err})
				continue
			}
			_ = s.Close()
			s.wg.Wait()
			return err
		}
		if !s.track(conn) {
			_ = conn.Close()
			s.release()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release()
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops the listener and closes every open connection. It is safe to
// call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	_ = c.Close()
}

func (s *Server) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}

// handleConn serves requests on one connection until the peer hangs up,
// the stream breaks, or a frame cannot be delimited.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.log.Debug("conn opened", log.Fields{"remote": remote})
	defer s.log.Debug("conn closed", log.Fields{"remote": remote})

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.opt.ReadTimeout)); err != nil {
			return
		}
		format, payload, err := wire.ReadFrame(conn)
		if err != nil {
			switch kverr.KindOf(err) {
			case kverr.Unknown: // io.EOF: peer closed between requests
			case kverr.TransportError:
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					s.log.Debug("conn idle timeout", log.Fields{"remote": remote})
				} else if !s.isClosed() {
					s.log.Warn("read failed", log.Fields{"remote": remote, "err": err})
				}
			default:
				// Bad length or format byte: answer once, then drop the
				// connection since the stream cannot be resynchronised.
				s.log.Debug("bad frame", log.Fields{"remote": remote, "err": err})
				s.respond(conn, wire.NewErrorResponse(err), wire.FormatXML)
			}
			return
		}

		var resp wire.Message
		if req, err := wire.Decode(payload, format); err != nil {
			s.log.Debug("bad request", log.Fields{"remote": remote, "err": err})
			resp = wire.NewErrorResponse(err)
		} else {
			resp = Handle(ctx, s.svc, req)
		}
		if !s.respond(conn, resp, format) {
			return
		}
	}
}

// respond writes resp in format f. A response the format cannot carry is
// replaced by an EncodingError response.
func (s *Server) respond(conn net.Conn, resp wire.Message, f wire.Format) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(s.opt.WriteTimeout)); err != nil {
		return false
	}
	err := wire.WriteMessage(conn, resp, f)
	if kverr.KindOf(err) == kverr.EncodingError {
		s.log.Debug("response not encodable", log.Fields{"format": f.String(), "err": err})
		err = wire.WriteMessage(conn, wire.NewErrorResponse(err), f)
	}
	if err != nil {
		if !s.isClosed() {
			s.log.Warn("write failed", log.Fields{"remote": conn.RemoteAddr().String(), "err": err})
		}
		return false
	}
	return true
}

// Handle runs one decoded request against svc and builds its response.
// Every failure becomes a text response; Handle never fails itself.
func Handle(ctx context.Context, svc Service, req wire.Message) wire.Message {
	key, ok := req.Key()
	if !ok {
		return wire.NewErrorResponse(kverr.E(kverr.FormatError, "server.handle"))
	}
	switch req.Type() {
	case wire.GetRequest:
		v, err := svc.Get(ctx, key)
		if err != nil {
			return wire.NewErrorResponse(err)
		}
		return wire.NewValueResponse(key, v)
	case wire.PutRequest:
		value, ok := req.Value()
		if !ok {
			return wire.NewErrorResponse(kverr.E(kverr.FormatError, "server.handle"))
		}
		if err := svc.Put(ctx, key, value); err != nil {
			return wire.NewErrorResponse(err)
		}
		return wire.NewSuccessResponse()
	case wire.DelRequest:
		if err := svc.Del(ctx, key); err != nil {
			return wire.NewErrorResponse(err)
		}
		return wire.NewSuccessResponse()
	}
	return wire.NewErrorResponse(kverr.E(kverr.FormatError, "server.handle"))
}
