// Package network accepts connections from other nodes and dispatches each
// framed envelope to the handler registered for its type.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrServerClosed is returned by Serve after Shutdown has been called.
var ErrServerClosed = errors.New("network: server closed")

// HandlerFunc processes one envelope. A non nil reply is written back on
// the same connection as a framed JSON value.
type HandlerFunc func(ctx context.Context, msg wire.Message) (any, error)

// Config represents the settings for the server.
type Config struct {
	MaxHandlers    int64         // Number of connections handled at the same time.
	AcceptRate     float64       // Connections accepted per second. Zero is unlimited.
	AcceptBurst    int           // Connections accepted in a burst above the rate.
	IOTimeout      time.Duration // Deadline for reading the request and writing a reply.
	MaxMessageSize int
	EvHandler      func(v string, args ...any)
}

// Server manages the accept loop and dispatch of inbound envelopes.
type Server struct {
	cfg      Config
	ev       func(v string, args ...any)
	limiter  *rate.Limiter
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	ln       net.Listener
}

// New constructs a server ready to have handlers registered.
func New(cfg Config) *Server {
	if cfg.MaxHandlers <= 0 {
		cfg.MaxHandlers = 64
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 10 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = wire.DefaultMaxMessageSize
	}

	ev := cfg.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	limit := rate.Inf
	if cfg.AcceptRate > 0 {
		limit = rate.Limit(cfg.AcceptRate)
	}
	burst := cfg.AcceptBurst
	if burst <= 0 {
		burst = int(cfg.MaxHandlers)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:      cfg,
		ev:       ev,
		limiter:  rate.NewLimiter(limit, burst),
		sem:      semaphore.NewWeighted(cfg.MaxHandlers),
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers the handler for the specified message type.
func (s *Server) Handle(typ string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[typ] = handler
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections on the listener until Shutdown is called.
// Each connection carries one envelope.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	if s.ctx.Err() != nil {
		ln.Close()
		return ErrServerClosed
	}

	s.ev("network: Serve: started: addr[%s]", ln.Addr())
	defer s.ev("network: Serve: completed")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return ErrServerClosed
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return err
		}

		if !s.limiter.Allow() {
			s.ev("network: Serve: remote[%s]: WARNING: accept rate exceeded, dropping connection", conn.RemoteAddr())
			conn.Close()
			continue
		}

		// Wait for a handler slot so the number of goroutines stays bounded.
		if err := s.sem.Acquire(s.ctx, 1); err != nil || s.ctx.Err() != nil {
			if err == nil {
				s.sem.Release(1)
			}
			conn.Close()
			return ErrServerClosed
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Shutdown stops accepting connections and waits for the handlers that are
// running to complete or the context to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.RLock()
	ln := s.ln
	s.mu.RUnlock()

	if ln != nil {
		ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleConn reads the envelope, runs the handler and writes any reply.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.sem.Release(1)
	defer conn.Close()

	v := Values{
		TraceID: uuid.NewString(),
		Remote:  conn.RemoteAddr().String(),
		Now:     time.Now().UTC(),
	}
	ctx := context.WithValue(s.ctx, key, &v)

	defer func() {
		if rec := recover(); rec != nil {
			s.ev("network: handleConn: traceid[%s]: remote[%s]: PANIC: %v: %s", v.TraceID, v.Remote, rec, debug.Stack())
		}
	}()

	conn.SetDeadline(v.Now.Add(s.cfg.IOTimeout))

	data, err := wire.ReadFrame(conn, s.cfg.MaxMessageSize)
	if err != nil {
		s.ev("network: handleConn: traceid[%s]: remote[%s]: read: ERROR: %s", v.TraceID, v.Remote, err)
		return
	}

	msg, err := wire.Parse(data)
	if err != nil {
		s.ev("network: handleConn: traceid[%s]: remote[%s]: malformed: ERROR: %s", v.TraceID, v.Remote, err)
		return
	}

	s.mu.RLock()
	handler, exists := s.handlers[msg.Type]
	s.mu.RUnlock()

	if !exists {
		s.ev("network: handleConn: traceid[%s]: remote[%s]: WARNING: unknown message type %q", v.TraceID, v.Remote, msg.Type)
		return
	}

	s.ev("network: handleConn: traceid[%s]: remote[%s]: type[%s]", v.TraceID, v.Remote, msg.Type)

	reply, err := handler(ctx, msg)
	if err != nil {
		s.ev("network: handleConn: traceid[%s]: remote[%s]: type[%s]: ERROR: %s", v.TraceID, v.Remote, msg.Type, err)
		return
	}

	if reply == nil {
		return
	}

	out, err := json.Marshal(reply)
	if err != nil {
		s.ev("network: handleConn: traceid[%s]: type[%s]: encode reply: ERROR: %s", v.TraceID, msg.Type, err)
		return
	}

	if err := wire.WriteFrame(conn, out, s.cfg.MaxMessageSize); err != nil {
		s.ev("network: handleConn: traceid[%s]: type[%s]: write reply: ERROR: %s", v.TraceID, msg.Type, err)
	}
}

// =============================================================================

// Listen opens a TCP listener on the host. When port is zero a free port is
// picked at random from the range [portMin, portMax]. When the range is
// empty the system picks the port.
func Listen(host string, port int, portMin int, portMax int) (net.Listener, error) {
	if port != 0 || portMin <= 0 || portMax < portMin {
		return net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	}

	n := portMax - portMin + 1
	start := rand.Intn(n)
	for i := 0; i < n; i++ {
		p := portMin + (start+i)%n

		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err == nil {
			return ln, nil
		}
	}

	return nil, fmt.Errorf("no free port in range %d-%d on %s", portMin, portMax, host)
}

// ListenerPort returns the port the listener is bound to.
func ListenerPort(ln net.Listener) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}
