// Package tcp serves the line protocol on a plain TCP listener.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wricardo/connectfour/game/protocol"
	"github.com/wricardo/connectfour/game/session"
)

// ServerFull is sent to connections rejected by the connection limit
const ServerFull = "Server full, try again later"

// Server accepts TCP clients and hands them to the gateway
type Server struct {
	addr    string
	gateway *session.Gateway
	slots   *semaphore.Weighted
}

// NewServer creates a server for addr. maxConns <= 0 means unlimited.
func NewServer(addr string, gateway *session.Gateway, maxConns int) *Server {
	s := &Server{addr: addr, gateway: gateway}
	if maxConns > 0 {
		s.slots = semaphore.NewWeighted(int64(maxConns))
	}
	return s
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. It returns nil on
// a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	log.Printf("[TCP] listening on %s", ln.Addr())

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Printf("[TCP] listener closed")
				return nil
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else if tempDelay *= 2; tempDelay > time.Second {
					tempDelay = time.Second
				}
				log.Printf("[TCP] accept error: %v; retrying in %v", err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		tempDelay = 0

		if s.slots != nil && !s.slots.TryAcquire(1) {
			log.Printf("[TCP] connection limit reached, rejecting %s", conn.RemoteAddr())
			go reject(conn)
			continue
		}

		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	if s.slots != nil {
		defer s.slots.Release(1)
	}
	s.gateway.Serve(ctx, session.NewNetConn(conn))
}

func reject(conn net.Conn) {
	defer conn.Close()
	c := session.NewNetConn(conn)
	c.WriteLine(protocol.Errorf("%s", ServerFull))
}
