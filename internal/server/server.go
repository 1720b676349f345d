// Package server implements the TCP side of the transfer engine: a
// connection dispatcher that runs one session worker per accepted
// connection, and the per-connection command state machine.
package server

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"filehub/internal/config"
	"filehub/internal/storage"
)

// Server accepts TCP connections and serves each one with an independent
// session goroutine. Workers share nothing but the storage namespace;
// rename atomicity inside the store is the only cross-worker coordination.
type Server struct {
	cfg   config.ServerConfig
	store *storage.Store
	log   logrus.FieldLogger

	listener net.Listener

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// New creates a server over an opened storage namespace.
func New(cfg config.ServerConfig, store *storage.Store, log logrus.FieldLogger) *Server {
	return &Server{
		cfg:   cfg,
		store: store,
		log:   log.WithField("component", "server"),
		conns: make(map[net.Conn]struct{}),
	}
}

// Listen binds the configured address without accepting yet, so callers can
// learn the bound address (":0" in tests) before serving.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = listener
	s.log.WithField("addr", listener.Addr().String()).Info("Server listening")
	return nil
}

// Addr returns the bound listen address. It is nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the accept loop until Close. Each accepted connection gets its
// own worker goroutine; there is no admission control.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.WithError(err).Error("Failed to accept connection")
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return nil
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)

			sess := newSession(conn, s.store, s.cfg.IdleTimeout, s.log)
			sess.run()
		}()
	}
}

// Close stops the accept loop and closes every live connection, which
// unblocks any session stuck in a read or write.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}
