// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/inputbus/inputbus/lib/address"
	"github.com/inputbus/inputbus/lib/bus"
)

// Server accepts bus connections and forwards each to its Impl.
type Server struct {
	*bus.Listener

	logger *slog.Logger

	mu   sync.Mutex
	impl *Impl
}

// NewServer creates a server whose Impl prepares factories with setup.
func NewServer(setup SetupFunc, logger *slog.Logger) *Server {
	server := &Server{
		logger: logger,
		impl:   NewImpl(setup, logger),
	}
	server.Listener = bus.NewListener(server, logger)
	return server
}

// ListenResolved resolves the bus address (environment, then
// configured, then the default) and listens on it.
func (s *Server) ListenResolved(configured string) error {
	addr, err := address.Resolve(configured)
	if err != nil {
		return fmt.Errorf("resolving bus address: %w", err)
	}
	return s.Listen(addr)
}

// Impl returns the server's implementation object, or nil after Close.
func (s *Server) Impl() *Impl {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.impl
}

// NewConnection forwards conn to the Impl.
func (s *Server) NewConnection(conn *bus.Connection) {
	impl := s.Impl()
	if impl == nil {
		conn.Close()
		return
	}
	impl.NewConnection(conn)
}

// Close releases the Impl, destroying every factory and engine, then
// closes the listener.
func (s *Server) Close() error {
	s.mu.Lock()
	impl := s.impl
	s.impl = nil
	s.mu.Unlock()

	if impl != nil {
		impl.Close()
	}
	return s.Listener.Close()
}
