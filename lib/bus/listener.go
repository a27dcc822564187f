// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inputbus/inputbus/lib/address"
)

// ConnectionHandler receives every connection a Listener accepts.
type ConnectionHandler interface {
	// NewConnection is called exactly once per accepted connection,
	// before the connection reads its first message.
	NewConnection(conn *Connection)
}

// ConnectionHandlerFunc adapts a function to ConnectionHandler.
type ConnectionHandlerFunc func(conn *Connection)

// NewConnection calls f(conn).
func (f ConnectionHandlerFunc) NewConnection(conn *Connection) { f(conn) }

// staleDialTimeout bounds the dial used to decide whether an existing
// socket file belongs to a live server.
const staleDialTimeout = time.Second

// Listener accepts bus connections on one address and hands each to
// its ConnectionHandler.
type Listener struct {
	handler    ConnectionHandler
	logger     *slog.Logger
	guid       string
	socketMode os.FileMode

	mu          sync.Mutex
	listener    net.Listener
	address     address.Address
	socketPath  string
	connections map[*Connection]struct{}

	// activeConnections tracks running read loops. Serve waits for
	// all of them before returning.
	activeConnections sync.WaitGroup
}

// NewListener creates a listener that reports connections to handler.
func NewListener(handler ConnectionHandler, logger *slog.Logger) *Listener {
	return &Listener{
		handler:     handler,
		logger:      logger,
		guid:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		connections: make(map[*Connection]struct{}),
	}
}

// SetSocketMode sets the permission bits applied to a filesystem
// socket after binding. Zero leaves the umask-derived mode.
func (l *Listener) SetSocketMode(mode os.FileMode) { l.socketMode = mode }

// GUID identifies this listener instance in its advertised address.
func (l *Listener) GUID() string { return l.guid }

// Listen binds addr. It does not retry: a bind failure (address in
// use, permission denied, unsupported address) is returned as is.
func (l *Listener) Listen(addr address.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener != nil {
		return fmt.Errorf("listener already bound to %s", l.address)
	}

	network, target := addr.Network()
	if network == "" {
		return fmt.Errorf("listening on %s: unsupported transport %q", addr, addr.Transport)
	}

	if addr.Transport == address.Unix && addr.Path != "" {
		if err := prepareSocketPath(addr.Path); err != nil {
			return err
		}
	}

	listener, err := net.Listen(network, target)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	bound := addr.WithGUID(l.guid)
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		bound.Port = tcpAddr.Port
	}
	if addr.Transport == address.Unix && addr.Path != "" {
		l.socketPath = addr.Path
		if l.socketMode != 0 {
			if err := os.Chmod(addr.Path, l.socketMode); err != nil {
				listener.Close()
				os.Remove(addr.Path)
				return fmt.Errorf("setting mode on %s: %w", addr.Path, err)
			}
		}
	}

	l.listener = listener
	l.address = bound
	return nil
}

// prepareSocketPath creates the socket's parent directory and removes
// a socket file left behind by a server that is no longer running. A
// socket that still accepts connections is reported as in use.
func prepareSocketPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating socket directory for %s: %w", path, err)
	}
	if _, err := os.Lstat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking socket %s: %w", path, err)
	}
	existing, err := net.DialTimeout("unix", path, staleDialTimeout)
	if err == nil {
		existing.Close()
		return fmt.Errorf("listening on %s: address already in use", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	return nil
}

// Address returns the bound address including the listener GUID and,
// for TCP, the port actually bound. Zero before Listen succeeds.
func (l *Listener) Address() address.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.address
}

// Serve accepts connections until ctx is cancelled or Close is called.
// Each accepted connection is reported to the handler and then served
// on its own goroutine. On return every connection has been closed and
// its read loop has finished, and a filesystem socket has been removed.
func (l *Listener) Serve(ctx context.Context) error {
	l.mu.Lock()
	listener := l.listener
	bound := l.address
	l.mu.Unlock()
	if listener == nil {
		return errors.New("serve called before listen")
	}

	defer func() {
		l.mu.Lock()
		socketPath := l.socketPath
		l.mu.Unlock()
		if socketPath != "" {
			os.Remove(socketPath)
		}
	}()

	stopAccepting := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-stopAccepting:
		}
	}()

	l.logger.Info("bus listening", "address", bound.String())

	for {
		netConn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			l.logger.Error("accept failed", "error", err)
			continue
		}
		l.accept(ctx, netConn)
	}
	close(stopAccepting)

	l.mu.Lock()
	open := make([]*Connection, 0, len(l.connections))
	for conn := range l.connections {
		open = append(open, conn)
	}
	l.mu.Unlock()
	for _, conn := range open {
		conn.Close()
	}

	l.activeConnections.Wait()
	return nil
}

func (l *Listener) accept(ctx context.Context, netConn net.Conn) {
	conn := NewConnection(netConn, l.logger)
	if credentials, ok := conn.PeerCredentials(); ok {
		conn.Logger().Info("connection accepted",
			"peer_pid", credentials.PID,
			"peer_uid", credentials.UID,
		)
	} else {
		conn.Logger().Info("connection accepted", "remote", netConn.RemoteAddr().String())
	}

	l.mu.Lock()
	l.connections[conn] = struct{}{}
	l.mu.Unlock()

	l.handler.NewConnection(conn)

	l.activeConnections.Add(1)
	go func() {
		defer l.activeConnections.Done()
		if err := conn.Serve(ctx); err != nil {
			conn.Logger().Warn("connection ended with error", "error", err)
		}
		<-conn.Done()
		l.mu.Lock()
		delete(l.connections, conn)
		l.mu.Unlock()
	}()
}

// Close stops accepting connections. A running Serve then closes the
// open connections and returns.
func (l *Listener) Close() error {
	l.mu.Lock()
	listener := l.listener
	l.mu.Unlock()
	if listener == nil {
		return nil
	}
	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
