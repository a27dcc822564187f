// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/inputbus/inputbus/lib/codec"
	"github.com/inputbus/inputbus/lib/netutil"
)

// writeTimeout bounds a single message write. A peer that stops
// reading for this long is treated as gone.
const writeTimeout = 10 * time.Second

// Object is anything published at a path on a connection.
// HandleMessage is called on the connection's read goroutine for every
// method call or signal addressed to the object's path, and reports
// whether the object handled it. An unhandled method call is answered
// with ErrorUnknownMethod by the connection.
type Object interface {
	HandleMessage(conn *Connection, message *Message) bool
}

// Connection is one bus connection: a transport, the objects published
// on it, and the calls awaiting replies.
type Connection struct {
	id     string
	conn   net.Conn
	logger *slog.Logger

	credentials    Credentials
	hasCredentials bool

	nextSerial atomic.Uint32

	// writeMu serializes encoder use. Messages are never interleaved.
	writeMu sync.Mutex
	encoder *codec.Encoder

	mu             sync.Mutex
	objects        map[ObjectPath]Object
	pending        map[uint32]chan *Message
	signalWatchers []func(*Message)
	closeObservers []func(*Connection)
	closed         bool
	observed       bool

	serving   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewConnection wraps an established transport. Call Serve to start
// dispatching incoming messages.
func NewConnection(conn net.Conn, logger *slog.Logger) *Connection {
	id := uuid.NewString()
	c := &Connection{
		id:      id,
		conn:    conn,
		logger:  logger.With("connection_id", id),
		encoder: codec.NewEncoder(conn),
		objects: make(map[ObjectPath]Object),
		pending: make(map[uint32]chan *Message),
		done:    make(chan struct{}),
	}
	c.credentials, c.hasCredentials = peerCredentials(conn)
	return c
}

// ID returns the connection's unique identifier, used in logs.
func (c *Connection) ID() string { return c.id }

// Logger returns the connection-scoped logger.
func (c *Connection) Logger() *slog.Logger { return c.logger }

// PeerCredentials returns the process credentials of the peer, when
// the transport is a Unix socket on a platform that reports them.
func (c *Connection) PeerCredentials() (Credentials, bool) {
	return c.credentials, c.hasCredentials
}

// RemoteAddr returns the transport's remote address.
func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Done is closed once the connection has shut down and every close
// observer has run.
func (c *Connection) Done() <-chan struct{} { return c.done }

// AddObject publishes object at path.
func (c *Connection) AddObject(path ObjectPath, object Object) error {
	if !path.IsValid() {
		return fmt.Errorf("adding object: invalid path %q", path)
	}
	if object == nil {
		return fmt.Errorf("adding object at %s: nil object", path)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.objects[path]; exists {
		return fmt.Errorf("adding object: path %s already in use", path)
	}
	c.objects[path] = object
	return nil
}

// RemoveObject retracts object from path. It reports false, and
// changes nothing, when a different object (or none) is published
// there.
func (c *Connection) RemoveObject(path ObjectPath, object Object) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, exists := c.objects[path]; !exists || current != object {
		return false
	}
	delete(c.objects, path)
	return true
}

// Object returns the object published at path, or nil.
func (c *Connection) Object(path ObjectPath) Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.objects[path]
}

// Paths returns the published paths in sorted order.
func (c *Connection) Paths() []ObjectPath {
	c.mu.Lock()
	paths := make([]ObjectPath, 0, len(c.objects))
	for path := range c.objects {
		paths = append(paths, path)
	}
	c.mu.Unlock()
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	return paths
}

// WatchSignals registers fn for every signal that no published object
// handles. fn runs on the read goroutine.
func (c *Connection) WatchSignals(fn func(*Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signalWatchers = append(c.signalWatchers, fn)
}

// OnClose registers fn to run once when the connection shuts down.
// Observers run in registration order after the read loop has ended.
// If the observers have already run, fn runs immediately.
func (c *Connection) OnClose(fn func(*Connection)) {
	c.mu.Lock()
	if !c.observed {
		c.closeObservers = append(c.closeObservers, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn(c)
}

// Send writes message, assigning its serial if unset, and returns the
// serial used.
func (c *Connection) Send(message *Message) (uint32, error) {
	if message.Serial == 0 {
		message.Serial = c.nextSerial.Add(1)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.isClosed() {
		return 0, ErrClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.encoder.Encode(message); err != nil {
		if netutil.IsExpectedCloseError(err) {
			return 0, ErrClosed
		}
		return 0, fmt.Errorf("sending %s: %w", message, err)
	}
	return message.Serial, nil
}

// Reply sends a method return for call.
func (c *Connection) Reply(call *Message, args ...any) error {
	reply, err := NewMethodReturn(call, args...)
	if err != nil {
		return fmt.Errorf("building reply to %s: %w", call, err)
	}
	_, err = c.Send(reply)
	return err
}

// ReplyError sends an error reply for call. A bus *Error keeps its
// name; any other error is sent as ErrorFailed.
func (c *Connection) ReplyError(call *Message, replyErr error) error {
	var busError *Error
	if errors.As(replyErr, &busError) {
		_, err := c.Send(NewErrorReply(call, busError.Name, busError.Message))
		return err
	}
	_, err := c.Send(NewErrorReply(call, ErrorFailed, replyErr.Error()))
	return err
}

// EmitSignal sends a signal from path.
func (c *Connection) EmitSignal(path ObjectPath, iface, member string, args ...any) error {
	signal, err := NewSignal(path, iface, member, args...)
	if err != nil {
		return fmt.Errorf("building signal %s.%s: %w", iface, member, err)
	}
	_, err = c.Send(signal)
	return err
}

// Call sends a method call and waits for its reply. An error reply is
// returned as *Error. If the connection closes first, Call returns an
// *Error named ErrorDisconnected.
func (c *Connection) Call(ctx context.Context, path ObjectPath, iface, member string, args ...any) (*Message, error) {
	call, err := NewMethodCall(path, iface, member, args...)
	if err != nil {
		return nil, err
	}
	return c.CallMessage(ctx, call)
}

// CallMessage sends a prepared method call and waits for its reply.
func (c *Connection) CallMessage(ctx context.Context, call *Message) (*Message, error) {
	call.Serial = c.nextSerial.Add(1)
	replyChannel := make(chan *Message, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[call.Serial] = replyChannel
	c.mu.Unlock()

	if _, err := c.Send(call); err != nil {
		c.dropPending(call.Serial)
		return nil, err
	}

	select {
	case reply := <-replyChannel:
		if reply.Type == TypeError {
			return reply, &Error{Name: reply.ErrorName, Message: reply.ErrorReplyText()}
		}
		return reply, nil
	case <-ctx.Done():
		c.dropPending(call.Serial)
		return nil, ctx.Err()
	}
}

func (c *Connection) dropPending(serial uint32) {
	c.mu.Lock()
	delete(c.pending, serial)
	c.mu.Unlock()
}

// Serve reads and dispatches messages until the peer hangs up, ctx is
// cancelled, Close is called, or the peer violates the protocol. It
// then shuts the connection down and runs the close observers. A
// normal hangup or cancellation returns nil.
func (c *Connection) Serve(ctx context.Context) error {
	if !c.serving.CompareAndSwap(false, true) {
		if c.isClosed() {
			<-c.done
			return nil
		}
		return fmt.Errorf("bus: connection %s already being served", c.id)
	}

	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			c.closeTransport()
		case <-readDone:
		}
	}()

	err := c.readLoop(ctx)
	c.shutdown()
	return err
}

func (c *Connection) readLoop(ctx context.Context) error {
	decoder := codec.NewDecoder(c.conn)
	for {
		var message Message
		if err := decoder.Decode(&message); err != nil {
			if ctx.Err() != nil || c.isClosed() || netutil.IsExpectedCloseError(err) {
				return nil
			}
			c.logger.Warn("decode failed, closing connection", "error", err)
			return fmt.Errorf("reading message: %w", err)
		}
		if err := message.validate(); err != nil {
			c.logger.Warn("protocol violation, closing connection",
				"message", message.String(),
				"error", err,
			)
			return fmt.Errorf("invalid message: %w", err)
		}
		c.dispatch(&message)
	}
}

func (c *Connection) dispatch(message *Message) {
	switch message.Type {
	case TypeMethodReturn, TypeError:
		c.mu.Lock()
		replyChannel, exists := c.pending[message.ReplySerial]
		delete(c.pending, message.ReplySerial)
		c.mu.Unlock()
		if !exists {
			c.logger.Debug("reply for unknown call", "reply_serial", message.ReplySerial)
			return
		}
		replyChannel <- message

	case TypeMethodCall:
		object := c.Object(message.Path)
		if object == nil {
			c.replyDispatchError(message, Errorf(ErrorUnknownObject, "no object at path %s", message.Path))
			return
		}
		if !object.HandleMessage(c, message) {
			c.replyDispatchError(message, Errorf(ErrorUnknownMethod,
				"no method %s.%s on %s", message.Interface, message.Member, message.Path))
		}

	case TypeSignal:
		if object := c.Object(message.Path); object != nil && object.HandleMessage(c, message) {
			return
		}
		c.mu.Lock()
		watchers := append([]func(*Message){}, c.signalWatchers...)
		c.mu.Unlock()
		for _, watcher := range watchers {
			watcher(message)
		}
	}
}

func (c *Connection) replyDispatchError(call *Message, replyErr *Error) {
	if err := c.ReplyError(call, replyErr); err != nil && !errors.Is(err, ErrClosed) {
		c.logger.Debug("failed to send error reply", "call", call.String(), "error", err)
	}
}

// Close shuts the connection down. It is safe to call more than once
// and from any goroutine. If Serve is running, Close returns without
// waiting for it; use Done to wait for the close observers.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.closeTransport()

	// Nobody is reading: finish the shutdown here, and make any later
	// Serve call return immediately.
	if c.serving.CompareAndSwap(false, true) {
		c.shutdown()
	}
	return nil
}

func (c *Connection) closeTransport() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// shutdown runs exactly once, from whichever of Serve or Close ends
// the connection.
func (c *Connection) shutdown() {
	c.closeTransport()

	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[uint32]chan *Message)
	c.mu.Unlock()

	for serial, replyChannel := range pending {
		replyChannel <- NewErrorReply(&Message{Serial: serial}, ErrorDisconnected, "connection closed")
	}

	// Observers may register further observers while running.
	for {
		c.mu.Lock()
		observers := c.closeObservers
		c.closeObservers = nil
		if len(observers) == 0 {
			c.observed = true
			c.mu.Unlock()
			break
		}
		c.mu.Unlock()
		for _, observer := range observers {
			observer(c)
		}
	}
	close(c.done)
	c.logger.Debug("connection closed")
}
