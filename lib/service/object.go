// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"sync"

	"github.com/inputbus/inputbus/lib/bus"
)

// Interface names handled by Base.
const (
	InterfaceIntrospectable = "org.freedesktop.DBus.Introspectable"
	InterfaceService        = "org.inputbus.Service"
)

// Base is the shared part of every published object.
type Base struct {
	path       bus.ObjectPath
	interfaces []Interface
	teardown   func()

	mu         sync.Mutex
	destroying bool
	destroyed  bool
	observers  []func()
}

// NewBase creates an object base for path. interfaces describe the
// embedding object's own vocabulary for Introspect; the base adds its
// own interfaces.
func NewBase(path bus.ObjectPath, interfaces ...Interface) *Base {
	return &Base{path: path, interfaces: interfaces}
}

// Path returns the object's path.
func (b *Base) Path() bus.ObjectPath { return b.path }

// SetTeardown installs the hook Destroy runs before notifying
// observers. The embedding object releases its resources there.
func (b *Base) SetTeardown(teardown func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.teardown = teardown
}

// Destroy tears the object down: the teardown hook runs, then every
// destroy observer fires. Later calls, including calls made by the
// teardown hook or an observer, do nothing.
func (b *Base) Destroy() {
	b.mu.Lock()
	if b.destroying {
		b.mu.Unlock()
		return
	}
	b.destroying = true
	teardown := b.teardown
	b.mu.Unlock()

	if teardown != nil {
		teardown()
	}

	b.mu.Lock()
	b.destroyed = true
	observers := b.observers
	b.observers = nil
	b.mu.Unlock()

	for _, observer := range observers {
		observer()
	}
}

// Destroyed reports whether Destroy has completed.
func (b *Base) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// OnDestroy registers fn to run once when the object is destroyed. If
// it already has been, fn runs before OnDestroy returns.
func (b *Base) OnDestroy(fn func()) {
	b.mu.Lock()
	if !b.destroyed {
		b.observers = append(b.observers, fn)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	fn()
}

// HandleMessage implements the fallback vocabulary shared by all
// objects. It reports false for anything else.
func (b *Base) HandleMessage(conn *bus.Connection, message *bus.Message) bool {
	switch {
	case message.IsMethodCall(InterfaceIntrospectable, "Introspect"):
		if err := message.Args(); err != nil {
			b.reply(conn, message, err)
			return true
		}
		b.reply(conn, message, nil, Introspect(b.path, b.interfaces, conn.Paths()))
		return true

	case message.IsMethodCall(InterfaceService, "Destroy"):
		if err := message.Args(); err != nil {
			b.reply(conn, message, err)
			return true
		}
		// Reply first: destruction may unpublish the object and
		// send final signals from its path.
		b.reply(conn, message, nil)
		conn.Logger().Debug("destroy requested by peer", "path", string(b.path))
		b.Destroy()
		return true
	}
	return false
}

func (b *Base) reply(conn *bus.Connection, call *bus.Message, replyErr error, args ...any) {
	var err error
	if replyErr != nil {
		err = conn.ReplyError(call, replyErr)
	} else {
		err = conn.Reply(call, args...)
	}
	if err != nil && !errors.Is(err, bus.ErrClosed) {
		conn.Logger().Warn("failed to send reply",
			"path", string(b.path),
			"call", call.String(),
			"error", err,
		)
	}
}

// Reply sends a success reply, logging rather than returning send
// failures: the request has been handled either way.
func (b *Base) Reply(conn *bus.Connection, call *bus.Message, args ...any) {
	b.reply(conn, call, nil, args...)
}

// ReplyError sends an error reply, logging send failures.
func (b *Base) ReplyError(conn *bus.Connection, call *bus.Message, replyErr error) {
	b.reply(conn, call, replyErr)
}
