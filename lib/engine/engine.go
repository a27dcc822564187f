// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/inputbus/inputbus/lib/bus"
	"github.com/inputbus/inputbus/lib/service"
)

// InterfaceEngine is the engine method and signal vocabulary.
const InterfaceEngine = "org.inputbus.Engine"

// Engine is the capability every constructor must produce: an object
// published on a connection that can be destroyed and observed.
type Engine interface {
	bus.Object

	// Name is the registered type name the engine was created as.
	Name() string

	// Path is where the engine is published.
	Path() bus.ObjectPath

	// Destroy tears the engine down. Only the first call has effect.
	Destroy()

	// OnDestroy registers fn to run exactly once, after the engine's
	// teardown. fn runs immediately if the engine is already gone.
	OnDestroy(fn func())
}

// Params is everything a constructor needs.
type Params struct {
	Name       string
	Path       bus.ObjectPath
	Connection *bus.Connection
	Logger     *slog.Logger
}

// Constructor creates an engine. The returned engine must already be
// published at params.Path on params.Connection.
type Constructor func(params Params) Engine

// Modifier bits of a key event's state argument.
const (
	ShiftMask   uint32 = 1 << 0
	LockMask    uint32 = 1 << 1
	ControlMask uint32 = 1 << 2
	Mod1Mask    uint32 = 1 << 3
	ReleaseMask uint32 = 1 << 30
)

// KeyHandler is the type-specific part of an engine.
type KeyHandler interface {
	// ProcessKeyEvent reports whether the engine consumed the key.
	// It may commit text through the engine before returning.
	ProcessKeyEvent(engine *Base, keyval, keycode, state uint32) bool
}

// KeyHandlerFunc adapts a function to KeyHandler.
type KeyHandlerFunc func(engine *Base, keyval, keycode, state uint32) bool

// ProcessKeyEvent calls f.
func (f KeyHandlerFunc) ProcessKeyEvent(engine *Base, keyval, keycode, state uint32) bool {
	return f(engine, keyval, keycode, state)
}

var engineInterface = service.Interface{
	Name: InterfaceEngine,
	Methods: []service.Method{
		{Name: "ProcessKeyEvent", Args: []service.Arg{
			{Name: "keyval", Type: "u", Direction: "in"},
			{Name: "keycode", Type: "u", Direction: "in"},
			{Name: "state", Type: "u", Direction: "in"},
			{Name: "handled", Type: "b", Direction: "out"},
		}},
		{Name: "FocusIn"},
		{Name: "FocusOut"},
		{Name: "Reset"},
		{Name: "Enable"},
		{Name: "Disable"},
	},
	Signals: []service.Signal{
		{Name: "CommitText", Args: []service.Arg{{Name: "text", Type: "s"}}},
		{Name: "Destroyed"},
	},
}

// Base is a published engine. Engine types construct one with NewBase
// and their KeyHandler.
type Base struct {
	*service.Base

	name    string
	conn    *bus.Connection
	logger  *slog.Logger
	handler KeyHandler

	mu      sync.Mutex
	focused bool
	enabled bool
}

// NewBase creates an engine and publishes it at params.Path. It panics
// if the path is invalid or already in use.
func NewBase(params Params, handler KeyHandler) *Base {
	logger := params.Logger
	if logger == nil {
		logger = params.Connection.Logger()
	}
	engine := &Base{
		Base:    service.NewBase(params.Path, engineInterface),
		name:    params.Name,
		conn:    params.Connection,
		logger:  logger.With("engine", params.Name, "path", string(params.Path)),
		handler: handler,
	}
	engine.SetTeardown(engine.teardown)

	// Every path handed to a constructor is fresh, so failing to
	// publish is a programming error.
	if err := params.Connection.AddObject(params.Path, engine); err != nil {
		panic(fmt.Sprintf("engine.NewBase: publishing %s engine: %v", params.Name, err))
	}
	return engine
}

// Name returns the engine's type name.
func (e *Base) Name() string { return e.name }

// Focused reports whether the engine has input focus.
func (e *Base) Focused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focused
}

// Enabled reports whether the engine has been enabled by the client.
func (e *Base) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// CommitText sends text to the client as the CommitText signal.
func (e *Base) CommitText(text string) {
	if err := e.conn.EmitSignal(e.Path(), InterfaceEngine, "CommitText", text); err != nil && !errors.Is(err, bus.ErrClosed) {
		e.logger.Warn("failed to commit text", "error", err)
	}
}

// HandleMessage implements the engine vocabulary and falls back to the
// service base.
func (e *Base) HandleMessage(conn *bus.Connection, message *bus.Message) bool {
	if message.Type != bus.TypeMethodCall || message.Interface != InterfaceEngine {
		return e.Base.HandleMessage(conn, message)
	}

	switch message.Member {
	case "ProcessKeyEvent":
		var keyval, keycode, state uint32
		if err := message.Args(&keyval, &keycode, &state); err != nil {
			e.ReplyError(conn, message, err)
			return true
		}
		handled := false
		if e.handler != nil {
			handled = e.handler.ProcessKeyEvent(e, keyval, keycode, state)
		}
		e.Reply(conn, message, handled)
		return true

	case "FocusIn", "FocusOut", "Reset", "Enable", "Disable":
		if err := message.Args(); err != nil {
			e.ReplyError(conn, message, err)
			return true
		}
		e.mu.Lock()
		switch message.Member {
		case "FocusIn":
			e.focused = true
		case "FocusOut":
			e.focused = false
		case "Enable":
			e.enabled = true
		case "Disable":
			e.enabled = false
		}
		e.mu.Unlock()
		e.Reply(conn, message)
		return true
	}
	return e.Base.HandleMessage(conn, message)
}

// teardown sends the final Destroyed signal while the engine is still
// published, then unpublishes it.
func (e *Base) teardown() {
	if err := e.conn.EmitSignal(e.Path(), InterfaceEngine, "Destroyed"); err != nil && !errors.Is(err, bus.ErrClosed) {
		e.logger.Debug("failed to send destroyed signal", "error", err)
	}
	e.conn.RemoveObject(e.Path(), e)
	e.logger.Debug("engine destroyed")
}
