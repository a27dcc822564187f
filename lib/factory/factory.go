// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package factory

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/inputbus/inputbus/lib/bus"
	"github.com/inputbus/inputbus/lib/engine"
	"github.com/inputbus/inputbus/lib/service"
)

const (
	// Path is where a factory is published on its connection.
	Path bus.ObjectPath = "/org/inputbus/Factory"

	// EnginePathBase is the parent path of every engine a factory
	// creates.
	EnginePathBase bus.ObjectPath = "/org/inputbus/Engine"

	// Interface is the factory method vocabulary.
	Interface = "org.inputbus.Factory"
)

// ErrUnknownEngine is returned by CreateEngine for a type name with no
// registered constructor.
var ErrUnknownEngine = errors.New("no such engine type")

var factoryInterface = service.Interface{
	Name: Interface,
	Methods: []service.Method{
		{Name: "CreateEngine", Args: []service.Arg{
			{Name: "engine_name", Type: "s", Direction: "in"},
			{Name: "path", Type: "o", Direction: "out"},
		}},
	},
}

// liveEngine is one engine the factory created and still owns.
type liveEngine struct {
	path   bus.ObjectPath
	engine engine.Engine
}

// Factory creates and tracks engines for one connection.
type Factory struct {
	*service.Base

	logger *slog.Logger

	// mu guards every field below. Engine destruction can be
	// triggered from any goroutine.
	mu        sync.Mutex
	conn      *bus.Connection
	registry  map[string]engine.Constructor
	idCounter uint64
	live      []liveEngine
}

// New creates a factory bound to conn and publishes it at Path. A nil
// connection is a programming error and panics.
func New(conn *bus.Connection, logger *slog.Logger) (*Factory, error) {
	if conn == nil {
		panic("factory.New: nil connection")
	}
	if logger == nil {
		logger = conn.Logger()
	}
	factory := &Factory{
		Base:     service.NewBase(Path, factoryInterface),
		logger:   logger,
		conn:     conn,
		registry: make(map[string]engine.Constructor),
	}
	factory.SetTeardown(factory.teardown)

	if err := conn.AddObject(Path, factory); err != nil {
		return nil, fmt.Errorf("publishing factory: %w", err)
	}
	return factory, nil
}

// AddEngine registers constructor under name, replacing any earlier
// registration of the same name. An empty name or nil constructor is
// a programming error and panics. Registration is meant for setup,
// before the connection starts serving; calling it concurrently with
// CreateEngine is safe but not ordered against it.
//
// Constructors run with the factory locked and must not call back into
// it. The engines they return are tracked by identity, so they must be
// pointer types.
func (f *Factory) AddEngine(name string, constructor engine.Constructor) {
	if name == "" {
		panic("factory.AddEngine: empty engine name")
	}
	if constructor == nil {
		panic(fmt.Sprintf("factory.AddEngine: nil constructor for engine %q", name))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registry == nil {
		panic("factory.AddEngine: factory destroyed")
	}
	f.registry[name] = constructor
}

// CreateEngine constructs an engine of the named type, publishes it at
// the next engine path, and returns that path. An unregistered name
// returns ErrUnknownEngine; nothing is created and no path is used up.
func (f *Factory) CreateEngine(name string) (bus.ObjectPath, error) {
	f.mu.Lock()
	if f.conn == nil {
		f.mu.Unlock()
		return "", fmt.Errorf("creating engine %q: factory destroyed", name)
	}
	constructor, exists := f.registry[name]
	if !exists {
		f.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}

	// Counter increment, construction, and insertion form one step
	// under the lock, so paths are unique and appear in live in
	// creation order.
	f.idCounter++
	path := EnginePathBase.Join(strconv.FormatUint(f.idCounter, 10))
	created := f.construct(constructor, engine.Params{
		Name:       name,
		Path:       path,
		Connection: f.conn,
		Logger:     f.logger,
	})
	if created == nil {
		f.idCounter--
		f.mu.Unlock()
		panic(fmt.Sprintf("factory: constructor for engine %q returned nil", name))
	}
	f.live = append(f.live, liveEngine{path: path, engine: created})
	f.mu.Unlock()

	// Subscribed outside the lock: an engine already destroyed by its
	// constructor notifies synchronously, and the observer locks.
	created.OnDestroy(func() { f.engineDestroyed(created) })

	f.logger.Info("engine created", "engine", name, "path", string(path))
	return path, nil
}

// construct runs constructor with f.mu held. A panicking constructor
// gives back its path number and releases the lock before the panic
// continues, so the factory stays usable by the recovering caller.
func (f *Factory) construct(constructor engine.Constructor, params engine.Params) engine.Engine {
	defer func() {
		if recovered := recover(); recovered != nil {
			f.idCounter--
			f.mu.Unlock()
			panic(recovered)
		}
	}()
	return constructor(params)
}

// engineDestroyed releases the factory's record of e. A second
// notification for the same engine finds nothing and does nothing.
func (f *Factory) engineDestroyed(e engine.Engine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, record := range f.live {
		if record.engine == e {
			f.live = append(f.live[:i], f.live[i+1:]...)
			f.logger.Debug("engine released", "path", string(record.path))
			return
		}
	}
}

// Engines returns the paths of the engines currently alive, in
// creation order.
func (f *Factory) Engines() []bus.ObjectPath {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]bus.ObjectPath, len(f.live))
	for i, record := range f.live {
		paths[i] = record.path
	}
	return paths
}

// Len returns the number of live engines.
func (f *Factory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// Connection returns the bound connection, or nil once the factory has
// been destroyed.
func (f *Factory) Connection() *bus.Connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn
}

// HandleMessage handles CreateEngine and passes everything else to the
// service base. Messages from any connection other than the bound one
// are a programming error and panic.
func (f *Factory) HandleMessage(conn *bus.Connection, message *bus.Message) bool {
	if bound := f.Connection(); bound != nil && bound != conn {
		panic(fmt.Sprintf("factory: message from connection %s delivered to factory bound to %s", conn.ID(), bound.ID()))
	}

	if !message.IsMethodCall(Interface, "CreateEngine") {
		return f.Base.HandleMessage(conn, message)
	}

	// Decode before touching the registry: a malformed request is
	// reported as such even when the name would also be unknown.
	var name string
	if err := message.Args(&name); err != nil {
		f.ReplyError(conn, message, bus.Errorf(bus.ErrorInvalidArgs, "the first argument must be the engine name: %v", err))
		return true
	}

	path, err := f.CreateEngine(name)
	if err != nil {
		f.logger.Debug("create engine failed", "engine", name, "error", err)
		f.ReplyError(conn, message, bus.Errorf(bus.ErrorFailed, "can not create engine %s", name))
		return true
	}
	f.Reply(conn, message, path)
	return true
}

// teardown destroys every live engine, then releases the registry and
// the connection. Engines are destroyed from a snapshot because each
// destruction removes its own record from live.
func (f *Factory) teardown() {
	f.mu.Lock()
	snapshot := make([]liveEngine, len(f.live))
	copy(snapshot, f.live)
	f.mu.Unlock()

	for _, record := range snapshot {
		record.engine.Destroy()
	}

	f.mu.Lock()
	remaining := len(f.live)
	f.live = nil
	f.registry = nil
	conn := f.conn
	f.conn = nil
	f.mu.Unlock()

	if remaining > 0 {
		f.logger.Warn("engines did not report destruction during factory teardown", "count", remaining)
	}
	if conn != nil {
		conn.RemoveObject(Path, f)
	}
	f.logger.Debug("factory destroyed")
}
