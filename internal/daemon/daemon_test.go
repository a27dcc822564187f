// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/inputbus/inputbus/lib/address"
	"github.com/inputbus/inputbus/lib/bus"
	"github.com/inputbus/inputbus/lib/bus/bustest"
	"github.com/inputbus/inputbus/lib/engine"
	"github.com/inputbus/inputbus/lib/factory"
	"github.com/inputbus/inputbus/lib/testutil"
)

const testTimeout = testutil.DefaultTimeout

func catalogSetup(t *testing.T, names ...string) SetupFunc {
	t.Helper()
	setup, err := EngineSetup(names, engine.Catalog())
	if err != nil {
		t.Fatalf("EngineSetup: %v", err)
	}
	return setup
}

// startServer listens on a fresh socket and serves until the test
// ends. The returned channel receives Serve's result.
func startServer(t *testing.T, setup SetupFunc) (*Server, <-chan error) {
	t.Helper()
	server := NewServer(setup, bustest.Logger())
	t.Setenv(address.EnvironmentVariable, "unix:path="+filepath.Join(testutil.SocketDir(t), "bus"))
	if err := server.ListenResolved("tcp:port=1"); err != nil {
		t.Fatalf("ListenResolved: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- server.Serve(ctx) }()
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return server, served
}

func waitForLen(t *testing.T, impl *Impl, want int) {
	t.Helper()
	testutil.RequireEventually(t, func() bool { return impl.Len() == want },
		testTimeout, "waiting for %d factories", want)
}

func TestEngineSetup(t *testing.T) {
	if _, err := EngineSetup([]string{"uppercase", "klingon"}, engine.Catalog()); err == nil {
		t.Error("EngineSetup accepted an unknown engine type")
	}

	server, _ := bustest.Pair(t)
	f, err := factory.New(server, bustest.Logger())
	if err != nil {
		t.Fatalf("factory.New: %v", err)
	}
	catalogSetup(t, "uppercase")(f)
	if _, err := f.CreateEngine("uppercase"); err != nil {
		t.Errorf("CreateEngine(uppercase): %v", err)
	}
	if _, err := f.CreateEngine("passthrough"); err == nil {
		t.Error("CreateEngine(passthrough) succeeded without registration")
	}

	// No names registers the whole catalog.
	other, _ := bustest.Pair(t)
	all, err := factory.New(other, bustest.Logger())
	if err != nil {
		t.Fatalf("factory.New: %v", err)
	}
	catalogSetup(t)(all)
	for _, name := range engine.CatalogNames() {
		if _, err := all.CreateEngine(name); err != nil {
			t.Errorf("CreateEngine(%s): %v", name, err)
		}
	}
}

func TestImplBindsOneFactoryPerConnection(t *testing.T) {
	impl := NewImpl(catalogSetup(t), bustest.Logger())
	first, _ := bustest.Pair(t)
	second, _ := bustest.Pair(t)

	impl.NewConnection(first)
	impl.NewConnection(second)
	if impl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", impl.Len())
	}
	if impl.Factory(first) == nil || impl.Factory(first) == impl.Factory(second) {
		t.Fatal("connections do not have distinct factories")
	}
	if impl.Factory(first).Connection() != first {
		t.Error("factory bound to the wrong connection")
	}

	bound := impl.Factory(first)
	first.Close()
	testutil.RequireClosed(t, first.Done(), testTimeout, "waiting for first connection")
	if impl.Len() != 1 || impl.Factory(first) != nil {
		t.Errorf("factory for closed connection still tracked")
	}
	if bound.Connection() != nil {
		t.Error("factory not destroyed when its connection closed")
	}

	impl.Close()
	if impl.Len() != 0 {
		t.Errorf("Len after Close = %d, want 0", impl.Len())
	}

	late, _ := bustest.Pair(t)
	impl.NewConnection(late)
	testutil.RequireClosed(t, late.Done(), testTimeout, "connection refused after Close")
	if impl.Len() != 0 {
		t.Error("connection accepted after Close")
	}
}

func TestClientSessionOverUnixSocket(t *testing.T) {
	server, _ := startServer(t, catalogSetup(t))
	impl := server.Impl()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	client, err := bus.Dial(ctx, server.Address(), bustest.Logger())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	signals := bustest.Signals(client)

	reply, err := client.Call(ctx, factory.Path, factory.Interface, "CreateEngine", "uppercase")
	if err != nil {
		t.Fatalf("CreateEngine: %v", err)
	}
	var path bus.ObjectPath
	if err := reply.Args(&path); err != nil {
		t.Fatalf("CreateEngine reply: %v", err)
	}
	if path != "/org/inputbus/Engine/1" {
		t.Errorf("path = %s, want /org/inputbus/Engine/1", path)
	}

	reply, err = client.Call(ctx, path, engine.InterfaceEngine, "ProcessKeyEvent", uint32('z'), uint32(0), uint32(0))
	if err != nil {
		t.Fatalf("ProcessKeyEvent: %v", err)
	}
	var handled bool
	if err := reply.Args(&handled); err != nil || !handled {
		t.Errorf("ProcessKeyEvent = (%v, %v), want handled", handled, err)
	}
	commit := testutil.RequireReceive(t, signals, testTimeout, "waiting for CommitText")
	var text string
	if err := commit.Args(&text); err != nil || text != "Z" {
		t.Errorf("CommitText = (%q, %v), want Z", text, err)
	}

	// A second client gets its own factory and its own numbering.
	other, err := bus.Dial(ctx, server.Address(), bustest.Logger())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer other.Close()
	reply, err = other.Call(ctx, factory.Path, factory.Interface, "CreateEngine", "passthrough")
	if err != nil {
		t.Fatalf("second client CreateEngine: %v", err)
	}
	if err := reply.Args(&path); err != nil || path != "/org/inputbus/Engine/1" {
		t.Errorf("second client path = (%s, %v), want /org/inputbus/Engine/1", path, err)
	}
	waitForLen(t, impl, 2)

	// Hanging up releases that client's factory and engines.
	client.Close()
	waitForLen(t, impl, 1)
}

func TestServerCloseDrainsConnections(t *testing.T) {
	server, served := startServer(t, catalogSetup(t))
	impl := server.Impl()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	client, err := bus.Dial(ctx, server.Address(), bustest.Logger())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	signals := bustest.Signals(client)
	if _, err := client.Call(ctx, factory.Path, factory.Interface, "CreateEngine", "passthrough"); err != nil {
		t.Fatalf("CreateEngine: %v", err)
	}

	if err := server.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := testutil.RequireReceive(t, served, testTimeout, "waiting for Serve"); err != nil {
		t.Errorf("Serve: %v", err)
	}
	if server.Impl() != nil {
		t.Error("Impl still set after Close")
	}
	if impl.Len() != 0 {
		t.Errorf("factories left after Close: %d", impl.Len())
	}

	destroyed := testutil.RequireReceive(t, signals, testTimeout, "waiting for Destroyed")
	if !destroyed.IsSignal(engine.InterfaceEngine, "Destroyed") {
		t.Errorf("signal = %s, want Destroyed", destroyed)
	}
	testutil.RequireClosed(t, client.Done(), testTimeout, "client sees hangup")
}
