// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/inputbus/inputbus/internal/daemon"
	"github.com/inputbus/inputbus/lib/address"
	"github.com/inputbus/inputbus/lib/bus/bustest"
	"github.com/inputbus/inputbus/lib/engine"
	"github.com/inputbus/inputbus/lib/testutil"
)

// startDaemon serves a daemon on a fresh socket and points
// INPUTBUS_ADDRESS at it.
func startDaemon(t *testing.T) {
	t.Helper()
	setup, err := daemon.EngineSetup(nil, engine.Catalog())
	if err != nil {
		t.Fatalf("EngineSetup: %v", err)
	}
	server := daemon.NewServer(setup, bustest.Logger())
	socket := filepath.Join(testutil.SocketDir(t), "bus")
	if err := server.Listen(address.Address{Transport: address.Unix, Path: socket}); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Setenv(address.EnvironmentVariable, server.Address().String())

	ctx, cancel := context.WithCancel(context.Background())
	go server.Serve(ctx)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := root(&stdout, &stderr).execute(args)
	return stdout.String(), err
}

func TestTypeThroughUppercaseEngine(t *testing.T) {
	startDaemon(t)

	output, err := execute(t, "type", "uppercase", "hi there!")
	if err != nil {
		t.Fatalf("type: %v", err)
	}
	if output != "HI THERE!\n" {
		t.Errorf("output = %q, want %q", output, "HI THERE!\n")
	}

	output, err = execute(t, "type", "passthrough", "hi")
	if err != nil {
		t.Fatalf("type passthrough: %v", err)
	}
	if output != "hi\n" {
		t.Errorf("passthrough output = %q", output)
	}
}

func TestTypeRawPrintsSignals(t *testing.T) {
	startDaemon(t)

	output, err := execute(t, "type", "--raw", "uppercase", "a")
	if err != nil {
		t.Fatalf("type --raw: %v", err)
	}
	want := `/org/inputbus/Engine/1 org.inputbus.Engine.CommitText("A")`
	if !strings.Contains(output, want) {
		t.Errorf("output %q does not contain %q", output, want)
	}
}

func TestCreateEngineAndIntrospect(t *testing.T) {
	startDaemon(t)

	output, err := execute(t, "create-engine", "uppercase")
	if err != nil {
		t.Fatalf("create-engine: %v", err)
	}
	if output != "/org/inputbus/Engine/1\n" {
		t.Errorf("create-engine output = %q", output)
	}

	if _, err := execute(t, "create-engine", "bogus"); err == nil || !strings.Contains(err.Error(), "can not create engine bogus") {
		t.Errorf("create-engine bogus: error = %v", err)
	}

	output, err = execute(t, "introspect")
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}
	if !strings.Contains(output, `<method name="CreateEngine">`) {
		t.Errorf("introspection lacks CreateEngine:\n%s", output)
	}
}

func TestCommandLineErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"frobnicate"},
		{"create-engine"},
		{"type", "uppercase"},
		{"introspect", "not-a-path"},
		{"create-engine", "--bogus", "x"},
	} {
		if _, err := execute(t, args...); err == nil {
			t.Errorf("execute(%v) succeeded", args)
		}
	}

	if _, err := execute(t, "--help"); err != nil {
		t.Errorf("--help: %v", err)
	}
	output, err := execute(t, "version")
	if err != nil || !strings.Contains(output, "Go:") {
		t.Errorf("version = (%q, %v)", output, err)
	}
}
