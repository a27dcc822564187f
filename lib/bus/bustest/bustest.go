// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package bustest provides in-memory bus connections for tests.
package bustest

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/inputbus/inputbus/lib/bus"
)

// signalBuffer is large enough that a test never stalls the client's
// read loop by not draining signals.
const signalBuffer = 256

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Pair returns two connected, served connections over an in-memory
// pipe. Objects are published on server; client makes calls. Both are
// closed when the test ends.
func Pair(t *testing.T) (server, client *bus.Connection) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	logger := Logger()
	server = bus.NewConnection(serverSide, logger)
	client = bus.NewConnection(clientSide, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go server.Serve(ctx)
	go client.Serve(ctx)

	t.Cleanup(func() {
		cancel()
		server.Close()
		client.Close()
		<-server.Done()
		<-client.Done()
	})
	return server, client
}

// Signals returns a channel receiving every signal conn delivers to
// its signal watchers.
func Signals(conn *bus.Connection) <-chan *bus.Message {
	signals := make(chan *bus.Message, signalBuffer)
	conn.WatchSignals(func(message *bus.Message) {
		select {
		case signals <- message:
		default:
		}
	})
	return signals
}
