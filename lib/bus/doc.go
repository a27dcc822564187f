// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package bus implements the inputbus message transport: the wire
// message vocabulary, connections that route method calls to objects
// published at paths, a listener that accepts connections, and a
// client dialer.
//
// The model follows D-Bus peer-to-peer connections. Each connection
// carries method calls, method returns, errors, and signals, each
// encoded as one CBOR value (see lib/codec). Objects are published on
// a connection at an [ObjectPath]; a method call names the path, the
// interface, and the member, and the connection hands the message to
// the object published at that path.
//
// # Ordering
//
// [Connection.Serve] is the only reader of a connection and dispatches
// every message on its own goroutine, in arrival order. Handlers for
// one connection therefore never run concurrently with each other,
// which is what lets per-connection state (a factory's id counter and
// its live engine list) avoid cross-request races. Handlers must not
// block waiting for another message on the same connection.
//
// # Errors
//
// Error replies carry a D-Bus style error name and a one-string body.
// [Connection.Call] returns them as *[Error]; use errors.As to inspect
// the name.
package bus
