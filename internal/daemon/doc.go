// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon is the dispatch root of the inputbus daemon.
//
// A [Server] owns one bus listener and exactly one [Impl]. Every
// connection the listener accepts is forwarded to the Impl unchanged;
// the Server keeps no per-connection state. The Impl binds a fresh
// [factory.Factory] to each connection, runs the setup function that
// registers engine types on it, and destroys it when the connection
// closes.
package daemon
