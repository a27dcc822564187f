// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package factory implements the per-connection engine factory.
//
// A [Factory] is bound to exactly one bus connection for its whole
// life and published on it at [Path]. Setup code registers engine
// types by name with [Factory.AddEngine]; a peer then calls
// CreateEngine with a type name and receives the path of a freshly
// constructed engine published on the same connection.
//
// Engine paths are [EnginePathBase]/N where N counts successful
// creations on this factory, starting at 1. Numbers are never reused
// and a failed request never consumes one.
//
// The factory owns every engine it created until that engine reports
// its own destruction through its destroy observer, whether the peer,
// the engine, or local code triggered it. Destroying the factory
// destroys every engine still alive, before the factory lets go of
// the connection, so engines can still send their final signals.
package factory
