// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the base every inputbus object builds on.
//
// An object (a factory, an engine) is published at a path on one bus
// connection. [Base] supplies what all of them share:
//
//   - Lifecycle: Destroy runs the owner's teardown hook once, then
//     fires every destroy observer exactly once. Observers registered
//     after destruction fire immediately. Owners use this to learn that
//     an object they track has gone away, whoever destroyed it.
//   - Fallback dispatch: Introspect (describes the object's interfaces)
//     and Destroy (lets the remote peer tear the object down). Objects
//     handle their own vocabulary first and hand everything else to
//     [Base.HandleMessage].
//
// Objects embed *Base rather than subclassing a framework; the teardown
// hook is how an embedding type extends destruction.
package service
