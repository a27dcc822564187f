// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine defines what an input method engine is to the rest of
// inputbus, and provides the built-in engine types.
//
// An [Engine] is published at its own path on the connection that
// created it and must notify its destroy observers exactly once. A
// [Constructor] builds one from [Params]; the factory keeps a registry
// of constructors by type name. [Base] implements the engine side of
// the protocol (key events, focus, enable state, final Destroyed
// signal) so an engine type only supplies a [KeyHandler].
package engine
