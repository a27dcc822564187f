// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Inputbus-daemon is the input method bus server. It listens on one bus
// address, gives every client connection its own engine factory at
// /org/inputbus/Factory, and destroys that factory along with its
// engines when the client disconnects.
//
// Configuration comes from the file named by --config or
// INPUTBUS_CONFIG, falling back to built-in defaults. The listening
// address is, in order of precedence: --address, INPUTBUS_ADDRESS, the
// configured bus.address, and a socket under $XDG_RUNTIME_DIR.
package main
