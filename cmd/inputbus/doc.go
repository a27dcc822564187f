// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Inputbus is the command-line client for inputbus-daemon. It connects
// to the bus, asks the connection's factory for engines, and drives
// them: mostly useful for inspecting a running daemon and exercising
// engine types by hand.
package main
