// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for inputbus
// commands: fatal error reporting to stderr for errors that happen
// before (or after) the structured logger exists.
package process
