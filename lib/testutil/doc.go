// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for inputbus packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. Unix domain sockets have a 108-byte path limit
// (sun_path in sockaddr_un), which t.TempDir() paths can exceed.
//
// [RequireReceive], [RequireSend], and [RequireClosed] bound channel
// waits on replies, signals, and connection shutdown, and
// [RequireEventually] polls state changed on another goroutine. Tests
// pass [DefaultTimeout] unless they are exercising a timeout.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no inputbus-internal dependencies.
package testutil
