// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small helpers for working with net.Conn.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, unexpected EOF from a peer that hung up mid-value,
// a closed connection, broken pipe, or connection reset. Bus
// connections see these whenever a client exits, so they are not
// logged as errors.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
