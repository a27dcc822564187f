// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"errors"
	"fmt"
)

// Error names carried in error replies.
const (
	// ErrorInvalidArgs reports a malformed request: wrong argument
	// count or argument type.
	ErrorInvalidArgs = "org.freedesktop.DBus.Error.InvalidArgs"

	// ErrorFailed reports a well-formed request that could not be
	// carried out.
	ErrorFailed = "org.freedesktop.DBus.Error.Failed"

	// ErrorUnknownMethod reports a method call no handler claimed.
	ErrorUnknownMethod = "org.freedesktop.DBus.Error.UnknownMethod"

	// ErrorUnknownObject reports a method call to a path with no
	// published object.
	ErrorUnknownObject = "org.freedesktop.DBus.Error.UnknownObject"

	// ErrorDisconnected is never sent on the wire. Pending calls
	// complete with it when the connection closes before a reply.
	ErrorDisconnected = "org.freedesktop.DBus.Error.Disconnected"
)

// Error is a named bus error. It is both the value returned by
// [Connection.Call] for error replies and the value handlers return to
// have a specific error name sent back.
type Error struct {
	Name    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

// Errorf builds an *Error with a formatted message.
func Errorf(name, format string, args ...any) *Error {
	return &Error{Name: name, Message: fmt.Sprintf(format, args...)}
}

// ErrorName returns the bus error name of err, or ErrorFailed when err
// is not a bus *Error.
func ErrorName(err error) string {
	var busError *Error
	if errors.As(err, &busError) {
		return busError.Name
	}
	return ErrorFailed
}

// IsError reports whether err is a bus *Error with the given name.
func IsError(err error, name string) bool {
	var busError *Error
	return errors.As(err, &busError) && busError.Name == name
}

// ErrClosed is returned by sends on a connection that has been closed.
var ErrClosed = errors.New("bus: connection closed")
