// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package bus

import (
	"net"

	"golang.org/x/sys/unix"
)

// peerCredentials reads SO_PEERCRED from a Unix socket.
func peerCredentials(conn net.Conn) (Credentials, bool) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return Credentials{}, false
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return Credentials{}, false
	}

	var ucred *unix.Ucred
	var sockoptErr error
	if err := raw.Control(func(fd uintptr) {
		ucred, sockoptErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil || sockoptErr != nil {
		return Credentials{}, false
	}
	return Credentials{PID: ucred.Pid, UID: ucred.Uid, GID: ucred.Gid}, true
}
