// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package bus

import "net"

func peerCredentials(net.Conn) (Credentials, bool) {
	return Credentials{}, false
}
