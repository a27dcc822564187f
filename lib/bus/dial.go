// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/inputbus/inputbus/lib/address"
)

// dialTimeout bounds the connect phase of Dial.
const dialTimeout = 5 * time.Second

// Dial connects to the bus server at addr and starts the connection's
// read loop. Close the returned connection when done.
func Dial(ctx context.Context, addr address.Address, logger *slog.Logger) (*Connection, error) {
	network, target := addr.Network()
	if network == "" {
		return nil, fmt.Errorf("dialing %s: unsupported transport %q", addr, addr.Transport)
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	netConn, err := dialer.DialContext(ctx, network, target)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	conn := NewConnection(netConn, logger)
	go func() {
		if err := conn.Serve(context.Background()); err != nil {
			conn.Logger().Warn("client connection ended with error", "error", err)
		}
	}()
	return conn, nil
}
