// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package address parses, formats, and resolves bus addresses.
//
// A bus address names a transport and its parameters in the form
// "transport:key=value,key=value". Three transports are supported:
//
//	unix:path=/run/user/1000/inputbus/bus
//	unix:abstract=inputbus-1000
//	tcp:host=127.0.0.1,port=7301
//
// The optional guid key identifies one listening server instance. A
// server adds it when advertising its address; parsing ignores it for
// the purpose of binding or dialing.
package address

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Transport identifies how a bus address is reached.
type Transport string

const (
	// Unix is a Unix domain socket, either filesystem or abstract.
	Unix Transport = "unix"
	// TCP is a TCP socket.
	TCP Transport = "tcp"
)

// EnvironmentVariable overrides every other address source.
const EnvironmentVariable = "INPUTBUS_ADDRESS"

// Address is a parsed bus address.
type Address struct {
	Transport Transport

	// Path is the filesystem socket path (unix:path=).
	Path string

	// Abstract is the abstract socket name without the leading NUL
	// (unix:abstract=). Linux only.
	Abstract string

	// Host and Port are the tcp parameters.
	Host string
	Port int

	// GUID identifies the server instance. Empty when unknown.
	GUID string
}

// ErrMalformed is wrapped by every Parse failure.
var ErrMalformed = errors.New("malformed bus address")

// Parse parses a single bus address.
func Parse(text string) (Address, error) {
	transport, rest, found := strings.Cut(strings.TrimSpace(text), ":")
	if !found || transport == "" {
		return Address{}, fmt.Errorf("%w %q: missing transport prefix", ErrMalformed, text)
	}

	parameters := make(map[string]string)
	if rest != "" {
		for _, pair := range strings.Split(rest, ",") {
			key, value, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				return Address{}, fmt.Errorf("%w %q: bad parameter %q", ErrMalformed, text, pair)
			}
			if _, duplicate := parameters[key]; duplicate {
				return Address{}, fmt.Errorf("%w %q: duplicate parameter %q", ErrMalformed, text, key)
			}
			parameters[key] = value
		}
	}

	address := Address{Transport: Transport(transport), GUID: parameters["guid"]}

	switch address.Transport {
	case Unix:
		path, hasPath := parameters["path"]
		abstract, hasAbstract := parameters["abstract"]
		switch {
		case hasPath && hasAbstract:
			return Address{}, fmt.Errorf("%w %q: path and abstract are mutually exclusive", ErrMalformed, text)
		case hasPath:
			if path == "" {
				return Address{}, fmt.Errorf("%w %q: empty path", ErrMalformed, text)
			}
			address.Path = path
		case hasAbstract:
			if abstract == "" {
				return Address{}, fmt.Errorf("%w %q: empty abstract name", ErrMalformed, text)
			}
			address.Abstract = abstract
		default:
			return Address{}, fmt.Errorf("%w %q: unix transport needs path or abstract", ErrMalformed, text)
		}
	case TCP:
		address.Host = parameters["host"]
		if address.Host == "" {
			address.Host = "localhost"
		}
		portText, hasPort := parameters["port"]
		if !hasPort {
			return Address{}, fmt.Errorf("%w %q: tcp transport needs port", ErrMalformed, text)
		}
		port, err := strconv.Atoi(portText)
		if err != nil || port < 0 || port > 65535 {
			return Address{}, fmt.Errorf("%w %q: invalid port %q", ErrMalformed, text, portText)
		}
		address.Port = port
	default:
		return Address{}, fmt.Errorf("%w %q: unsupported transport %q", ErrMalformed, text, transport)
	}

	return address, nil
}

// String formats the address in bus address syntax. Parameters are
// emitted in sorted key order so equal addresses format identically.
func (a Address) String() string {
	parameters := make(map[string]string)
	switch a.Transport {
	case Unix:
		if a.Abstract != "" {
			parameters["abstract"] = a.Abstract
		} else {
			parameters["path"] = a.Path
		}
	case TCP:
		parameters["host"] = a.Host
		parameters["port"] = strconv.Itoa(a.Port)
	}
	if a.GUID != "" {
		parameters["guid"] = a.GUID
	}

	keys := make([]string, 0, len(parameters))
	for key := range parameters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(string(a.Transport))
	builder.WriteByte(':')
	for i, key := range keys {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(key)
		builder.WriteByte('=')
		builder.WriteString(parameters[key])
	}
	return builder.String()
}

// Network returns the net package network name and address string for
// listening on or dialing this address.
func (a Address) Network() (network, target string) {
	switch a.Transport {
	case Unix:
		if a.Abstract != "" {
			return "unix", "@" + a.Abstract
		}
		return "unix", a.Path
	case TCP:
		return "tcp", net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
	}
	return "", ""
}

// WithGUID returns a copy of the address carrying guid.
func (a Address) WithGUID(guid string) Address {
	a.GUID = guid
	return a
}

// Default returns the address used when neither the environment nor
// configuration names one: a socket under $XDG_RUNTIME_DIR, or under a
// per-user directory in /tmp when that is unset.
func Default() Address {
	runtimeDirectory := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDirectory == "" {
		runtimeDirectory = filepath.Join(os.TempDir(), fmt.Sprintf("inputbus-%d", os.Getuid()))
		return Address{Transport: Unix, Path: filepath.Join(runtimeDirectory, "bus")}
	}
	return Address{Transport: Unix, Path: filepath.Join(runtimeDirectory, "inputbus", "bus")}
}

// Resolve picks the bus address: the INPUTBUS_ADDRESS environment
// variable if set, else configured if non-empty, else Default.
func Resolve(configured string) (Address, error) {
	if fromEnvironment := os.Getenv(EnvironmentVariable); fromEnvironment != "" {
		address, err := Parse(fromEnvironment)
		if err != nil {
			return Address{}, fmt.Errorf("%s: %w", EnvironmentVariable, err)
		}
		return address, nil
	}
	if configured != "" {
		return Parse(configured)
	}
	return Default(), nil
}
