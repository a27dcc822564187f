// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by
// every inputbus component that touches the wire.
//
// A bus connection is a stream of self-delimiting CBOR values, one per
// message, so no extra framing is needed. Message arguments are
// encoded individually and carried as raw values inside the message
// envelope, which lets the receiver decode each argument into the type
// the method expects and reject anything else.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
//
// For buffer-oriented operations (individual arguments):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (connections):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Wire types carry `cbor` struct tags. Types that are also written to
// configuration files or CLI output carry `json` tags instead; the
// decoder falls back to them when no `cbor` tag is present.
package codec
