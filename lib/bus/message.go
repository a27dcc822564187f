// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"fmt"
	"reflect"

	"github.com/inputbus/inputbus/lib/codec"
)

// MessageType distinguishes the four kinds of bus message.
type MessageType string

const (
	TypeMethodCall   MessageType = "method_call"
	TypeMethodReturn MessageType = "method_return"
	TypeError        MessageType = "error"
	TypeSignal       MessageType = "signal"
)

// Message is the wire envelope. Body holds each argument encoded as its
// own CBOR value so receivers can decode arguments into the types the
// method declares.
type Message struct {
	Type        MessageType        `cbor:"type"`
	Serial      uint32             `cbor:"serial"`
	ReplySerial uint32             `cbor:"reply_serial,omitempty"`
	Path        ObjectPath         `cbor:"path,omitempty"`
	Interface   string             `cbor:"interface,omitempty"`
	Member      string             `cbor:"member,omitempty"`
	ErrorName   string             `cbor:"error_name,omitempty"`
	Body        []codec.RawMessage `cbor:"body,omitempty"`
}

// NewMethodCall builds a method call. The serial is assigned on send.
func NewMethodCall(path ObjectPath, iface, member string, args ...any) (*Message, error) {
	message := &Message{
		Type:      TypeMethodCall,
		Path:      path,
		Interface: iface,
		Member:    member,
	}
	if err := message.AppendArgs(args...); err != nil {
		return nil, err
	}
	return message, nil
}

// NewMethodReturn builds the success reply to call.
func NewMethodReturn(call *Message, args ...any) (*Message, error) {
	message := &Message{
		Type:        TypeMethodReturn,
		ReplySerial: call.Serial,
	}
	if err := message.AppendArgs(args...); err != nil {
		return nil, err
	}
	return message, nil
}

// NewErrorReply builds an error reply to call. The body is a single
// string holding the message.
func NewErrorReply(call *Message, name, text string) *Message {
	encoded, err := codec.Marshal(text)
	if err != nil {
		// Strings always encode.
		panic("bus: encoding error text: " + err.Error())
	}
	return &Message{
		Type:        TypeError,
		ReplySerial: call.Serial,
		ErrorName:   name,
		Body:        []codec.RawMessage{encoded},
	}
}

// NewSignal builds a signal emitted from path.
func NewSignal(path ObjectPath, iface, member string, args ...any) (*Message, error) {
	message := &Message{
		Type:      TypeSignal,
		Path:      path,
		Interface: iface,
		Member:    member,
	}
	if err := message.AppendArgs(args...); err != nil {
		return nil, err
	}
	return message, nil
}

// AppendArgs encodes each value and appends it to the body.
func (m *Message) AppendArgs(args ...any) error {
	for i, arg := range args {
		encoded, err := codec.Marshal(arg)
		if err != nil {
			return fmt.Errorf("encoding argument %d: %w", i, err)
		}
		m.Body = append(m.Body, encoded)
	}
	return nil
}

// Args decodes the body into targets, which must be pointers. The body
// must hold exactly len(targets) arguments and each must decode into
// its target's type; otherwise Args returns an *Error named
// ErrorInvalidArgs and the targets are left in an unspecified state.
func (m *Message) Args(targets ...any) error {
	if len(m.Body) != len(targets) {
		return Errorf(ErrorInvalidArgs, "expected %d argument(s), got %d", len(targets), len(m.Body))
	}
	for i, target := range targets {
		if isNull(m.Body[i]) && !acceptsNull(target) {
			return Errorf(ErrorInvalidArgs, "argument %d: null for %T", i, target)
		}
		if err := codec.Unmarshal(m.Body[i], target); err != nil {
			return Errorf(ErrorInvalidArgs, "argument %d: %v", i, err)
		}
	}
	return nil
}

// isNull reports whether raw is CBOR null or undefined. Decoding
// either leaves the target untouched without error.
func isNull(raw codec.RawMessage) bool {
	return len(raw) == 1 && (raw[0] == 0xf6 || raw[0] == 0xf7)
}

// acceptsNull reports whether target points at a type with a nil
// value: pointers, maps, slices, and interfaces.
func acceptsNull(target any) bool {
	value := reflect.ValueOf(target)
	if value.Kind() != reflect.Pointer || value.IsNil() {
		return false
	}
	switch value.Elem().Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	}
	return false
}

// IsMethodCall reports whether m is a call to iface.member.
func (m *Message) IsMethodCall(iface, member string) bool {
	return m.Type == TypeMethodCall && m.Interface == iface && m.Member == member
}

// IsSignal reports whether m is the signal iface.member.
func (m *Message) IsSignal(iface, member string) bool {
	return m.Type == TypeSignal && m.Interface == iface && m.Member == member
}

// ErrorReplyText returns the message carried by an error reply, or ""
// if the body does not hold one string.
func (m *Message) ErrorReplyText() string {
	var text string
	if len(m.Body) != 1 || codec.Unmarshal(m.Body[0], &text) != nil {
		return ""
	}
	return text
}

// String formats the routing fields for logs.
func (m *Message) String() string {
	switch m.Type {
	case TypeMethodReturn:
		return fmt.Sprintf("method_return serial=%d reply_serial=%d", m.Serial, m.ReplySerial)
	case TypeError:
		return fmt.Sprintf("error serial=%d reply_serial=%d name=%s", m.Serial, m.ReplySerial, m.ErrorName)
	default:
		return fmt.Sprintf("%s serial=%d path=%s member=%s.%s", m.Type, m.Serial, m.Path, m.Interface, m.Member)
	}
}

// validate checks the fields each message type requires.
func (m *Message) validate() error {
	switch m.Type {
	case TypeMethodCall, TypeSignal:
		if !m.Path.IsValid() {
			return fmt.Errorf("invalid path %q", m.Path)
		}
		if m.Member == "" {
			return fmt.Errorf("missing member")
		}
		if m.Type == TypeSignal && m.Interface == "" {
			return fmt.Errorf("signal missing interface")
		}
	case TypeMethodReturn:
		if m.ReplySerial == 0 {
			return fmt.Errorf("method return missing reply_serial")
		}
	case TypeError:
		if m.ReplySerial == 0 {
			return fmt.Errorf("error missing reply_serial")
		}
		if m.ErrorName == "" {
			return fmt.Errorf("error missing error_name")
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}
