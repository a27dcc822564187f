// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package address

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Address
		network string
		target  string
	}{
		{
			name:    "unix path",
			input:   "unix:path=/run/inputbus/bus",
			want:    Address{Transport: Unix, Path: "/run/inputbus/bus"},
			network: "unix",
			target:  "/run/inputbus/bus",
		},
		{
			name:    "unix abstract with guid",
			input:   "unix:abstract=inputbus-1000,guid=abc",
			want:    Address{Transport: Unix, Abstract: "inputbus-1000", GUID: "abc"},
			network: "unix",
			target:  "@inputbus-1000",
		},
		{
			name:    "tcp",
			input:   "tcp:host=127.0.0.1,port=7301",
			want:    Address{Transport: TCP, Host: "127.0.0.1", Port: 7301},
			network: "tcp",
			target:  "127.0.0.1:7301",
		},
		{
			name:    "tcp default host",
			input:   "tcp:port=0",
			want:    Address{Transport: TCP, Host: "localhost", Port: 0},
			network: "tcp",
			target:  "localhost:0",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Parse(test.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", test.input, err)
			}
			if got != test.want {
				t.Errorf("Parse(%q) = %+v, want %+v", test.input, got, test.want)
			}
			network, target := got.Network()
			if network != test.network || target != test.target {
				t.Errorf("Network() = (%q, %q), want (%q, %q)", network, target, test.network, test.target)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"/run/inputbus/bus",
		"unix:",
		"unix:path=",
		"unix:path=/a,abstract=b",
		"unix:path=/a,path=/b",
		"unix:pathonly",
		"tcp:host=localhost",
		"tcp:port=notanumber",
		"tcp:port=70000",
		"pipe:name=x",
	} {
		if _, err := Parse(input); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) error = %v, want ErrMalformed", input, err)
		}
	}
}

func TestStringRoundTrips(t *testing.T) {
	for _, input := range []string{
		"unix:guid=0123,path=/tmp/bus",
		"unix:abstract=inputbus",
		"tcp:host=localhost,port=7301",
	} {
		parsed, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		if parsed.String() != input {
			t.Errorf("String() = %q, want %q", parsed.String(), input)
		}
	}
}

func TestWithGUIDDoesNotModifyReceiver(t *testing.T) {
	original := Address{Transport: Unix, Path: "/tmp/bus"}
	tagged := original.WithGUID("feed")
	if original.GUID != "" {
		t.Errorf("original GUID = %q, want empty", original.GUID)
	}
	if tagged.String() != "unix:guid=feed,path=/tmp/bus" {
		t.Errorf("tagged = %q", tagged.String())
	}
}

func TestResolvePrecedence(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	t.Setenv(EnvironmentVariable, "")
	got, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve default: %v", err)
	}
	if want := filepath.Join("/run/user/1000", "inputbus", "bus"); got.Path != want {
		t.Errorf("default path = %q, want %q", got.Path, want)
	}

	got, err = Resolve("tcp:port=7301")
	if err != nil {
		t.Fatalf("Resolve configured: %v", err)
	}
	if got.Transport != TCP || got.Port != 7301 {
		t.Errorf("configured = %+v, want tcp port 7301", got)
	}

	t.Setenv(EnvironmentVariable, "unix:abstract=from-env")
	got, err = Resolve("tcp:port=7301")
	if err != nil {
		t.Fatalf("Resolve environment: %v", err)
	}
	if got.Abstract != "from-env" {
		t.Errorf("environment override = %+v, want abstract from-env", got)
	}

	t.Setenv(EnvironmentVariable, "garbage")
	if _, err := Resolve(""); !errors.Is(err, ErrMalformed) {
		t.Errorf("Resolve with bad environment error = %v, want ErrMalformed", err)
	}
}
