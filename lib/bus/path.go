// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"fmt"
	"strings"
)

// ObjectPath names an object on a connection. Valid paths are "/" or a
// sequence of "/"-prefixed, non-empty elements of [A-Za-z0-9_], with no
// trailing slash.
type ObjectPath string

// IsValid reports whether p is a syntactically valid object path.
func (p ObjectPath) IsValid() bool {
	text := string(p)
	if text == "/" {
		return true
	}
	if len(text) < 2 || text[0] != '/' || text[len(text)-1] == '/' {
		return false
	}
	for _, element := range strings.Split(text[1:], "/") {
		if element == "" {
			return false
		}
		for i := 0; i < len(element); i++ {
			c := element[i]
			if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_') {
				return false
			}
		}
	}
	return true
}

// Join appends one element to p. Join panics if the result is not a
// valid path: callers build paths from constants and counters, so an
// invalid result is a bug.
func (p ObjectPath) Join(element string) ObjectPath {
	var joined ObjectPath
	if p == "/" {
		joined = ObjectPath("/" + element)
	} else {
		joined = ObjectPath(string(p) + "/" + element)
	}
	if !joined.IsValid() {
		panic(fmt.Sprintf("bus: invalid object path %q", joined))
	}
	return joined
}
