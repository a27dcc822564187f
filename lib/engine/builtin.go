// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"sort"
	"strings"
)

// NewPassthrough creates an engine that never consumes keys.
func NewPassthrough(params Params) Engine {
	return NewBase(params, nil)
}

// NewUppercase creates an engine that consumes unmodified printable
// ASCII key presses and commits them upper-cased.
func NewUppercase(params Params) Engine {
	return NewBase(params, KeyHandlerFunc(uppercaseKey))
}

func uppercaseKey(engine *Base, keyval, _, state uint32) bool {
	if state&(ReleaseMask|ControlMask|Mod1Mask) != 0 {
		return false
	}
	// Keysyms for printable Latin-1 ASCII equal their code points.
	if keyval < 0x20 || keyval > 0x7e {
		return false
	}
	engine.CommitText(strings.ToUpper(string(rune(keyval))))
	return true
}

// Catalog returns the built-in engine types by name. Each call returns
// a fresh map the caller may modify.
func Catalog() map[string]Constructor {
	return map[string]Constructor{
		"passthrough": NewPassthrough,
		"uppercase":   NewUppercase,
	}
}

// CatalogNames returns the built-in type names in sorted order.
func CatalogNames() []string {
	catalog := Catalog()
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
