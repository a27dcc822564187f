// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"encoding/xml"
	"strings"

	"github.com/inputbus/inputbus/lib/bus"
)

// Interface describes one interface for introspection.
type Interface struct {
	Name    string   `xml:"name,attr"`
	Methods []Method `xml:"method"`
	Signals []Signal `xml:"signal"`
}

// Method describes one method.
type Method struct {
	Name string `xml:"name,attr"`
	Args []Arg  `xml:"arg"`
}

// Signal describes one signal.
type Signal struct {
	Name string `xml:"name,attr"`
	Args []Arg  `xml:"arg"`
}

// Arg describes one argument using D-Bus type signatures.
// Direction is "in" or "out" for methods and empty for signals.
type Arg struct {
	Name      string `xml:"name,attr,omitempty"`
	Type      string `xml:"type,attr"`
	Direction string `xml:"direction,attr,omitempty"`
}

type introspectionNode struct {
	XMLName    xml.Name           `xml:"node"`
	Name       string             `xml:"name,attr,omitempty"`
	Interfaces []Interface        `xml:"interface"`
	Children   []introspectionRef `xml:"node"`
}

type introspectionRef struct {
	Name string `xml:"name,attr"`
}

// baseInterfaces are handled by every Base.
var baseInterfaces = []Interface{
	{
		Name: InterfaceIntrospectable,
		Methods: []Method{
			{Name: "Introspect", Args: []Arg{{Name: "data", Type: "s", Direction: "out"}}},
		},
	},
	{
		Name:    InterfaceService,
		Methods: []Method{{Name: "Destroy"}},
	},
}

// Introspect renders the introspection document for the object at
// path with the given interfaces. published lists every path on the
// connection; direct children of path appear as child nodes.
func Introspect(path bus.ObjectPath, interfaces []Interface, published []bus.ObjectPath) string {
	node := introspectionNode{
		Name:       string(path),
		Interfaces: append(append([]Interface(nil), interfaces...), baseInterfaces...),
	}

	prefix := string(path) + "/"
	if path == "/" {
		prefix = "/"
	}
	seen := make(map[string]bool)
	for _, candidate := range published {
		rest, found := strings.CutPrefix(string(candidate), prefix)
		if !found || rest == "" {
			continue
		}
		child, _, _ := strings.Cut(rest, "/")
		if !seen[child] {
			seen[child] = true
			node.Children = append(node.Children, introspectionRef{Name: child})
		}
	}

	data, err := xml.MarshalIndent(node, "", "  ")
	if err != nil {
		// The node contains only strings.
		panic("service: rendering introspection: " + err.Error())
	}
	return introspectionDoctype + string(data) + "\n"
}

const introspectionDoctype = `<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN"
 "http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
`
