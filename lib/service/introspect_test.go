// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/inputbus/inputbus/lib/bus"
)

func TestIntrospectListsDirectChildrenOnce(t *testing.T) {
	published := []bus.ObjectPath{
		"/org/inputbus/Engine",
		"/org/inputbus/Engine/1",
		"/org/inputbus/Engine/2",
		"/org/inputbus/Engine/2/sub",
		"/org/inputbus/EngineOther",
		"/org/inputbus/Factory",
	}
	document := Introspect("/org/inputbus/Engine", nil, published)
	if !strings.HasPrefix(document, "<!DOCTYPE node") {
		t.Errorf("document does not start with the doctype:\n%s", document)
	}

	var node introspectionNode
	if err := xml.Unmarshal([]byte(strings.TrimPrefix(document, introspectionDoctype)), &node); err != nil {
		t.Fatalf("parsing introspection: %v", err)
	}
	var children []string
	for _, child := range node.Children {
		children = append(children, child.Name)
	}
	if strings.Join(children, ",") != "1,2" {
		t.Errorf("children = %v, want [1 2]", children)
	}
	if len(node.Interfaces) != len(baseInterfaces) {
		t.Errorf("interfaces = %d, want the %d base interfaces", len(node.Interfaces), len(baseInterfaces))
	}
}

func TestIntrospectRoot(t *testing.T) {
	document := Introspect("/", nil, []bus.ObjectPath{"/", "/org/inputbus/Factory", "/org/other"})
	if !strings.Contains(document, `<node name="org">`) {
		t.Errorf("root introspection missing org child:\n%s", document)
	}
	if strings.Count(document, `<node name="org">`) != 1 {
		t.Errorf("org child listed more than once:\n%s", document)
	}
}
