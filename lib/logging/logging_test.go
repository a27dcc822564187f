// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFormats(t *testing.T) {
	var buffer bytes.Buffer
	logger, err := New(&buffer, slog.LevelInfo, FormatJSON)
	if err != nil {
		t.Fatalf("New(json): %v", err)
	}
	logger.Info("engine created", "path", "/org/inputbus/Engine/1")
	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("json output not parseable: %v\n%s", err, buffer.String())
	}
	if record["path"] != "/org/inputbus/Engine/1" {
		t.Errorf("path attribute = %v", record["path"])
	}

	buffer.Reset()
	logger, err = New(&buffer, slog.LevelInfo, FormatText)
	if err != nil {
		t.Fatalf("New(text): %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buffer.String(), "hidden") || !strings.Contains(buffer.String(), "msg=shown") {
		t.Errorf("text output = %q", buffer.String())
	}

	if _, err := New(&buffer, slog.LevelInfo, "xml"); err == nil {
		t.Error("New accepted an unknown format")
	}
}

func TestAutoFormatUsesJSONWhenNotATerminal(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "log"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer file.Close()

	logger, err := New(file, slog.LevelInfo, FormatAuto)
	if err != nil {
		t.Fatalf("New(auto): %v", err)
	}
	logger.Info("hello")

	data, err := os.ReadFile(file.Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !json.Valid(bytes.TrimSpace(data)) {
		t.Errorf("auto format on a file wrote non-JSON: %q", data)
	}

	var buffer bytes.Buffer
	logger, _ = New(&buffer, slog.LevelInfo, FormatAuto)
	logger.Info("hello")
	if !json.Valid(bytes.TrimSpace(buffer.Bytes())) {
		t.Errorf("auto format on a buffer wrote non-JSON: %q", buffer.String())
	}
}
