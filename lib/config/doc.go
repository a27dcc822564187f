// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the inputbus
// daemon.
//
// Configuration is loaded from a single file named by either the
// INPUTBUS_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). Files ending in .json or .jsonc are read as JSON
// with comments and trailing commas; anything else is YAML. There is
// no file search.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// the socket is owner-only and logs are JSON.
//
// ${HOME}, ${XDG_RUNTIME_DIR}, ${UID}, and ${VAR:-default} patterns
// are expanded in the bus address after loading.
//
// The bus address in the file is only one source: lib/address gives
// INPUTBUS_ADDRESS precedence over it.
package config
