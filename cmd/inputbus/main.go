// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"os"

	"github.com/inputbus/inputbus/lib/process"
)

func main() {
	if err := root(os.Stdout, os.Stderr).execute(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// root builds the command tree writing results to stdout and help to
// stderr.
func root(stdout, stderr io.Writer) *command {
	return &command{
		name:    "inputbus",
		summary: "Talk to an inputbus daemon.",
		help:    stderr,
		subcommands: []*command{
			createEngineCommand(stdout),
			typeCommand(stdout),
			introspectCommand(stdout),
			versionCommand(stdout),
		},
	}
}
