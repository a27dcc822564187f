// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"
)

// Exit codes used by inputbus commands.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// exit is replaced in tests.
var exit = os.Exit

// Fatal writes "error: err" to stderr and exits with ExitFailure. Use
// it in main() for errors from run().
func Fatal(err error) {
	report(os.Stderr, err)
	exit(ExitFailure)
}

// Usage writes "error: err" to stderr and exits with ExitUsage. Use it
// for invalid command lines.
func Usage(err error) {
	report(os.Stderr, err)
	exit(ExitUsage)
}

func report(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
