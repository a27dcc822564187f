// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/inputbus/inputbus/lib/address"
	"github.com/inputbus/inputbus/lib/bus"
	"github.com/inputbus/inputbus/lib/codec"
	"github.com/inputbus/inputbus/lib/engine"
	"github.com/inputbus/inputbus/lib/factory"
	"github.com/inputbus/inputbus/lib/logging"
	"github.com/inputbus/inputbus/lib/service"
	"github.com/inputbus/inputbus/lib/version"
)

// connection holds the flags every bus command shares.
type connection struct {
	Address string
	Timeout time.Duration
}

func (c *connection) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&c.Address, "address", "a", "", "bus address (default $"+address.EnvironmentVariable+" or the per-user socket)")
	flagSet.DurationVar(&c.Timeout, "timeout", 5*time.Second, "deadline for the whole command")
}

// dial resolves the address and connects. The returned context carries
// the command deadline.
func (c *connection) dial() (context.Context, context.CancelFunc, *bus.Connection, error) {
	addr, err := address.Resolve(c.Address)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	conn, err := bus.Dial(ctx, addr, logging.NewCommandLogger())
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, conn, nil
}

func createEngine(ctx context.Context, conn *bus.Connection, name string) (bus.ObjectPath, error) {
	reply, err := conn.Call(ctx, factory.Path, factory.Interface, "CreateEngine", name)
	if err != nil {
		return "", fmt.Errorf("creating engine %q: %w", name, err)
	}
	var path bus.ObjectPath
	if err := reply.Args(&path); err != nil {
		return "", fmt.Errorf("creating engine %q: %w", name, err)
	}
	return path, nil
}

func createEngineCommand(stdout io.Writer) *command {
	var params connection
	return &command{
		name:    "create-engine",
		summary: "Create an engine and print its path",
		usage:   "inputbus create-engine <name> [flags]",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("create-engine", pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one engine name")
			}
			ctx, cancel, conn, err := params.dial()
			if err != nil {
				return err
			}
			defer cancel()
			defer conn.Close()

			path, err := createEngine(ctx, conn, args[0])
			if err != nil {
				return err
			}
			// The engine belongs to this connection and is destroyed
			// when the command exits.
			fmt.Fprintln(stdout, path)
			return nil
		},
	}
}

func introspectCommand(stdout io.Writer) *command {
	var params connection
	return &command{
		name:    "introspect",
		summary: "Print the introspection document of an object",
		usage:   "inputbus introspect [path] [flags]",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("introspect", pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		run: func(args []string) error {
			path := factory.Path
			switch len(args) {
			case 0:
			case 1:
				path = bus.ObjectPath(args[0])
				if !path.IsValid() {
					return fmt.Errorf("invalid object path %q", args[0])
				}
			default:
				return fmt.Errorf("expected at most one object path")
			}

			ctx, cancel, conn, err := params.dial()
			if err != nil {
				return err
			}
			defer cancel()
			defer conn.Close()

			reply, err := conn.Call(ctx, path, service.InterfaceIntrospectable, "Introspect")
			if err != nil {
				return fmt.Errorf("introspecting %s: %w", path, err)
			}
			var document string
			if err := reply.Args(&document); err != nil {
				return err
			}
			fmt.Fprint(stdout, document)
			return nil
		},
	}
}

func typeCommand(stdout io.Writer) *command {
	var params connection
	var raw bool
	return &command{
		name:    "type",
		summary: "Feed text to a new engine as key presses and print the result",
		usage:   "inputbus type <engine> <text> [flags]",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("type", pflag.ContinueOnError)
			params.addFlags(flagSet)
			flagSet.BoolVar(&raw, "raw", false, "print every signal received in CBOR diagnostic notation")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected an engine name and the text to type")
			}
			ctx, cancel, conn, err := params.dial()
			if err != nil {
				return err
			}
			defer cancel()
			defer conn.Close()

			signals := make(chan *bus.Message, 64)
			conn.WatchSignals(func(message *bus.Message) {
				select {
				case signals <- message:
				default:
				}
			})

			path, err := createEngine(ctx, conn, args[0])
			if err != nil {
				return err
			}
			for _, member := range []string{"FocusIn", "Enable"} {
				if _, err := conn.Call(ctx, path, engine.InterfaceEngine, member); err != nil {
					return fmt.Errorf("%s on %s: %w", member, path, err)
				}
			}

			result, err := typeText(ctx, conn, path, args[1], signals, rawPrinter(stdout, raw))
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, result)

			if _, err := conn.Call(ctx, path, service.InterfaceService, "Destroy"); err != nil {
				return fmt.Errorf("destroying %s: %w", path, err)
			}
			return nil
		},
	}
}

// typeText sends each rune of text to the engine at path as a key
// press. Committed text replaces keys the engine consumed; keys it did
// not consume are kept as typed, as an application would insert them.
func typeText(ctx context.Context, conn *bus.Connection, path bus.ObjectPath, text string, signals <-chan *bus.Message, onSignal func(*bus.Message)) (string, error) {
	var result strings.Builder
	for _, character := range text {
		reply, err := conn.Call(ctx, path, engine.InterfaceEngine, "ProcessKeyEvent", uint32(character), uint32(0), uint32(0))
		if err != nil {
			return "", fmt.Errorf("sending key %q: %w", character, err)
		}
		var handled bool
		if err := reply.Args(&handled); err != nil {
			return "", err
		}
		if !handled {
			result.WriteRune(character)
		}

		// Signals emitted while handling the key arrive before its
		// reply, so they are already queued.
		for drained := false; !drained; {
			select {
			case signal := <-signals:
				onSignal(signal)
				if signal.Path == path && signal.IsSignal(engine.InterfaceEngine, "CommitText") {
					var committed string
					if err := signal.Args(&committed); err == nil {
						result.WriteString(committed)
					}
				}
			default:
				drained = true
			}
		}
	}
	return result.String(), nil
}

func rawPrinter(w io.Writer, enabled bool) func(*bus.Message) {
	if !enabled {
		return func(*bus.Message) {}
	}
	return func(signal *bus.Message) {
		arguments := make([]string, 0, len(signal.Body))
		for _, argument := range signal.Body {
			diagnostic, err := codec.Diagnose(argument)
			if err != nil {
				diagnostic = fmt.Sprintf("<%v>", err)
			}
			arguments = append(arguments, diagnostic)
		}
		fmt.Fprintf(w, "%s %s.%s(%s)\n", signal.Path, signal.Interface, signal.Member, strings.Join(arguments, ", "))
	}
}

func versionCommand(stdout io.Writer) *command {
	return &command{
		name:    "version",
		summary: "Print version information",
		run: func([]string) error {
			fmt.Fprintln(stdout, version.Full())
			return nil
		},
	}
}
