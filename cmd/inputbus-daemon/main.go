// Copyright 2026 The Inputbus Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/inputbus/inputbus/internal/daemon"
	"github.com/inputbus/inputbus/lib/address"
	"github.com/inputbus/inputbus/lib/config"
	"github.com/inputbus/inputbus/lib/engine"
	"github.com/inputbus/inputbus/lib/logging"
	"github.com/inputbus/inputbus/lib/process"
	"github.com/inputbus/inputbus/lib/version"
)

const binaryName = "inputbus-daemon"

// usageError marks command-line mistakes, which exit with the usage
// status instead of the failure status.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			process.Usage(err)
			return
		}
		process.Fatal(err)
	}
}

// options are the parsed command-line flags.
type options struct {
	configPath  string
	address     string
	listEngines bool
	showVersion bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to the config file (default $"+config.EnvironmentVariable+")")
	flagSet.StringVarP(&opts.address, "address", "a", "", "bus address to listen on, overriding $"+address.EnvironmentVariable+" and the config")
	flagSet.BoolVar(&opts.listEngines, "list-engines", false, "print the built-in engine types and exit")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return options{}, usageError{fmt.Errorf("%w\n\nUsage: %s [--config FILE] [--address ADDRESS]", err, binaryName)}
	}
	if flagSet.NArg() > 0 {
		return options{}, usageError{fmt.Errorf("unexpected argument %q", flagSet.Arg(0))}
	}
	return opts, nil
}

// loadConfig picks the config source: the flag, then the environment
// variable, then defaults. The result has been validated.
func loadConfig(configPath string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case configPath != "":
		cfg, err = config.LoadFile(configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, version.Banner(binaryName))
		return nil
	}
	if opts.listEngines {
		for _, name := range engine.CatalogNames() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	level, _ := cfg.LogLevel()
	logger, err := logging.New(os.Stderr, level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	logger = logger.With("binary", binaryName)

	setup, err := daemon.EngineSetup(cfg.Engines, engine.Catalog())
	if err != nil {
		return fmt.Errorf("engines: %w", err)
	}

	server := daemon.NewServer(setup, logger)
	mode, _ := cfg.SocketModeValue()
	server.SetSocketMode(mode)

	if opts.address != "" {
		addr, err := address.Parse(opts.address)
		if err != nil {
			return usageError{fmt.Errorf("--address: %w", err)}
		}
		if err := server.Listen(addr); err != nil {
			return err
		}
	} else if err := server.ListenResolved(cfg.Bus.Address); err != nil {
		return err
	}

	// Clients find the daemon through this line when it is started
	// with a tcp port of 0.
	logger.Info("daemon started",
		"version", version.Info(),
		"environment", string(cfg.Environment),
		"address", server.Address().String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- server.Serve(ctx) }()

	select {
	case err := <-served:
		server.Close()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := server.Close(); err != nil {
		logger.Warn("closing listener", "error", err)
	}
	return <-served
}
