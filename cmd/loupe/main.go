// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command loupe reviews code changes with an agentic model loop.
//
// Loupe hands the model a set of read-only exploration tools (symbol
// lookup, file overviews, directory listing, pattern search, file
// reads) and lets it investigate a diff or a directory before writing
// its review.
//
// Usage:
//
//	loupe review --diff change.patch
//	git diff main | loupe review --diff -
//	loupe review --path ./services
//
// With a config override and span output:
//
//	loupe review --diff change.patch --config loupe.yaml --trace
//
// The model backend comes from the config's provider plus environment
// credentials (ANTHROPIC_API_KEY or OPENAI_API_KEY).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// Exit codes, so scripts can tell how a review ended.
const (
	exitOK          = 0
	exitModelError  = 1
	exitUsageError  = 2
	exitBudgetSpent = 3
	exitInterrupted = 130
)

// reviewFlags holds flag values for the review command.
var (
	flagDiff   string
	flagPath   string
	flagConfig string
	flagTrace  bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "loupe",
		Short:         "Agentic code review from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	review := &cobra.Command{
		Use:   "review",
		Short: "Review a diff or a directory",
		Long: "Review runs the model loop over a unified diff (--diff, use '-' for stdin)\n" +
			"or over a directory (--path) when no diff is given.",
		RunE: runReview,
	}
	review.Flags().StringVar(&flagDiff, "diff", "", "unified diff file to review ('-' reads stdin)")
	review.Flags().StringVar(&flagPath, "path", ".", "workspace root the tools operate in")
	review.Flags().StringVar(&flagConfig, "config", "", "config file overriding the built-in defaults")
	review.Flags().BoolVar(&flagTrace, "trace", false, "write otel spans to stderr")

	root.AddCommand(review)
	return root
}

// setupLogger installs the process-wide slog handler: readable text on a
// terminal, JSON when output is piped.
func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if v := os.Getenv("LOUPE_LOG_LEVEL"); v == "debug" {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitUsageError)
	}
}
