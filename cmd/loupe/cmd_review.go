// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loupedev/loupe/services/llm"
	"github.com/loupedev/loupe/services/review/agent"
	"github.com/loupedev/loupe/services/review/config"
	"github.com/loupedev/loupe/services/review/diffinput"
	"github.com/loupedev/loupe/services/review/discovery"
	"github.com/loupedev/loupe/services/review/tools"
)

func runReview(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v (use flags, see 'loupe review --help')", args)
	}

	logger := setupLogger()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	if flagTrace {
		shutdown, err := setupTracing()
		if err != nil {
			return fmt.Errorf("tracing setup: %w", err)
		}
		defer shutdown()
	}

	root, err := filepath.Abs(flagPath)
	if err != nil {
		return fmt.Errorf("--path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("--path: %q is not a directory", flagPath)
	}

	userMessage, err := buildUserMessage(flagDiff, flagPath, os.Stdin)
	if err != nil {
		return err
	}

	client, err := newChatClient(cfg)
	if err != nil {
		return err
	}

	session, err := newReviewSession(client, cfg, root, logger)
	if err != nil {
		return err
	}

	// SIGINT/SIGTERM cancel the session context; the loop aborts at the
	// next suspension point.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("interrupt received, canceling review")
		cancel()
	}()

	answer, err := session.Run(ctx, agent.ReviewSystemPrompt, userMessage)
	code := exitCodeFor(err)

	if answer != "" {
		fmt.Println(answer)
	}
	if err != nil && code != exitBudgetSpent {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if code == exitBudgetSpent {
		fmt.Fprintf(os.Stderr, "Note: %v; the answer above is a best effort.\n", err)
	}
	if code != exitOK {
		os.Exit(code)
	}
	return nil
}

// buildUserMessage produces the opening request from the diff flag, or
// the directory-review message when no diff is given.
func buildUserMessage(diffFlag, path string, stdin io.Reader) (string, error) {
	if diffFlag == "" {
		return diffinput.DirectoryMessage(path), nil
	}

	var raw []byte
	var err error
	if diffFlag == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(diffFlag)
	}
	if err != nil {
		return "", fmt.Errorf("reading diff: %w", err)
	}

	review, err := diffinput.Parse(string(raw))
	if err != nil {
		return "", err
	}
	return review.UserMessage(), nil
}

// newChatClient builds the provider client the config selects.
func newChatClient(cfg *config.Config) (llm.ToolChatClient, error) {
	switch cfg.Provider {
	case "anthropic":
		return llm.NewAnthropicClient(llm.ClientConfig{
			APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			Model:   cfg.Model,
			Timeout: cfg.Timeouts.ModelRequest.Duration + 5*time.Second,
		})
	case "openai":
		return llm.NewOpenAIClient(llm.ClientConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   cfg.Model,
			Timeout: cfg.Timeouts.ModelRequest.Duration + 5*time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// newReviewSession assembles the walker, tool registry, executor, and
// session for one review run.
func newReviewSession(client llm.ToolChatClient, cfg *config.Config, root string, logger *slog.Logger) (*agent.Session, error) {
	walker := discovery.NewWalker(root, logger)
	toolCfg := tools.ToolConfig{
		Timeout:        cfg.Timeouts.DirectoryScan.Duration,
		PerFileTimeout: cfg.Timeouts.PerFileSymbols.Duration,
		MaxFiles:       cfg.Discovery.MaxFiles,
		CandidateCap:   cfg.Discovery.WorkspaceCandidateCap,
	}

	registry, err := tools.NewRegistry(
		tools.NewFindSymbolTool(walker, toolCfg),
		tools.NewOverviewTool(walker, toolCfg),
		tools.NewListDirectoryTool(walker, toolCfg),
		tools.NewSearchPatternTool(walker, toolCfg),
		tools.NewReadFileTool(walker),
	)
	if err != nil {
		return nil, fmt.Errorf("tool registry: %w", err)
	}

	executor := tools.NewExecutor(registry, logger, tools.Limits{
		MaxToolCalls:   cfg.Budgets.MaxToolCalls,
		MaxResultBytes: cfg.Budgets.MaxResultBytes,
	})
	return agent.NewSession(client, executor, registry, cfg, logger), nil
}

// exitCodeFor maps a session outcome to the process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var be *agent.BudgetError
	switch {
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.As(err, &be):
		return exitBudgetSpent
	default:
		return exitModelError
	}
}
