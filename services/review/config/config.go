// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads review session configuration: embedded defaults,
// optionally overlaid with a user YAML file, validated before use.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed defaults.yaml
var defaultsYAML []byte

// Duration wraps time.Duration with YAML support for values like "5s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses "120s"-style duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration back to its string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Budgets are the hard session guardrails.
type Budgets struct {
	// MaxIterations caps model round trips per session.
	MaxIterations int `yaml:"max_iterations" validate:"min=1"`

	// MaxToolCalls caps tool executions across the session.
	MaxToolCalls int `yaml:"max_tool_calls" validate:"min=1"`

	// MaxResultBytes caps a single tool result's payload.
	MaxResultBytes int `yaml:"max_result_bytes" validate:"min=1024"`

	// MaxContextTokens is the estimated token budget for the conversation.
	MaxContextTokens int `yaml:"max_context_tokens" validate:"min=1000"`
}

// Timeouts bound every suspension point in a session.
type Timeouts struct {
	// ModelRequest bounds one model round trip. A timeout here is fatal
	// to the session.
	ModelRequest Duration `yaml:"model_request"`

	// PerFileSymbols bounds one file's symbol extraction.
	PerFileSymbols Duration `yaml:"per_file_symbols"`

	// DirectoryScan bounds a whole directory walk or scan.
	DirectoryScan Duration `yaml:"directory_scan"`

	// PerCandidate bounds one workspace-symbol candidate's processing.
	PerCandidate Duration `yaml:"per_candidate"`
}

// Discovery bounds file enumeration.
type Discovery struct {
	// MaxFiles caps files visited per discovery operation.
	MaxFiles int `yaml:"max_files" validate:"min=1"`

	// WorkspaceCandidateCap caps candidates in workspace symbol search.
	WorkspaceCandidateCap int `yaml:"workspace_candidate_cap" validate:"min=1"`
}

// Config is the full review session configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	// Provider selects the model backend: "anthropic" or "openai".
	Provider string `yaml:"provider" validate:"required,oneof=anthropic openai"`

	// Model is the model identifier sent to the provider.
	Model string `yaml:"model" validate:"required"`

	Budgets   Budgets   `yaml:"budgets"`
	Timeouts  Timeouts  `yaml:"timeouts"`
	Discovery Discovery `yaml:"discovery"`
}

// Load builds a Config from the embedded defaults plus an optional
// override file.
//
// Description:
//
//	The override file is decoded over the defaults, so it only needs the
//	fields it changes. Validation runs after merging; a config that
//	passes Load is safe to use without further checks.
//
// Inputs:
//   - overridePath: Path to a user YAML file, or "" for defaults only.
//
// Outputs:
//   - *Config: The merged, validated configuration.
//   - error: Unreadable/unparsable override or a failed validation rule.
func Load(overridePath string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if overridePath != "" {
		raw, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", overridePath, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", overridePath, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies the struct validation rules plus the duration checks
// the tag syntax cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	durations := map[string]Duration{
		"timeouts.model_request":    c.Timeouts.ModelRequest,
		"timeouts.per_file_symbols": c.Timeouts.PerFileSymbols,
		"timeouts.directory_scan":   c.Timeouts.DirectoryScan,
		"timeouts.per_candidate":    c.Timeouts.PerCandidate,
	}
	for name, d := range durations {
		if d.Duration <= 0 {
			return fmt.Errorf("invalid configuration: %s must be positive", name)
		}
	}
	return nil
}
