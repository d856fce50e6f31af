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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loupedev/loupe/services/review/agent"
	"github.com/loupedev/loupe/services/review/config"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"canceled", context.Canceled, exitInterrupted},
		{"wrapped canceled", errors.Join(errors.New("wrap"), context.Canceled), exitInterrupted},
		{"budget", &agent.BudgetError{Limit: "max iterations"}, exitBudgetSpent},
		{"model failure", errors.New("model request failed"), exitModelError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCodeFor(tc.err); got != tc.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestBuildUserMessageDirectoryMode(t *testing.T) {
	msg, err := buildUserMessage("", "./svc", nil)
	if err != nil {
		t.Fatalf("buildUserMessage: %v", err)
	}
	if !strings.Contains(msg, "./svc") {
		t.Errorf("message = %q, want path mentioned", msg)
	}
}

func TestBuildUserMessageFromDiffFile(t *testing.T) {
	patch := `--- a/x.go
+++ b/x.go
@@ -1,1 +1,1 @@
-old
+new
`
	path := filepath.Join(t.TempDir(), "change.patch")
	if err := os.WriteFile(path, []byte(patch), 0o644); err != nil {
		t.Fatal(err)
	}

	msg, err := buildUserMessage(path, ".", nil)
	if err != nil {
		t.Fatalf("buildUserMessage: %v", err)
	}
	if !strings.Contains(msg, "- x.go (modified") {
		t.Errorf("message = %q, want changed-file listing", msg)
	}
}

func TestBuildUserMessageFromStdin(t *testing.T) {
	patch := `--- a/y.go
+++ b/y.go
@@ -1,1 +1,1 @@
-a
+b
`
	msg, err := buildUserMessage("-", ".", strings.NewReader(patch))
	if err != nil {
		t.Fatalf("buildUserMessage: %v", err)
	}
	if !strings.Contains(msg, "y.go") {
		t.Errorf("message = %q", msg)
	}
}

func TestBuildUserMessageRejectsBadDiff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.patch")
	if err := os.WriteFile(path, []byte("not a diff"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := buildUserMessage(path, ".", nil); err == nil {
		t.Error("expected error for malformed diff")
	}
}

func TestNewChatClientUnknownProvider(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Provider = "carrier-pigeon"
	if _, err := newChatClient(cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}
