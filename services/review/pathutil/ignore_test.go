// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pathutil

import (
	"io"
	"log/slog"
	"testing"
)

func testMatcher(t *testing.T, content string) *IgnoreMatcher {
	t.Helper()
	return NewIgnoreMatcher(content, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestIgnoreMatcher_Basics(t *testing.T) {
	m := testMatcher(t, `
# build output
*.log
build/
/dist
node_modules/
docs/**/*.tmp
`)

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"debug.log", false, true},
		{"sub/dir/trace.log", false, true},
		{"debug.log.txt", false, false},
		{"build", true, true},
		{"build/out.o", false, true},
		{"src/build", true, true},
		{"src/build/a.o", false, true},
		{"buildinfo.go", false, false},
		{"dist", true, true},
		{"dist/app.js", false, true},
		{"src/dist", true, false}, // anchored: only root-level dist
		{"node_modules/left-pad/index.js", false, true},
		{"docs/a/b/scratch.tmp", false, true},
		{"docs/readme.md", false, false},
		{".", true, false},
		{"src/main.go", false, false},
	}

	for _, tt := range tests {
		if got := m.Ignored(tt.path, tt.isDir); got != tt.want {
			t.Errorf("Ignored(%q, isDir=%v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
		}
	}
}

func TestIgnoreMatcher_NegationRoundTrip(t *testing.T) {
	withNegation := testMatcher(t, "*.log\n!debug.log\n")
	if withNegation.Ignored("debug.log", false) {
		t.Error("negated debug.log should be re-included")
	}
	if !withNegation.Ignored("other.log", false) {
		t.Error("other.log should remain excluded")
	}

	// Removing the negation line re-excludes the file.
	withoutNegation := testMatcher(t, "*.log\n")
	if !withoutNegation.Ignored("debug.log", false) {
		t.Error("debug.log should be excluded once the negation is removed")
	}
}

func TestIgnoreMatcher_LastMatchWins(t *testing.T) {
	m := testMatcher(t, "!debug.log\n*.log\n")
	if !m.Ignored("debug.log", false) {
		t.Error("a later exclusion overrides an earlier negation")
	}
}

func TestIgnoreMatcher_MalformedPatternIsNotFatal(t *testing.T) {
	// "[" is an unterminated character class; the line must be skipped,
	// the rest of the file still applies.
	m := testMatcher(t, "[\n*.log\n")
	if m.Ignored("weird[name", false) {
		t.Error("malformed pattern must be treated as not matching")
	}
	if !m.Ignored("x.log", false) {
		t.Error("patterns after a malformed line must still apply")
	}
}

func TestIgnoreMatcher_DirOnlyDoesNotMatchFile(t *testing.T) {
	m := testMatcher(t, "cache/\n")
	if m.Ignored("cache", false) {
		t.Error("trailing-slash pattern must not match a plain file")
	}
	if !m.Ignored("cache", true) {
		t.Error("trailing-slash pattern must match the directory")
	}
}

func TestIgnoreMatcher_EmptyContent(t *testing.T) {
	m := testMatcher(t, "")
	if m.Ignored("anything.go", false) {
		t.Error("empty ignore file must ignore nothing")
	}
}
