// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pathutil

import (
	"strings"
	"testing"
)

func TestSanitize_Accepts(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain relative", "src/main.go", "src/main.go"},
		{"backslashes normalized", `src\sub\file.ts`, "src/sub/file.ts"},
		{"dot segments collapsed", "./src/./lib", "src/lib"},
		{"empty is root", "", "."},
		{"whitespace is root", "   ", "."},
		{"lone dot is root", ".", "."},
		{"trailing slash", "src/", "src"},
		{"repeated separators", "src//lib///x.go", "src/lib/x.go"},
		{"dot inside name preserved", "pkg/file.spec.ts", "pkg/file.spec.ts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.input)
			if err != nil {
				t.Fatalf("Sanitize(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"parent traversal", "../etc/passwd", "traversal"},
		{"embedded traversal", "src/../../etc", "traversal"},
		{"trailing traversal", "src/..", "traversal"},
		{"absolute posix", "/etc/passwd", "absolute"},
		{"drive letter upper", `C:\Windows`, "drive letter"},
		{"drive letter lower", "d:/data", "drive letter"},
		{"unc path", `\\server\share`, "UNC"},
		{"extended-length prefix", `\\?\C:\long`, "UNC"},
		{"device prefix", `\\.\pipe\x`, "UNC"},
		{"backslash traversal", `..\secrets`, "traversal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize(tt.input)
			if err == nil {
				t.Fatalf("Sanitize(%q) accepted, want rejection", tt.input)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Sanitize(%q) error = %q, want mention of %q", tt.input, err, tt.wantMsg)
			}
		})
	}
}

// Determinism: same input, same outcome, every time.
func TestSanitize_Pure(t *testing.T) {
	for i := 0; i < 3; i++ {
		got, err := Sanitize("a/./b")
		if err != nil || got != "a/b" {
			t.Fatalf("iteration %d: Sanitize(%q) = %q, %v", i, "a/./b", got, err)
		}
		if _, err := Sanitize("../x"); err == nil {
			t.Fatalf("iteration %d: traversal accepted", i)
		}
	}
}
