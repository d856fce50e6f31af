// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package discovery

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixtureWalker builds a throwaway repository tree. Paths use forward
// slashes; a trailing slash creates a directory.
func newFixtureWalker(t *testing.T, files map[string]string) *Walker {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(path))
		if path[len(path)-1] == '/' {
			if err := os.MkdirAll(abs, 0o755); err != nil {
				t.Fatalf("mkdir %s: %v", path, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", path, err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return NewWalker(root, discardLogger())
}

func TestDiscoverFiles_SortedRelativePaths(t *testing.T) {
	w := newFixtureWalker(t, map[string]string{
		"zeta.go":        "package main\n",
		"alpha.go":       "package main\n",
		"sub/nested.go":  "package sub\n",
		"sub/deep/x.txt": "hi\n",
	})

	list, err := w.DiscoverFiles(context.Background(), Options{SearchPath: "."})
	if err != nil {
		t.Fatalf("DiscoverFiles() error = %v", err)
	}
	want := []string{"alpha.go", "sub/deep/x.txt", "sub/nested.go", "zeta.go"}
	if !reflect.DeepEqual(list.Files, want) {
		t.Fatalf("Files = %v, want %v", list.Files, want)
	}
	if list.Truncated {
		t.Fatal("Truncated = true for a small tree")
	}
}

func TestDiscoverFiles_PrunesGitDir(t *testing.T) {
	w := newFixtureWalker(t, map[string]string{
		"main.go":          "package main\n",
		".git/HEAD":        "ref: refs/heads/main\n",
		".git/objects/abc": "blob\n",
	})

	list, err := w.DiscoverFiles(context.Background(), Options{SearchPath: "."})
	if err != nil {
		t.Fatalf("DiscoverFiles() error = %v", err)
	}
	if !reflect.DeepEqual(list.Files, []string{"main.go"}) {
		t.Fatalf("Files = %v, want only main.go", list.Files)
	}
}

func TestDiscoverFiles_RespectsIgnoreFile(t *testing.T) {
	w := newFixtureWalker(t, map[string]string{
		".gitignore":       "node_modules/\n*.log\n!keep.log\n",
		"main.go":          "package main\n",
		"debug.log":        "noise\n",
		"keep.log":         "kept\n",
		"node_modules/a/b": "dep\n",
	})

	list, err := w.DiscoverFiles(context.Background(), Options{SearchPath: ".", RespectIgnore: true})
	if err != nil {
		t.Fatalf("DiscoverFiles() error = %v", err)
	}
	want := []string{".gitignore", "keep.log", "main.go"}
	if !reflect.DeepEqual(list.Files, want) {
		t.Fatalf("Files = %v, want %v", list.Files, want)
	}
}

func TestDiscoverFiles_IgnoreDisabled(t *testing.T) {
	w := newFixtureWalker(t, map[string]string{
		".gitignore": "*.log\n",
		"debug.log":  "noise\n",
	})

	list, err := w.DiscoverFiles(context.Background(), Options{SearchPath: "."})
	if err != nil {
		t.Fatalf("DiscoverFiles() error = %v", err)
	}
	want := []string{".gitignore", "debug.log"}
	if !reflect.DeepEqual(list.Files, want) {
		t.Fatalf("Files = %v, want %v", list.Files, want)
	}
}

func TestDiscoverFiles_Globs(t *testing.T) {
	w := newFixtureWalker(t, map[string]string{
		"a.go":          "package a\n",
		"b.py":          "b = 1\n",
		"pkg/c.go":      "package pkg\n",
		"pkg/c_test.go": "package pkg\n",
	})

	list, err := w.DiscoverFiles(context.Background(), Options{
		SearchPath:  ".",
		IncludeGlob: "**/*.go",
		ExcludeGlob: "**/*_test.go",
	})
	if err != nil {
		t.Fatalf("DiscoverFiles() error = %v", err)
	}
	want := []string{"a.go", "pkg/c.go"}
	if !reflect.DeepEqual(list.Files, want) {
		t.Fatalf("Files = %v, want %v", list.Files, want)
	}
}

func TestDiscoverFiles_BasenameGlob(t *testing.T) {
	w := newFixtureWalker(t, map[string]string{
		"deep/nested/config.yaml": "a: 1\n",
		"deep/other.txt":          "x\n",
	})

	list, err := w.DiscoverFiles(context.Background(), Options{SearchPath: ".", IncludeGlob: "*.yaml"})
	if err != nil {
		t.Fatalf("DiscoverFiles() error = %v", err)
	}
	if !reflect.DeepEqual(list.Files, []string{"deep/nested/config.yaml"}) {
		t.Fatalf("Files = %v, want the yaml only", list.Files)
	}
}

func TestDiscoverFiles_MaxResultsTruncates(t *testing.T) {
	w := newFixtureWalker(t, map[string]string{
		"a.txt": "1", "b.txt": "2", "c.txt": "3", "d.txt": "4",
	})

	list, err := w.DiscoverFiles(context.Background(), Options{SearchPath: ".", MaxResults: 2})
	if err != nil {
		t.Fatalf("DiscoverFiles() error = %v", err)
	}
	if len(list.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(list.Files))
	}
	if !list.Truncated {
		t.Fatal("Truncated = false after hitting MaxResults")
	}
}

func TestDiscoverFiles_Cancellation(t *testing.T) {
	w := newFixtureWalker(t, map[string]string{"a.txt": "1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.DiscoverFiles(ctx, Options{SearchPath: "."})
	if err == nil || ctx.Err() == nil {
		t.Fatalf("DiscoverFiles() error = %v, want cancellation", err)
	}
}

func TestDiscoverFiles_MissingSearchPath(t *testing.T) {
	w := newFixtureWalker(t, map[string]string{"a.txt": "1"})

	_, err := w.DiscoverFiles(context.Background(), Options{SearchPath: "no/such/dir"})
	if err == nil {
		t.Fatal("DiscoverFiles() error = nil for a missing directory")
	}
}

func TestListDirectory_DirsFirst(t *testing.T) {
	w := newFixtureWalker(t, map[string]string{
		"zz.txt":      "z\n",
		"aa.txt":      "a\n",
		"beta/one.go": "package beta\n",
		"alpha/":      "",
	})

	entries, err := w.ListDirectory(context.Background(), ".", false)
	if err != nil {
		t.Fatalf("ListDirectory() error = %v", err)
	}
	want := []string{"alpha/", "beta/", "aa.txt", "zz.txt"}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("entries = %v, want %v", entries, want)
	}
}

func TestListDirectory_SubdirAndIgnore(t *testing.T) {
	w := newFixtureWalker(t, map[string]string{
		".gitignore":     "pkg/*.log\n",
		"pkg/app.go":     "package pkg\n",
		"pkg/trace.log":  "noise\n",
		"pkg/inner/x.go": "package inner\n",
	})

	entries, err := w.ListDirectory(context.Background(), "pkg", true)
	if err != nil {
		t.Fatalf("ListDirectory() error = %v", err)
	}
	want := []string{"pkg/inner/", "pkg/app.go"}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("entries = %v, want %v", entries, want)
	}
}

func TestListDirectory_Missing(t *testing.T) {
	w := newFixtureWalker(t, nil)
	if _, err := w.ListDirectory(context.Background(), "ghost", false); err == nil {
		t.Fatal("ListDirectory() error = nil for a missing directory")
	}
}

func TestReadFileRelAndIsDir(t *testing.T) {
	w := newFixtureWalker(t, map[string]string{"sub/data.txt": "payload"})

	data, err := w.ReadFileRel("sub/data.txt")
	if err != nil {
		t.Fatalf("ReadFileRel() error = %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("content = %q", data)
	}

	isDir, err := w.IsDir("sub")
	if err != nil || !isDir {
		t.Fatalf("IsDir(sub) = %v, %v", isDir, err)
	}
	isDir, err = w.IsDir("sub/data.txt")
	if err != nil || isDir {
		t.Fatalf("IsDir(file) = %v, %v", isDir, err)
	}
	if _, err := w.IsDir("nope"); err == nil {
		t.Fatal("IsDir(missing) error = nil")
	}
}
