// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package discovery enumerates workspace files and extracts their symbols
// under explicit time, count, and cancellation budgets.
//
// Nothing here caches across invocations: every call re-walks the
// filesystem and re-parses files. Staleness is traded away for simplicity
// on purpose — the workspace is being reviewed while it changes.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/loupedev/loupe/services/review/pathutil"
)

// Default budgets for directory walks.
const (
	DefaultMaxResults  = 1000
	DefaultWalkTimeout = 30 * time.Second
)

// errWalkStopped aborts a walk that hit a budget; never escapes this file.
var errWalkStopped = errors.New("walk stopped")

// Options configures one file discovery pass.
type Options struct {
	// SearchPath is the sanitized directory to walk, relative to the root.
	// "." walks the whole repository.
	SearchPath string

	// IncludeGlob restricts results; it is matched against both the
	// basename and the full root-relative path. Empty includes everything.
	IncludeGlob string

	// ExcludeGlob removes results and always wins over IncludeGlob.
	ExcludeGlob string

	// RespectIgnore applies the repository's ignore file.
	RespectIgnore bool

	// MaxResults caps the number of returned files (0 = DefaultMaxResults).
	MaxResults int

	// Timeout bounds the walk (0 = DefaultWalkTimeout).
	Timeout time.Duration
}

// FileList is the outcome of a discovery pass.
//
// Invariant: Truncated is true whenever the result cap or the time budget
// stopped the walk early; callers must surface it, never mask it.
type FileList struct {
	// Files holds lexicographically sorted root-relative paths.
	Files []string

	// Truncated reports that the list stopped at a cap or budget.
	Truncated bool
}

// Walker enumerates files under a repository root.
//
// Description:
//
//	Stateless per call apart from the root and logger; safe to reuse and
//	to re-instantiate freely. Ignore rules are loaded fresh for every
//	operation via LoadIgnore so edits to the ignore file apply on the
//	next call.
//
// Thread Safety: Safe for concurrent use.
type Walker struct {
	root   string
	logger *slog.Logger
}

// NewWalker creates a Walker over the repository at root.
func NewWalker(root string, logger *slog.Logger) *Walker {
	return &Walker{root: root, logger: logger}
}

// Root returns the repository root path.
func (w *Walker) Root() string { return w.root }

// LoadIgnore compiles the repository's .gitignore for one operation.
//
// Description:
//
//	A missing ignore file compiles to a matcher that ignores nothing.
//	Content is read fresh on every call — deliberately not cached.
func (w *Walker) LoadIgnore() *pathutil.IgnoreMatcher {
	content, err := os.ReadFile(filepath.Join(w.root, ".gitignore"))
	if err != nil {
		return pathutil.NewIgnoreMatcher("", w.logger)
	}
	return pathutil.NewIgnoreMatcher(string(content), w.logger)
}

// DiscoverFiles walks the tree under SearchPath applying globs, ignore
// rules, and budgets.
//
// Description:
//
//	Ignored directories and ".git" are pruned from descent entirely, not
//	filtered afterwards. Cancellation is checked inside the walk callback,
//	so a stop lands mid-walk rather than between top-level entries: user
//	cancellation propagates as an error, while the walk's own time budget
//	and the result cap end the walk early with Truncated=true. Results
//	are sorted for deterministic output.
//
// Inputs:
//   - ctx: Session context; cancellation aborts with the context's error.
//   - opts: Walk configuration; SearchPath must already be sanitized.
//
// Outputs:
//   - *FileList: Sorted relative paths plus the truncation flag.
//   - error: Cancellation, or a filesystem error on the search path root.
func (w *Walker) DiscoverFiles(ctx context.Context, opts Options) (*FileList, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	budget := opts.Timeout
	if budget <= 0 {
		budget = DefaultWalkTimeout
	}
	deadline := time.Now().Add(budget)

	var ignore *pathutil.IgnoreMatcher
	if opts.RespectIgnore {
		ignore = w.LoadIgnore()
	}

	start := filepath.Join(w.root, filepath.FromSlash(opts.SearchPath))
	result := &FileList{}

	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, walkErr error) error {
		// Cooperative mid-walk cancellation.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if time.Now().After(deadline) {
			result.Truncated = true
			return errWalkStopped
		}
		if walkErr != nil {
			// One unreadable entry never aborts the walk.
			w.logger.Debug("skipping unreadable entry",
				slog.String("path", path),
				slog.String("error", walkErr.Error()),
			)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			if ignore != nil && rel != "." && ignore.Ignored(rel, true) {
				return fs.SkipDir
			}
			return nil
		}

		if ignore != nil && ignore.Ignored(rel, false) {
			return nil
		}
		if !matchesGlobs(rel, d.Name(), opts.IncludeGlob, opts.ExcludeGlob) {
			return nil
		}

		result.Files = append(result.Files, rel)
		if len(result.Files) >= maxResults {
			result.Truncated = true
			return errWalkStopped
		}
		return nil
	})

	switch {
	case err == nil || errors.Is(err, errWalkStopped):
		// Budget stops are reported through Truncated, not an error.
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case os.IsNotExist(err):
		return nil, fmt.Errorf("directory not found: %s", opts.SearchPath)
	default:
		return nil, fmt.Errorf("walking %s: %w", opts.SearchPath, err)
	}

	sort.Strings(result.Files)
	return result, nil
}

// matchesGlobs applies include/exclude patterns. Exclude always wins.
// A malformed glob is treated as not matching.
func matchesGlobs(relPath, base, include, exclude string) bool {
	if exclude != "" {
		if ok, err := doublestar.Match(exclude, relPath); err == nil && ok {
			return false
		}
		if ok, err := doublestar.Match(exclude, base); err == nil && ok {
			return false
		}
	}
	if include == "" {
		return true
	}
	if ok, err := doublestar.Match(include, relPath); err == nil && ok {
		return true
	}
	ok, err := doublestar.Match(include, base)
	return err == nil && ok
}

// ListDirectory reads the immediate entries of one directory, directories
// first, each group sorted.
//
// Description:
//
//	The non-recursive companion to DiscoverFiles, used for shallow
//	listings. Ignore rules still apply when requested. Directory entries
//	carry a trailing slash in the returned names.
func (w *Walker) ListDirectory(ctx context.Context, relPath string, respectIgnore bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs := filepath.Join(w.root, filepath.FromSlash(relPath))
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", relPath)
		}
		return nil, fmt.Errorf("reading directory %s: %w", relPath, err)
	}

	var ignore *pathutil.IgnoreMatcher
	if respectIgnore {
		ignore = w.LoadIgnore()
	}

	var dirs, files []string
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		childRel := e.Name()
		if relPath != "." {
			childRel = relPath + "/" + e.Name()
		}
		if ignore != nil && ignore.Ignored(childRel, e.IsDir()) {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, childRel+"/")
		} else {
			files = append(files, childRel)
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)
	return append(dirs, files...), nil
}

// ReadFileRel reads a root-relative file.
func (w *Walker) ReadFileRel(relPath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(w.root, filepath.FromSlash(relPath)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", relPath)
		}
		return nil, fmt.Errorf("reading %s: %w", relPath, err)
	}
	return data, nil
}

// IsDir reports whether the root-relative path names a directory.
func (w *Walker) IsDir(relPath string) (bool, error) {
	info, err := os.Stat(filepath.Join(w.root, filepath.FromSlash(relPath)))
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("path not found: %s", relPath)
		}
		return false, err
	}
	return info.IsDir(), nil
}
