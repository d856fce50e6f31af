// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pathutil

import (
	"bufio"
	"log/slog"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ignorePattern is one compiled gitignore line.
type ignorePattern struct {
	// glob is the doublestar pattern evaluated against root-relative paths.
	glob string

	// negate re-includes a path excluded by an earlier pattern.
	negate bool

	// dirOnly restricts the pattern to directories (trailing "/" in source).
	dirOnly bool
}

// IgnoreMatcher evaluates gitignore-style rules against repository-relative
// paths.
//
// Description:
//
//	Compiled once per operation from the raw content of the repository's
//	ignore file; never cached across operations, so edits to the ignore
//	file take effect on the next tool call. Matching follows gitignore
//	semantics: the last matching pattern wins, "!" re-includes, a trailing
//	"/" restricts to directories, a leading "/" anchors to the root, and
//	patterns without a slash match at any depth. Evaluation is always
//	against the full POSIX root-relative path, not the basename, so
//	anchored and directory-scoped patterns behave the same at every
//	recursion depth.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type IgnoreMatcher struct {
	patterns []ignorePattern
	logger   *slog.Logger
}

// NewIgnoreMatcher compiles ignore rules from raw ignore-file content.
//
// Inputs:
//   - content: The ignore file body ("" compiles to a matcher that ignores
//     nothing).
//   - logger: Destination for malformed-pattern warnings. Must not be nil.
func NewIgnoreMatcher(content string, logger *slog.Logger) *IgnoreMatcher {
	m := &IgnoreMatcher{logger: logger}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, compilePattern(line))
	}
	return m
}

// compilePattern translates one gitignore line into a doublestar glob.
func compilePattern(line string) ignorePattern {
	p := ignorePattern{}

	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}

	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	anchored := strings.HasPrefix(line, "/")
	line = strings.TrimPrefix(line, "/")

	// A pattern with no slash matches at any depth; an anchored pattern or
	// one with an interior slash is rooted at the repository root.
	if !anchored && !strings.Contains(line, "/") {
		line = "**/" + line
	}

	p.glob = line
	return p
}

// Ignored reports whether relPath is excluded by the compiled rules.
//
// Inputs:
//   - relPath: POSIX path relative to the repository root ("." is never
//     ignored).
//   - isDir: Whether relPath names a directory; required for trailing-"/"
//     patterns.
//
// Outputs:
//   - bool: True when the last matching pattern excludes the path.
func (m *IgnoreMatcher) Ignored(relPath string, isDir bool) bool {
	if relPath == "." || relPath == "" {
		return false
	}
	relPath = strings.TrimPrefix(relPath, "./")

	ignored := false
	for _, p := range m.patterns {
		if p.dirOnly && !isDir && !matchesParentDir(p.glob, relPath) {
			continue
		}
		if m.patternMatches(p, relPath, isDir) {
			ignored = !p.negate
		}
	}
	return ignored
}

// patternMatches evaluates one pattern, including the "everything under an
// ignored directory is ignored" rule. A malformed pattern is logged and
// treated as not matching so one bad line never aborts a walk.
func (m *IgnoreMatcher) patternMatches(p ignorePattern, relPath string, isDir bool) bool {
	ok, err := doublestar.Match(p.glob, relPath)
	if err != nil {
		m.logger.Warn("malformed ignore pattern skipped",
			slog.String("pattern", p.glob),
			slog.String("error", err.Error()),
		)
		return false
	}
	if ok {
		return true
	}

	// A directory pattern also covers every path below the directory.
	under, err := doublestar.Match(p.glob+"/**", relPath)
	if err != nil {
		return false
	}
	return under
}

// matchesParentDir reports whether some ancestor directory of relPath
// matches glob. Used so a dirOnly pattern still excludes the files inside
// the directory it names.
func matchesParentDir(glob, relPath string) bool {
	idx := strings.LastIndex(relPath, "/")
	for idx > 0 {
		parent := relPath[:idx]
		if ok, err := doublestar.Match(glob, parent); err == nil && ok {
			return true
		}
		idx = strings.LastIndex(parent, "/")
	}
	return false
}
