// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"fmt"
	"strings"

	"github.com/loupedev/loupe/services/review/symbols"
)

// =============================================================================
// Output formatting shared across tools
// =============================================================================
//
// The model parses these shapes, so they are stable contract:
//   - match header:   === path [name - kind] ===
//   - name path line: Name Path: A/b
//   - overview line:  line: name (kind)
//   - body line:      line: source text
//   - truncation:     a bracketed [Note: ...] / [Output limited ...] trailer

// matchHeader renders the block header for one resolved symbol.
func matchHeader(filePath, name string, kind symbols.Kind) string {
	return fmt.Sprintf("=== %s [%s - %s] ===", filePath, name, kind)
}

// overviewLine renders one symbol in an overview listing.
func overviewLine(indent int, s *symbols.Symbol) string {
	return fmt.Sprintf("%s%d: %s (%s)", strings.Repeat("  ", indent), s.Range.Start.Line, s.Name, s.Kind)
}

// numberedLines renders source lines with 1-based line-number prefixes.
//
// Inputs:
//   - lines: The file split on newlines.
//   - startLine, endLine: Inclusive 1-based bounds, already clamped.
func numberedLines(sb *strings.Builder, lines []string, startLine, endLine int) {
	for i := startLine; i <= endLine && i <= len(lines); i++ {
		fmt.Fprintf(sb, "%d: %s\n", i, lines[i-1])
	}
}

// splitLines splits file content for numbered rendering, without a
// phantom trailing element for a final newline.
func splitLines(content []byte) []string {
	s := strings.TrimSuffix(string(content), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// incompleteNote is the standard trailer for partially delivered results.
func incompleteNote(reason string) string {
	return fmt.Sprintf("[Note: Results may be incomplete due to %s]", reason)
}

// limitNote is the standard trailer for count-capped symbol listings.
func limitNote(n int) string {
	return fmt.Sprintf("[Output limited to %d symbols; narrow the path or lower max_depth to see more]", n)
}

// kindEnum lists the kind names accepted by include_kinds/exclude_kinds.
func kindEnum() []any {
	return []any{
		"class", "function", "method", "variable", "constant",
		"interface", "enum", "property", "field", "constructor", "namespace",
	}
}

// kindFilter builds a predicate from include/exclude kind name lists.
//
// Description:
//
//	An unknown kind name is a caller mistake and is reported rather than
//	silently ignored, since a typo like "clas" would otherwise filter
//	everything out with no explanation.
func kindFilter(include, exclude []string) (func(symbols.Kind) bool, error) {
	parse := func(names []string) (map[symbols.Kind]struct{}, error) {
		if len(names) == 0 {
			return nil, nil
		}
		set := make(map[symbols.Kind]struct{}, len(names))
		for _, n := range names {
			k, ok := symbols.ParseKind(n)
			if !ok {
				return nil, fmt.Errorf("unknown symbol kind %q", n)
			}
			set[k] = struct{}{}
		}
		return set, nil
	}

	includeSet, err := parse(include)
	if err != nil {
		return nil, err
	}
	excludeSet, err := parse(exclude)
	if err != nil {
		return nil, err
	}

	return func(k symbols.Kind) bool {
		if includeSet != nil {
			if _, ok := includeSet[k]; !ok {
				return false
			}
		}
		if excludeSet != nil {
			if _, ok := excludeSet[k]; ok {
				return false
			}
		}
		return true
	}, nil
}
