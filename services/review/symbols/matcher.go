// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import "strings"

// FindInTree resolves a parsed name path against a hierarchical symbol
// tree.
//
// Description:
//
//	Walks the tree depth first, building the slash-joined name path at
//	every node. A single requested segment matches any node whose tail
//	name equals it exactly; multiple segments match when the built path
//	contains them as a contiguous subsequence. At the top level only, a
//	node's detail field may contribute an inferred container segment (see
//	InferContainer), which covers flat C++-style listings where the class
//	name lives in detail. Every match is returned, each with its own
//	resolved name path; ambiguity is the caller's to surface, never
//	silently deduplicated.
//
// Inputs:
//   - tree: Hierarchical symbols for one file.
//   - segments: Output of ParseNamePath. Must be non-empty.
//   - filePath: Repository-relative path recorded on each match.
//
// Outputs:
//   - []Match: All matches in tree order; nil when nothing matched.
func FindInTree(tree []*Symbol, segments []string, filePath string) []Match {
	var matches []Match

	var walk func(syms []*Symbol, prefix []string, depth int)
	walk = func(syms []*Symbol, prefix []string, depth int) {
		for _, sym := range syms {
			built := prefix
			if inferred := InferContainer(sym.Detail, depth); inferred != "" {
				// C++ scopes arrive as one "Outer::Inner" string; each
				// level is its own path segment.
				built = append(built, strings.Split(inferred, "::")...)
			}
			built = append(built, sym.Name)

			if pathMatches(built, segments) {
				matches = append(matches, Match{
					Symbol:   sym,
					NamePath: JoinNamePath(built),
					FilePath: filePath,
				})
			}

			if len(sym.Children) > 0 {
				// Copy: append above may share backing arrays between
				// siblings once we recurse.
				next := make([]string, len(built))
				copy(next, built)
				walk(sym.Children, next, depth+1)
			}
		}
	}
	walk(tree, nil, 0)

	return matches
}

// pathMatches reports whether the built path satisfies the requested
// segments: exact tail-name match for a single segment, contiguous
// subsequence for multiple.
func pathMatches(built, requested []string) bool {
	if len(requested) == 1 {
		return built[len(built)-1] == requested[0]
	}
	return containsContiguous(built, requested)
}

// containsContiguous reports whether needle occurs in haystack as a
// contiguous run, in order, with exact case-sensitive comparison.
func containsContiguous(haystack, needle []string) bool {
	if len(needle) > len(haystack) {
		return false
	}
	for start := 0; start+len(needle) <= len(haystack); start++ {
		found := true
		for i, seg := range needle {
			if haystack[start+i] != seg {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

// MatchesFlatCandidate tests a flat workspace-symbol candidate against the
// requested segments.
//
// Description:
//
//	Workspace providers index by leaf name, so the query already selected
//	on the last segment; this re-checks it exactly (case-sensitive) and
//	then verifies the remaining requested segments appear, in order, as a
//	contiguous run inside the candidate's container hierarchy. Container
//	names may themselves be dot-delimited ("Outer.Inner"), so the
//	container is split on dots before comparison.
//
// Inputs:
//   - candidate: A flat-shape symbol (ContainerName populated).
//   - segments: Output of ParseNamePath.
//
// Outputs:
//   - bool: True when the candidate satisfies the full requested path.
func MatchesFlatCandidate(candidate *Symbol, segments []string) bool {
	leaf := segments[len(segments)-1]
	if candidate.Name != leaf {
		return false
	}

	rest := segments[:len(segments)-1]
	if len(rest) == 0 {
		return true
	}

	var containers []string
	for _, part := range strings.Split(candidate.ContainerName, ".") {
		if part != "" {
			containers = append(containers, part)
		}
	}

	// The container chain may be reconstructed from detail when the
	// provider left ContainerName empty.
	if len(containers) == 0 {
		if inferred := InferContainer(candidate.Detail, 0); inferred != "" {
			containers = strings.Split(inferred, "::")
		}
	}

	return containsContiguous(containers, rest)
}

// EnclosingBodyRange finds the most specific body range in a hierarchical
// tree that contains the given position.
//
// Description:
//
//	Used to expand a flat match (selection range only) into a full body
//	range by consulting the hierarchical tree fetched separately for the
//	same file. Children are checked before parents, so the smallest
//	containing scope always wins over a larger ancestor.
//
// Outputs:
//   - Range: The most specific containing body range.
//   - bool: False when no node in the tree contains the position.
func EnclosingBodyRange(tree []*Symbol, pos Position) (Range, bool) {
	for _, sym := range tree {
		if !sym.Range.Contains(pos) {
			continue
		}
		if r, ok := EnclosingBodyRange(sym.Children, pos); ok {
			return r, true
		}
		return sym.Range, true
	}
	return Range{}, false
}
