// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pathutil validates model-supplied relative paths and evaluates
// gitignore-style exclusion rules against them.
//
// Every path that reaches the filesystem in a tool call passes through
// Sanitize first. The model is an untrusted input source: traversal
// segments, absolute paths, drive letters, and UNC prefixes are all
// rejected before any I/O happens.
package pathutil

import (
	"fmt"
	"strings"
)

// Sanitize normalizes a repository-relative path and rejects anything
// that could escape the repository root.
//
// Description:
//
//	Pure function: the same input always yields the same output or the
//	same error class. Backslashes are normalized to forward slashes,
//	redundant "." segments are collapsed, and an empty or whitespace-only
//	result becomes ".". Rejected inputs: ".." segments, a leading "/",
//	Windows drive-letter prefixes ("C:"), and UNC or extended-length
//	prefixes ("\\", "\\?\", "\\.\").
//
// Inputs:
//   - input: Raw path as supplied by the model or user.
//
// Outputs:
//   - string: Clean forward-slash relative path, or "." for the root.
//   - error: Descriptive rejection naming the offending construct.
func Sanitize(input string) (string, error) {
	trimmed := strings.TrimSpace(input)

	if strings.HasPrefix(trimmed, `\\`) {
		return "", fmt.Errorf("path %q uses a UNC or extended-length prefix; only repository-relative paths are allowed", input)
	}
	if len(trimmed) >= 2 && trimmed[1] == ':' && isDriveLetter(trimmed[0]) {
		return "", fmt.Errorf("path %q starts with a drive letter; only repository-relative paths are allowed", input)
	}

	normalized := strings.ReplaceAll(trimmed, `\`, "/")

	if strings.HasPrefix(normalized, "/") {
		return "", fmt.Errorf("path %q is absolute; only repository-relative paths are allowed", input)
	}

	var clean []string
	for _, seg := range strings.Split(normalized, "/") {
		seg = strings.TrimSpace(seg)
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("path %q contains a traversal segment (%q)", input, "..")
		}
		clean = append(clean, seg)
	}

	if len(clean) == 0 {
		return ".", nil
	}
	return strings.Join(clean, "/"), nil
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
