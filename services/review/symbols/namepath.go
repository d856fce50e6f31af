// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import (
	"fmt"
	"strings"
)

// ParseNamePath splits a hierarchical symbol path into segments.
//
// Description:
//
//	"/" is the preferred separator: when any "/" is present, "." characters
//	inside a segment are preserved, so "MyClass/file.spec" keeps its dotted
//	leaf. Splitting falls back to "." only when the input contains no "/".
//	A leading or trailing separator is a no-op ("/MyClass/method" equals
//	"MyClass/method"), and blank segments are dropped.
//
// Inputs:
//   - raw: The path as supplied by the model, e.g. "MyClass/method",
//     ".method", or "MyClass.method".
//
// Outputs:
//   - []string: Non-empty ordered segments.
//   - error: When no non-blank segment remains ("symbol name cannot be
//     empty").
func ParseNamePath(raw string) ([]string, error) {
	sep := "."
	if strings.Contains(raw, "/") {
		sep = "/"
	}

	var segments []string
	for _, seg := range strings.Split(raw, sep) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("symbol name cannot be empty")
	}
	return segments, nil
}

// JoinNamePath renders resolved segments in the canonical slash form.
func JoinNamePath(segments []string) string {
	return strings.Join(segments, "/")
}
