// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import "strings"

// detailPlaceholders are detail values some providers emit that carry no
// container information and must never be promoted to a hierarchy segment.
// Type-kind keywords are listed defensively: a detail of "struct" names
// what the symbol is, not what contains it.
var detailPlaceholders = map[string]struct{}{
	"declaration": {},
	"struct":      {},
	"interface":   {},
	"class":       {},
	"enum":        {},
	"union":       {},
	"type":        {},
}

// InferContainer promotes a symbol's free-text detail to an inferred
// container name.
//
// Description:
//
//	Heuristic, best effort. Some providers report flat symbol lists where a
//	method defined outside its class body (C++ "Widget::render", Go
//	receiver methods) carries the class name only in the detail field.
//	Promotion happens at the top level of a tree walk only (depth 0):
//	deeper levels already have a real parent, and promoting there would
//	compound noise. Known-uninformative placeholder values such as
//	"declaration" or bare type keywords are skipped. This is not a guaranteed-correct
//	hierarchy reconstruction; matching must also succeed without it.
//
// Inputs:
//   - detail: The provider's free-text detail field.
//   - depth: Current depth in the recursive walk (0 = top level).
//
// Outputs:
//   - string: The inferred container name, or "" when nothing should be
//     promoted.
func InferContainer(detail string, depth int) string {
	if depth != 0 {
		return ""
	}

	name := strings.TrimSpace(detail)
	name = strings.TrimSuffix(name, "::")
	if name == "" {
		return ""
	}
	if _, bad := detailPlaceholders[strings.ToLower(name)]; bad {
		return ""
	}
	// Multi-word detail is a signature or a sentence, not a container name.
	if strings.ContainsAny(name, " \t(") {
		return ""
	}
	return name
}
