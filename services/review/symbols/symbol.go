// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package symbols models code symbols and resolves hierarchical name paths
// against them.
//
// Language servers report symbols in two shapes: hierarchical (a node with a
// full body range and nested children) and flat (a location plus a free-text
// container name, no children). Both shapes flow through one Symbol type with
// an explicit Shape discriminator; BodyRange is the single place that decides
// whether a symbol has a directly usable body range.
package symbols

import "strings"

// Kind classifies a symbol.
type Kind int

const (
	KindUnknown Kind = iota
	KindClass
	KindFunction
	KindMethod
	KindVariable
	KindConstant
	KindInterface
	KindEnum
	KindProperty
	KindField
	KindConstructor
	KindNamespace
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindClass:       "class",
	KindFunction:    "function",
	KindMethod:      "method",
	KindVariable:    "variable",
	KindConstant:    "constant",
	KindInterface:   "interface",
	KindEnum:        "enum",
	KindProperty:    "property",
	KindField:       "field",
	KindConstructor: "constructor",
	KindNamespace:   "namespace",
}

// String returns the lowercase kind name used in tool output and filters.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a filter string ("class", "method", ...) to a Kind.
//
// Outputs:
//   - Kind: The matching kind.
//   - bool: False when the string names no known kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == strings.ToLower(strings.TrimSpace(s)) && k != KindUnknown {
			return k, true
		}
	}
	return KindUnknown, false
}

// Position is a location in a file. Line is 1-based, Col is 0-based.
type Position struct {
	Line int
	Col  int
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position
	End   Position
}

// Contains reports whether p falls inside the range.
func (r Range) Contains(p Position) bool {
	if p.Line < r.Start.Line || p.Line > r.End.Line {
		return false
	}
	if p.Line == r.Start.Line && p.Col < r.Start.Col {
		return false
	}
	if p.Line == r.End.Line && p.Col > r.End.Col {
		return false
	}
	return true
}

// Lines returns the number of source lines the range spans.
func (r Range) Lines() int {
	return r.End.Line - r.Start.Line + 1
}

// Shape discriminates the two provider symbol representations.
type Shape int

const (
	// ShapeHierarchical carries a full body range and nested children.
	ShapeHierarchical Shape = iota

	// ShapeFlat carries only a selection range and a container name.
	ShapeFlat
)

// Symbol is one named code construct reported by a symbol provider.
//
// Description:
//
//	A closed two-variant sum: Shape selects which fields are meaningful.
//	Hierarchical symbols use Range (full body), SelectionRange, and
//	Children. Flat symbols use SelectionRange and ContainerName only; their
//	Range is a copy of the selection range, never the body. Detail is
//	free-text from the provider (a type signature, a receiver, or the
//	placeholder "declaration") and is meaningful for both shapes.
//
// Thread Safety: Treated as immutable once built by a parser.
type Symbol struct {
	Name           string
	Kind           Kind
	Detail         string
	Shape          Shape
	Range          Range
	SelectionRange Range
	Children       []*Symbol

	// ContainerName is the dot-delimited enclosing scope of a flat symbol
	// (e.g. "Outer.Inner"). Empty for hierarchical symbols.
	ContainerName string
}

// BodyRange returns the symbol's full body range when one is directly
// usable.
//
// Description:
//
//	The single discrimination point for "can I print this symbol's body
//	without more work". Hierarchical symbols always can. Flat symbols
//	cannot: their only range covers the name token, and callers must
//	expand it through EnclosingBodyRange against a hierarchical tree for
//	the same file.
//
// Outputs:
//   - Range: The body range (hierarchical) or the selection range (flat).
//   - bool: True when the returned range covers the full body.
func (s *Symbol) BodyRange() (Range, bool) {
	if s.Shape == ShapeHierarchical {
		return s.Range, true
	}
	return s.SelectionRange, false
}

// Match is one resolved occurrence of a requested name path.
//
// Description:
//
//	Built transiently during a single tool invocation and never persisted.
//	NamePath is the slash-joined hierarchy the match was found under, which
//	may be longer than what the caller asked for.
type Match struct {
	Symbol *Symbol

	// NamePath is the fully resolved hierarchy, e.g. "MyClass/method".
	NamePath string

	// FilePath is repository-root-relative with forward slashes.
	FilePath string
}

// Flatten converts a hierarchical tree into the flat workspace-symbol
// shape, with each symbol's ContainerName set to the dot-joined names of
// its ancestors.
func Flatten(tree []*Symbol) []*Symbol {
	var out []*Symbol
	var walk func(syms []*Symbol, container []string)
	walk = func(syms []*Symbol, container []string) {
		for _, s := range syms {
			flat := &Symbol{
				Name:           s.Name,
				Kind:           s.Kind,
				Detail:         s.Detail,
				Shape:          ShapeFlat,
				Range:          s.SelectionRange,
				SelectionRange: s.SelectionRange,
				ContainerName:  strings.Join(container, "."),
			}
			out = append(out, flat)
			if len(s.Children) > 0 {
				walk(s.Children, append(container, s.Name))
			}
		}
	}
	walk(tree, nil)
	return out
}
