// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonParserOption configures a PythonParser instance.
type PythonParserOption func(*PythonParser)

// WithPythonMaxFileSize sets the maximum file size the parser will accept.
func WithPythonMaxFileSize(bytes int64) PythonParserOption {
	return func(p *PythonParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// PythonParser extracts symbols from Python source with tree-sitter.
//
// Thread Safety: Safe for concurrent use; each call creates its own
// tree-sitter parser instance.
type PythonParser struct {
	maxFileSize int64
}

// NewPythonParser creates a PythonParser with the given options.
func NewPythonParser(opts ...PythonParserOption) *PythonParser {
	p := &PythonParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "python".
func (p *PythonParser) Language() string { return "python" }

// Extensions returns the file extensions handled by this parser.
func (p *PythonParser) Extensions() []string { return []string{".py"} }

// DocumentSymbols implements Parser.
func (p *PythonParser) DocumentSymbols(ctx context.Context, content []byte, filePath string) ([]*Symbol, error) {
	if err := validateSource(ctx, content, p.maxFileSize); err != nil {
		return nil, err
	}

	tree, err := parseTree(ctx, python.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil
	}
	return p.extractScope(root, content, false), nil
}

// extractScope walks one lexical scope. insideClass switches the kinds of
// nested definitions (function -> method, assignment -> field).
func (p *PythonParser) extractScope(scope *sitter.Node, content []byte, insideClass bool) []*Symbol {
	var out []*Symbol
	for i := 0; i < int(scope.NamedChildCount()); i++ {
		node := scope.NamedChild(i)

		// Decorators wrap the real definition.
		if node.Type() == "decorated_definition" {
			if def := node.ChildByFieldName("definition"); def != nil {
				node = def
			}
		}

		switch node.Type() {
		case "class_definition":
			sym := newHierarchical(node, node.ChildByFieldName("name"), content, KindClass, "")
			if body := node.ChildByFieldName("body"); body != nil {
				sym.Children = p.extractScope(body, content, true)
			}
			out = append(out, sym)

		case "function_definition":
			kind := KindFunction
			nameNode := node.ChildByFieldName("name")
			if insideClass {
				kind = KindMethod
				if nameNode != nil && nameNode.Content(content) == "__init__" {
					kind = KindConstructor
				}
			}
			sym := newHierarchical(node, nameNode, content, kind, "")
			// Nested defs are still worth reporting (closures, helpers).
			if body := node.ChildByFieldName("body"); body != nil {
				sym.Children = p.extractScope(body, content, false)
			}
			out = append(out, sym)

		case "expression_statement":
			out = append(out, p.extractAssignments(node, content, insideClass)...)
		}
	}
	return out
}

// extractAssignments turns simple scope-level assignments into
// variable/constant/field symbols.
func (p *PythonParser) extractAssignments(stmt *sitter.Node, content []byte, insideClass bool) []*Symbol {
	var out []*Symbol
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		assign := stmt.NamedChild(i)
		if assign.Type() != "assignment" {
			continue
		}
		left := assign.ChildByFieldName("left")
		if left == nil || left.Type() != "identifier" {
			continue
		}

		kind := KindVariable
		name := left.Content(content)
		switch {
		case insideClass:
			kind = KindField
		case name == strings.ToUpper(name) && strings.ContainsAny(name, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"):
			// SCREAMING_CASE module globals are constants by convention.
			kind = KindConstant
		}
		out = append(out, newHierarchical(assign, left, content, kind, ""))
	}
	return out
}
