// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbols

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// JavaScriptParserOption configures a JavaScriptParser instance.
type JavaScriptParserOption func(*JavaScriptParser)

// WithJavaScriptMaxFileSize sets the maximum file size the parser will accept.
func WithJavaScriptMaxFileSize(bytes int64) JavaScriptParserOption {
	return func(p *JavaScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// JavaScriptParser extracts symbols from JavaScript source with tree-sitter.
//
// Thread Safety: Safe for concurrent use; each call creates its own
// tree-sitter parser instance.
type JavaScriptParser struct {
	maxFileSize int64
}

// NewJavaScriptParser creates a JavaScriptParser with the given options.
func NewJavaScriptParser(opts ...JavaScriptParserOption) *JavaScriptParser {
	p := &JavaScriptParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "javascript".
func (p *JavaScriptParser) Language() string { return "javascript" }

// Extensions returns the file extensions handled by this parser.
func (p *JavaScriptParser) Extensions() []string { return []string{".js", ".jsx", ".mjs", ".cjs"} }

// DocumentSymbols implements Parser.
func (p *JavaScriptParser) DocumentSymbols(ctx context.Context, content []byte, filePath string) ([]*Symbol, error) {
	if err := validateSource(ctx, content, p.maxFileSize); err != nil {
		return nil, err
	}

	tree, err := parseTree(ctx, javascript.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil
	}
	return extractECMAScript(root, content), nil
}

// extractECMAScript walks a JS/TS program scope. TypeScript-only node
// types simply never occur in JavaScript trees, so one walker serves both
// grammars.
func extractECMAScript(scope *sitter.Node, content []byte) []*Symbol {
	var out []*Symbol
	for i := 0; i < int(scope.NamedChildCount()); i++ {
		node := scope.NamedChild(i)

		// export wraps the real declaration.
		if node.Type() == "export_statement" {
			if decl := node.ChildByFieldName("declaration"); decl != nil {
				node = decl
			}
		}

		switch node.Type() {
		case "function_declaration", "generator_function_declaration":
			out = append(out, newHierarchical(node, node.ChildByFieldName("name"), content, KindFunction, ""))

		case "class_declaration", "abstract_class_declaration":
			sym := newHierarchical(node, node.ChildByFieldName("name"), content, KindClass, "")
			if body := node.ChildByFieldName("body"); body != nil {
				sym.Children = extractClassBody(body, content)
			}
			out = append(out, sym)

		case "lexical_declaration", "variable_declaration":
			out = append(out, extractDeclarators(node, content)...)

		case "interface_declaration":
			sym := newHierarchical(node, node.ChildByFieldName("name"), content, KindInterface, "")
			if body := node.ChildByFieldName("body"); body != nil {
				sym.Children = extractInterfaceBody(body, content)
			}
			out = append(out, sym)

		case "enum_declaration":
			sym := newHierarchical(node, node.ChildByFieldName("name"), content, KindEnum, "")
			if body := node.ChildByFieldName("body"); body != nil {
				sym.Children = extractEnumBody(body, content)
			}
			out = append(out, sym)

		case "type_alias_declaration":
			out = append(out, newHierarchical(node, node.ChildByFieldName("name"), content, KindClass, "type alias"))

		case "module", "internal_module":
			// TS namespace: contributes a hierarchy level.
			sym := newHierarchical(node, node.ChildByFieldName("name"), content, KindNamespace, "")
			if body := node.ChildByFieldName("body"); body != nil {
				sym.Children = extractECMAScript(body, content)
			}
			out = append(out, sym)
		}
	}
	return out
}

// extractClassBody lists methods and fields of a class body node.
func extractClassBody(body *sitter.Node, content []byte) []*Symbol {
	var out []*Symbol
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "method_definition":
			nameNode := member.ChildByFieldName("name")
			kind := KindMethod
			if nameNode != nil && nameNode.Content(content) == "constructor" {
				kind = KindConstructor
			}
			out = append(out, newHierarchical(member, nameNode, content, kind, ""))

		case "field_definition", "public_field_definition":
			nameNode := member.ChildByFieldName("name")
			if nameNode == nil && member.NamedChildCount() > 0 {
				nameNode = member.NamedChild(0)
			}
			out = append(out, newHierarchical(member, nameNode, content, KindField, ""))
		}
	}
	return out
}

// extractDeclarators expands const/let/var statements. Function-valued
// bindings are reported as functions, const bindings as constants.
func extractDeclarators(decl *sitter.Node, content []byte) []*Symbol {
	isConst := false
	if decl.ChildCount() > 0 && decl.Child(0).Type() == "const" {
		isConst = true
	}

	var out []*Symbol
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		declarator := decl.NamedChild(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}

		kind := KindVariable
		if isConst {
			kind = KindConstant
		}
		if value := declarator.ChildByFieldName("value"); value != nil {
			switch value.Type() {
			case "arrow_function", "function_expression", "function", "generator_function":
				kind = KindFunction
			}
		}
		out = append(out, newHierarchical(declarator, nameNode, content, kind, ""))
	}
	return out
}
