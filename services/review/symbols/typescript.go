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
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptParserOption configures a TypeScriptParser instance.
type TypeScriptParserOption func(*TypeScriptParser)

// WithTypeScriptMaxFileSize sets the maximum file size the parser will accept.
func WithTypeScriptMaxFileSize(bytes int64) TypeScriptParserOption {
	return func(p *TypeScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// TypeScriptParser extracts symbols from TypeScript/TSX source with
// tree-sitter. Shares the scope walker with the JavaScript parser; the
// TS-only node types (interfaces, enums, type aliases, namespaces) are
// handled there and simply never fire for plain JavaScript.
//
// Thread Safety: Safe for concurrent use; each call creates its own
// tree-sitter parser instance.
type TypeScriptParser struct {
	maxFileSize int64
}

// NewTypeScriptParser creates a TypeScriptParser with the given options.
func NewTypeScriptParser(opts ...TypeScriptParserOption) *TypeScriptParser {
	p := &TypeScriptParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "typescript".
func (p *TypeScriptParser) Language() string { return "typescript" }

// Extensions returns the file extensions handled by this parser.
func (p *TypeScriptParser) Extensions() []string { return []string{".ts", ".tsx"} }

// DocumentSymbols implements Parser.
func (p *TypeScriptParser) DocumentSymbols(ctx context.Context, content []byte, filePath string) ([]*Symbol, error) {
	if err := validateSource(ctx, content, p.maxFileSize); err != nil {
		return nil, err
	}

	lang := typescript.GetLanguage()
	if strings.HasSuffix(strings.ToLower(filePath), ".tsx") {
		lang = tsx.GetLanguage()
	}

	tree, err := parseTree(ctx, lang, content)
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

// extractInterfaceBody lists property and method signatures of a TS
// interface body.
func extractInterfaceBody(body *sitter.Node, content []byte) []*Symbol {
	var out []*Symbol
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "property_signature":
			out = append(out, newHierarchical(member, member.ChildByFieldName("name"), content, KindProperty, ""))
		case "method_signature":
			out = append(out, newHierarchical(member, member.ChildByFieldName("name"), content, KindMethod, ""))
		}
	}
	return out
}

// extractEnumBody lists the members of a TS enum body as constants.
func extractEnumBody(body *sitter.Node, content []byte) []*Symbol {
	var out []*Symbol
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "enum_assignment":
			out = append(out, newHierarchical(member, member.ChildByFieldName("name"), content, KindConstant, ""))
		case "property_identifier":
			out = append(out, newHierarchical(member, member, content, KindConstant, ""))
		}
	}
	return out
}
