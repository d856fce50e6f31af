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
	"github.com/smacker/go-tree-sitter/cpp"
)

// CppParserOption configures a CppParser instance.
type CppParserOption func(*CppParser)

// WithCppMaxFileSize sets the maximum file size the parser will accept.
func WithCppMaxFileSize(bytes int64) CppParserOption {
	return func(p *CppParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// CppParser extracts symbols from C/C++ source with tree-sitter.
//
// Description:
//
//	C++ produces the awkward shapes the matcher has to cope with: a method
//	defined outside its class body ("Widget::render") surfaces as a
//	top-level symbol whose detail carries the class name, and an in-class
//	declaration without a body carries the placeholder detail
//	"declaration". Both mirror what header-oriented providers emit.
//
// Thread Safety: Safe for concurrent use; each call creates its own
// tree-sitter parser instance.
type CppParser struct {
	maxFileSize int64
}

// NewCppParser creates a CppParser with the given options.
func NewCppParser(opts ...CppParserOption) *CppParser {
	p := &CppParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "cpp".
func (p *CppParser) Language() string { return "cpp" }

// Extensions returns the file extensions handled by this parser.
func (p *CppParser) Extensions() []string {
	return []string{".cpp", ".cc", ".cxx", ".c", ".h", ".hpp", ".hh", ".hxx"}
}

// DocumentSymbols implements Parser.
func (p *CppParser) DocumentSymbols(ctx context.Context, content []byte, filePath string) ([]*Symbol, error) {
	if err := validateSource(ctx, content, p.maxFileSize); err != nil {
		return nil, err
	}

	tree, err := parseTree(ctx, cpp.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil
	}
	return p.extractScope(root, content), nil
}

// extractScope walks a translation unit, namespace body, or linkage block.
func (p *CppParser) extractScope(scope *sitter.Node, content []byte) []*Symbol {
	var out []*Symbol
	for i := 0; i < int(scope.NamedChildCount()); i++ {
		node := scope.NamedChild(i)

		// Templates wrap the real declaration.
		if node.Type() == "template_declaration" {
			if inner := lastNamedChild(node); inner != nil {
				node = inner
			}
		}

		switch node.Type() {
		case "namespace_definition":
			sym := newHierarchical(node, node.ChildByFieldName("name"), content, KindNamespace, "")
			if sym.Name == "" {
				sym.Name = "(anonymous namespace)"
			}
			if body := node.ChildByFieldName("body"); body != nil {
				sym.Children = p.extractScope(body, content)
			}
			out = append(out, sym)

		case "class_specifier", "struct_specifier":
			if sym := p.extractClass(node, content); sym != nil {
				out = append(out, sym)
			}

		case "enum_specifier":
			if sym := p.extractEnum(node, content); sym != nil {
				out = append(out, sym)
			}

		case "function_definition":
			if sym := p.extractFunctionDefinition(node, content, ""); sym != nil {
				out = append(out, sym)
			}

		case "declaration":
			// A free function prototype: report it with the placeholder
			// detail providers use for body-less declarations.
			if fn := findDescendant(node, "function_declarator"); fn != nil {
				if nameNode := cppDeclaratorName(fn); nameNode != nil {
					out = append(out, newHierarchical(node, nameNode, content, KindFunction, "declaration"))
				}
			}
		}
	}
	return out
}

// extractClass builds a class symbol with its member tree.
func (p *CppParser) extractClass(node *sitter.Node, content []byte) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil // anonymous structs are noise at review granularity
	}
	className := nameNode.Content(content)
	sym := newHierarchical(node, nameNode, content, KindClass, "")

	body := node.ChildByFieldName("body")
	if body == nil {
		return sym
	}

	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member.Type() == "template_declaration" {
			if inner := lastNamedChild(member); inner != nil {
				member = inner
			}
		}

		switch member.Type() {
		case "function_definition":
			if m := p.extractFunctionDefinition(member, content, className); m != nil {
				sym.Children = append(sym.Children, m)
			}

		case "field_declaration":
			if fn := findDescendant(member, "function_declarator"); fn != nil {
				// In-class method declaration, body elsewhere.
				if n := cppDeclaratorName(fn); n != nil {
					kind := KindMethod
					if n.Content(content) == className {
						kind = KindConstructor
					}
					sym.Children = append(sym.Children, newHierarchical(member, n, content, kind, "declaration"))
				}
				continue
			}
			if n := findDescendant(member, "field_identifier"); n != nil {
				sym.Children = append(sym.Children, newHierarchical(member, n, content, KindField, ""))
			}

		case "class_specifier", "struct_specifier":
			if nested := p.extractClass(member, content); nested != nil {
				sym.Children = append(sym.Children, nested)
			}

		case "enum_specifier":
			if nested := p.extractEnum(member, content); nested != nil {
				sym.Children = append(sym.Children, nested)
			}
		}
	}
	return sym
}

// extractEnum builds an enum symbol with its enumerators as constants.
func (p *CppParser) extractEnum(node *sitter.Node, content []byte) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	sym := newHierarchical(node, nameNode, content, KindEnum, "")

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			enumerator := body.NamedChild(i)
			if enumerator.Type() != "enumerator" {
				continue
			}
			sym.Children = append(sym.Children, newHierarchical(enumerator, enumerator.ChildByFieldName("name"), content, KindConstant, ""))
		}
	}
	return sym
}

// extractFunctionDefinition handles both in-class definitions and
// out-of-class qualified definitions ("Widget::render"). For the
// qualified form the class scope ends up in the detail field, the way
// flat symbol listings report it.
func (p *CppParser) extractFunctionDefinition(node *sitter.Node, content []byte, className string) *Symbol {
	fn := findDescendant(node, "function_declarator")
	if fn == nil {
		return nil
	}

	declarator := fn.ChildByFieldName("declarator")
	if declarator == nil {
		return nil
	}

	switch declarator.Type() {
	case "qualified_identifier":
		scope, nameNode := splitQualified(declarator, content)
		if nameNode == nil {
			return nil
		}
		kind := KindMethod
		if base := nameNode.Content(content); lastScopeSegment(scope) == base {
			kind = KindConstructor
		}
		return newHierarchical(node, nameNode, content, kind, scope)

	case "identifier", "field_identifier":
		kind := KindFunction
		detail := ""
		if className != "" {
			kind = KindMethod
			if declarator.Content(content) == className {
				kind = KindConstructor
			}
		}
		return newHierarchical(node, declarator, content, kind, detail)

	case "destructor_name":
		return newHierarchical(node, declarator, content, KindMethod, className)
	}
	return nil
}

// splitQualified splits "A::B::name" into scope "A::B" and the name node.
func splitQualified(qualified *sitter.Node, content []byte) (string, *sitter.Node) {
	nameNode := qualified.ChildByFieldName("name")
	// Nested qualification keeps the name on the innermost node.
	for nameNode != nil && nameNode.Type() == "qualified_identifier" {
		nameNode = nameNode.ChildByFieldName("name")
	}
	if nameNode == nil {
		return "", nil
	}

	full := qualified.Content(content)
	name := nameNode.Content(content)
	scope := strings.TrimSuffix(full, name)
	scope = strings.TrimSuffix(scope, "::")
	return scope, nameNode
}

// lastScopeSegment returns the final segment of a "A::B" scope string.
func lastScopeSegment(scope string) string {
	if idx := strings.LastIndex(scope, "::"); idx >= 0 {
		return scope[idx+2:]
	}
	return scope
}

// cppDeclaratorName digs the identifier out of a function declarator.
func cppDeclaratorName(fn *sitter.Node) *sitter.Node {
	declarator := fn.ChildByFieldName("declarator")
	for declarator != nil {
		switch declarator.Type() {
		case "identifier", "field_identifier", "destructor_name", "operator_name":
			return declarator
		case "qualified_identifier":
			declarator = declarator.ChildByFieldName("name")
		default:
			return nil
		}
	}
	return nil
}

// findDescendant returns the first descendant (depth first) of the given
// type, or nil.
func findDescendant(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == nodeType {
			return child
		}
		if found := findDescendant(child, nodeType); found != nil {
			return found
		}
	}
	return nil
}

// lastNamedChild returns the final named child of a node, or nil.
func lastNamedChild(node *sitter.Node) *sitter.Node {
	n := int(node.NamedChildCount())
	if n == 0 {
		return nil
	}
	return node.NamedChild(n - 1)
}
