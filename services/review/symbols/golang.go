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
	"github.com/smacker/go-tree-sitter/golang"
)

// GoParserOption configures a GoParser instance.
type GoParserOption func(*GoParser)

// WithGoMaxFileSize sets the maximum file size the parser will accept.
func WithGoMaxFileSize(bytes int64) GoParserOption {
	return func(p *GoParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// GoParser extracts symbols from Go source with tree-sitter.
//
// Description:
//
//	Methods are reported the way language servers report them: as
//	top-level symbols whose detail field carries the receiver type (a Go
//	method is defined outside its type's body). Struct fields and
//	interface methods nest under their declaring type.
//
// Thread Safety: Safe for concurrent use; each call creates its own
// tree-sitter parser instance.
type GoParser struct {
	maxFileSize int64
}

// NewGoParser creates a GoParser with the given options.
func NewGoParser(opts ...GoParserOption) *GoParser {
	p := &GoParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "go".
func (p *GoParser) Language() string { return "go" }

// Extensions returns the file extensions handled by this parser.
func (p *GoParser) Extensions() []string { return []string{".go"} }

// DocumentSymbols implements Parser.
func (p *GoParser) DocumentSymbols(ctx context.Context, content []byte, filePath string) ([]*Symbol, error) {
	if err := validateSource(ctx, content, p.maxFileSize); err != nil {
		return nil, err
	}

	tree, err := parseTree(ctx, golang.GetLanguage(), content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil
	}

	var out []*Symbol
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "function_declaration":
			out = append(out, newHierarchical(node, node.ChildByFieldName("name"), content, KindFunction, ""))

		case "method_declaration":
			sym := newHierarchical(node, node.ChildByFieldName("name"), content, KindMethod, goReceiverType(node, content))
			out = append(out, sym)

		case "type_declaration":
			out = append(out, p.typeSpecs(node, content)...)

		case "const_declaration":
			out = append(out, goValueSpecs(node, content, KindConstant)...)

		case "var_declaration":
			out = append(out, goValueSpecs(node, content, KindVariable)...)
		}
	}
	return out, nil
}

// typeSpecs expands one type declaration (possibly a grouped block) into
// class/interface symbols with nested members.
func (p *GoParser) typeSpecs(decl *sitter.Node, content []byte) []*Symbol {
	var out []*Symbol
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		spec := decl.NamedChild(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}

		// Detail stays empty for type declarations: it is reserved for
		// container inference, and a top-level type has no container.
		switch typeNode.Type() {
		case "struct_type":
			sym := newHierarchical(spec, nameNode, content, KindClass, "")
			sym.Children = goStructFields(typeNode, content)
			out = append(out, sym)

		case "interface_type":
			sym := newHierarchical(spec, nameNode, content, KindInterface, "")
			sym.Children = goInterfaceMethods(typeNode, content)
			out = append(out, sym)

		default:
			out = append(out, newHierarchical(spec, nameNode, content, KindClass, ""))
		}
	}
	return out
}

// goStructFields lists the named fields of a struct type node.
func goStructFields(structType *sitter.Node, content []byte) []*Symbol {
	var fields []*Symbol
	for i := 0; i < int(structType.NamedChildCount()); i++ {
		list := structType.NamedChild(i)
		if list.Type() != "field_declaration_list" {
			continue
		}
		for j := 0; j < int(list.NamedChildCount()); j++ {
			fieldDecl := list.NamedChild(j)
			if fieldDecl.Type() != "field_declaration" {
				continue
			}
			for k := 0; k < int(fieldDecl.NamedChildCount()); k++ {
				id := fieldDecl.NamedChild(k)
				if id.Type() == "field_identifier" {
					fields = append(fields, newHierarchical(fieldDecl, id, content, KindField, ""))
				}
			}
		}
	}
	return fields
}

// goInterfaceMethods lists the method set of an interface type node. The
// grammar has renamed the spec node over time, so both spellings are
// accepted.
func goInterfaceMethods(ifaceType *sitter.Node, content []byte) []*Symbol {
	var methods []*Symbol
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "method_spec", "method_elem":
				nameNode := child.ChildByFieldName("name")
				if nameNode == nil && child.NamedChildCount() > 0 {
					nameNode = child.NamedChild(0)
				}
				methods = append(methods, newHierarchical(child, nameNode, content, KindMethod, ""))
			case "method_spec_list":
				visit(child)
			}
		}
	}
	visit(ifaceType)
	return methods
}

// goValueSpecs expands const/var declarations into one symbol per name.
func goValueSpecs(decl *sitter.Node, content []byte, kind Kind) []*Symbol {
	var out []*Symbol
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		spec := decl.NamedChild(i)
		if spec.Type() != "const_spec" && spec.Type() != "var_spec" {
			continue
		}
		for j := 0; j < int(spec.NamedChildCount()); j++ {
			id := spec.NamedChild(j)
			if id.Type() == "identifier" {
				out = append(out, newHierarchical(spec, id, content, kind, ""))
			}
		}
	}
	return out
}

// goReceiverType extracts the bare receiver type name of a method
// declaration ("*Session" and "Session" both yield "Session").
func goReceiverType(method *sitter.Node, content []byte) string {
	recv := method.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	text := recv.Content(content)
	text = strings.Trim(text, "()")
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return ""
	}
	typeName := parts[len(parts)-1]
	typeName = strings.TrimPrefix(typeName, "*")
	// Drop generic type arguments: "Cache[K]" -> "Cache".
	if idx := strings.IndexByte(typeName, '['); idx > 0 {
		typeName = typeName[:idx]
	}
	return typeName
}
